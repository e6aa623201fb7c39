package report

import "strings"

// FlatDelimiter separates fields in flat reports. The obvious "|" is not
// usable: it occurs inside field values, e.g. node constraint strings like
// "x86_64&(32gb|48gb)".
const FlatDelimiter = "<^>"

// ParseFlat parses a flat delimiter-separated report. The first line is the
// header; every following non-empty line must carry the same number of
// fields. A single trailing empty token is tolerated, because a line whose
// last field is empty ends with the delimiter itself.
func ParseFlat(text string) ([]map[string]string, error) {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return nil, nil
	}
	header := strings.Split(lines[0], FlatDelimiter)

	rows := make([]map[string]string, 0, len(lines)-1)
	for i, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		tokens := strings.Split(line, FlatDelimiter)
		if len(tokens) == len(header)+1 && tokens[len(tokens)-1] == "" {
			tokens = tokens[:len(tokens)-1]
		}
		if len(tokens) != len(header) {
			return nil, &FieldCountError{Line: i + 2, Want: len(header), Got: len(tokens)}
		}
		row := make(map[string]string, len(header))
		for j, name := range header {
			row[name] = tokens[j]
		}
		rows = append(rows, row)
	}
	return rows, nil
}
