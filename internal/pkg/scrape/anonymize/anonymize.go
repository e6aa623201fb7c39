// Package anonymize rewrites scraped reports into shareable test fixtures:
// same shape, same field inventory, no real people or paths. Pseudonyms are
// assigned per distinct original value, so relationships between entries
// (two jobs of one user, one account across jobs) survive the rewrite.
package anonymize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mila-iqia/clockwork-sub001/internal/pkg/scrape/report"
)

// Anonymizer carries the pseudonym tables of one rewrite session.
type Anonymizer struct {
	users    map[string]string
	accounts map[string]string
	jobNames map[string]string
}

// New creates an empty anonymizer.
func New() *Anonymizer {
	return &Anonymizer{
		users:    map[string]string{},
		accounts: map[string]string{},
		jobNames: map[string]string{},
	}
}

func pseudonym(table map[string]string, format, orig string) string {
	if orig == "" {
		return ""
	}
	if p, ok := table[orig]; ok {
		return p
	}
	p := fmt.Sprintf(format, len(table))
	table[orig] = p
	return p
}

func (a *Anonymizer) user(orig string) string    { return pseudonym(a.users, "student%02d", orig) }
func (a *Anonymizer) account(orig string) string { return pseudonym(a.accounts, "account%02d", orig) }
func (a *Anonymizer) jobName(orig string) string {
	return pseudonym(a.jobNames, "somejobname_%03d", orig)
}

// JobsReport anonymizes a structured sacct report.
func (a *Anonymizer) JobsReport(data []byte) ([]byte, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode jobs report: %w", err)
	}
	jobs, _ := doc["jobs"].([]any)
	for _, j := range jobs {
		job, ok := j.(map[string]any)
		if !ok {
			continue
		}
		var username string
		if orig, ok := job["user"].(string); ok {
			username = a.user(orig)
			job["user"] = username
		}
		if orig, ok := job["group"].(string); ok {
			job["group"] = a.user(orig)
		}
		if orig, ok := job["account"].(string); ok {
			job["account"] = a.account(orig)
		}
		if assoc, ok := job["association"].(map[string]any); ok {
			if orig, ok := assoc["user"].(string); ok {
				assoc["user"] = a.user(orig)
			}
			if orig, ok := assoc["account"].(string); ok {
				assoc["account"] = a.account(orig)
			}
		}
		if orig, ok := job["name"].(string); ok {
			job["name"] = a.jobName(orig)
		}
		if _, ok := job["working_directory"].(string); ok && username != "" {
			job["working_directory"] = "/home/" + username
		}
	}
	return json.MarshalIndent(doc, "", "  ")
}

// NodesReport anonymizes a structured sinfo report. Node names are hardware,
// not people, so they stay; free-text fields an operator typed do not.
func (a *Anonymizer) NodesReport(data []byte) ([]byte, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode nodes report: %w", err)
	}
	nodes, _ := doc["nodes"].([]any)
	for _, n := range nodes {
		node, ok := n.(map[string]any)
		if !ok {
			continue
		}
		if reason, ok := node["reason"].(string); ok && reason != "" {
			node["reason"] = "some reason"
		}
		if comment, ok := node["comment"].(string); ok && comment != "" {
			node["comment"] = ""
		}
		if orig, ok := node["reason_set_by_user"].(string); ok && orig != "" {
			node["reason_set_by_user"] = a.user(orig)
		}
	}
	return json.MarshalIndent(doc, "", "  ")
}

// FlatJobsReport anonymizes a flat sacct report, preserving the header and
// the delimiter layout.
func (a *Anonymizer) FlatJobsReport(text string) (string, error) {
	rows, err := report.ParseFlat(text)
	if err != nil {
		return "", err
	}
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	header := strings.Split(lines[0], report.FlatDelimiter)

	var b strings.Builder
	b.WriteString(lines[0])
	b.WriteByte('\n')
	for _, row := range rows {
		var username string
		if orig, ok := row["User"]; ok {
			username = a.user(orig)
			row["User"] = username
		}
		if orig, ok := row["Account"]; ok {
			row["Account"] = a.account(orig)
		}
		if orig, ok := row["JobName"]; ok {
			row["JobName"] = a.jobName(orig)
		}
		if _, ok := row["WorkDir"]; ok && username != "" {
			row["WorkDir"] = "/home/" + username
		}
		fields := make([]string, len(header))
		for i, name := range header {
			fields[i] = row[name]
		}
		b.WriteString(strings.Join(fields, report.FlatDelimiter))
		b.WriteByte('\n')
	}
	return b.String(), nil
}
