package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mila-iqia/clockwork-sub001/internal/pkg/scrape/record"
)

// minSlurmMajor is the oldest Slurm major release whose JSON layout the
// handler tables below were written against.
const minSlurmMajor = 21

// handlerKind enumerates the closed set of things a handler can do with a
// field. There is no fallthrough: a field either has a handler or parsing
// fails with UnknownFieldError.
type handlerKind int

const (
	kindIgnore handlerKind = iota
	kindCopy
	kindCopyString
	kindRename
	kindExpand
	kindJoin
	kindTres
)

// subField picks one sub-object item and renames it; stringify renders the
// value as a string and zeroToNull maps a zero number to a null timestamp.
type subField struct {
	from       string
	to         string
	stringify  bool
	zeroToNull bool
}

type fieldHandler struct {
	kind     handlerKind
	target   string
	subs     []subField
	joinKeys []string
	joinSep  string
}

func ignore() fieldHandler            { return fieldHandler{kind: kindIgnore} }
func copyField() fieldHandler         { return fieldHandler{kind: kindCopy} }
func copyString() fieldHandler        { return fieldHandler{kind: kindCopyString} }
func rename(to string) fieldHandler   { return fieldHandler{kind: kindRename, target: to} }
func expand(subs ...subField) fieldHandler {
	return fieldHandler{kind: kindExpand, subs: subs}
}
func join(to, sep string, keys ...string) fieldHandler {
	return fieldHandler{kind: kindJoin, target: to, joinSep: sep, joinKeys: keys}
}
func tres() fieldHandler { return fieldHandler{kind: kindTres} }

// jobFieldHandlers maps every top-level field of a structured sacct entry to
// its handler. Fields we have no use for still need an explicit ignore so
// that an upgrade introducing a genuinely new field fails loudly.
var jobFieldHandlers = map[string]fieldHandler{
	"account":   copyField(),
	"array": expand(
		subField{from: "job_id", to: "array_job_id", stringify: true},
		subField{from: "task_id", to: "array_task_id", stringify: true},
	),
	"cluster":   rename("cluster_name"),
	"exit_code": join("exit_code", ":", "status", "return_code"),
	"job_id":    copyString(),
	"name":      rename("command"),
	"nodes":     copyField(),
	"partition": copyField(),
	"state": expand(
		subField{from: "current", to: "job_state"},
	),
	"time": expand(
		subField{from: "limit", to: "time_limit", zeroToNull: true},
		subField{from: "submission", to: "submit_time", zeroToNull: true},
		subField{from: "start", to: "start_time", zeroToNull: true},
		subField{from: "end", to: "end_time", zeroToNull: true},
		subField{from: "eligible", to: "eligible_time", zeroToNull: true},
	),
	"tres":              tres(),
	"user":              rename("username"),
	"working_directory": copyField(),

	"allocation_nodes":  ignore(),
	"association":       ignore(),
	"comment":           ignore(),
	"constraints":       ignore(),
	"container":         ignore(),
	"derived_exit_code": ignore(),
	"distribution":      ignore(),
	"flags":             ignore(),
	"group":             ignore(),
	"het":               ignore(),
	"kill_request_user": ignore(),
	"mcs":               ignore(),
	"priority":          ignore(),
	"qos":               ignore(),
	"required":          ignore(),
	"reservation":       ignore(),
	"steps":             ignore(),
	"wckey":             ignore(),
}

// nodeFieldHandlers is the handler table for structured sinfo entries.
var nodeFieldHandlers = map[string]fieldHandler{
	"architecture":      rename("arch"),
	"address":           rename("addr"),
	"comment":           copyField(),
	"cores":             copyField(),
	"cpus":              copyField(),
	"features":          copyField(),
	"gres":              copyField(),
	"gres_used":         copyField(),
	"last_busy":         copyField(),
	"name":              copyField(),
	"partitions":        copyField(),
	"real_memory":       rename("memory"),
	"reason":            copyField(),
	"reason_changed_at": copyField(),
	"state":             copyField(),
	"state_flags":       copyField(),
	"tres":              copyField(),
	"tres_used":         copyField(),

	"active_features":               ignore(),
	"alloc_cpus":                    ignore(),
	"alloc_memory":                  ignore(),
	"boards":                        ignore(),
	"boot_time":                     ignore(),
	"burstbuffer_network_address":   ignore(),
	"cpu_binding":                   ignore(),
	"cpu_load":                      ignore(),
	"extra":                         ignore(),
	"free_memory":                   ignore(),
	"gres_drained":                  ignore(),
	"hostname":                      ignore(),
	"idle_cpus":                     ignore(),
	"mcs_label":                     ignore(),
	"next_state_after_reboot":       ignore(),
	"next_state_after_reboot_flags": ignore(),
	"operating_system":              ignore(),
	"owner":                         ignore(),
	"port":                          ignore(),
	"reason_set_by_user":            ignore(),
	"slurmd_start_time":             ignore(),
	"slurmd_version":                ignore(),
	"sockets":                       ignore(),
	"temporary_disk":                ignore(),
	"threads":                       ignore(),
	"tres_weighted":                 ignore(),
	"weight":                        ignore(),
}

type structuredReport struct {
	Meta struct {
		Slurm struct {
			Version struct {
				Major int `json:"major"`
				Minor int `json:"minor"`
				Micro int `json:"micro"`
			} `json:"version"`
			Release string `json:"release"`
		} `json:"Slurm"`
	} `json:"meta"`
	Jobs  []record.RawFields `json:"jobs"`
	Nodes []record.RawFields `json:"nodes"`
}

// ParseStructuredJobs parses a structured sacct report into job entries.
func ParseStructuredJobs(data []byte) ([]Entry, error) {
	rep, err := decodeStructured(data)
	if err != nil {
		return nil, err
	}
	return applyHandlers("job", rep.Jobs, jobFieldHandlers)
}

// ParseStructuredNodes parses a structured sinfo report into node entries.
func ParseStructuredNodes(data []byte) ([]Entry, error) {
	rep, err := decodeStructured(data)
	if err != nil {
		return nil, err
	}
	return applyHandlers("node", rep.Nodes, nodeFieldHandlers)
}

func decodeStructured(data []byte) (*structuredReport, error) {
	var rep structuredReport
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("decode structured report: %w", err)
	}
	if rep.Meta.Slurm.Version.Major < minSlurmMajor {
		return nil, &UnsupportedVersionError{Major: rep.Meta.Slurm.Version.Major}
	}
	return &rep, nil
}

func applyHandlers(entity string, raws []record.RawFields, handlers map[string]fieldHandler) ([]Entry, error) {
	entries := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		fields := map[string]any{}

		// Sorted key order keeps the first reported unknown field stable.
		keys := make([]string, 0, len(raw))
		for k := range raw {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, key := range keys {
			h, ok := handlers[key]
			if !ok {
				return nil, &UnknownFieldError{Entity: entity, Field: key}
			}
			applyHandler(h, key, raw[key], fields)
		}
		entries = append(entries, Entry{Raw: raw, Fields: fields})
	}
	return entries, nil
}

func applyHandler(h fieldHandler, key string, value any, fields map[string]any) {
	switch h.kind {
	case kindIgnore:
	case kindCopy:
		fields[key] = value
	case kindCopyString:
		fields[key] = stringify(value)
	case kindRename:
		fields[h.target] = value
	case kindExpand:
		sub, ok := value.(map[string]any)
		if !ok {
			return
		}
		for _, s := range h.subs {
			v, present := sub[s.from]
			if !present {
				continue
			}
			switch {
			case s.zeroToNull:
				fields[s.to] = numberToNullable(v)
			case s.stringify:
				fields[s.to] = stringify(v)
			default:
				fields[s.to] = v
			}
		}
	case kindJoin:
		sub, ok := value.(map[string]any)
		if !ok {
			return
		}
		parts := make([]string, 0, len(h.joinKeys))
		for _, k := range h.joinKeys {
			if v, present := sub[k]; present {
				parts = append(parts, stringify(v))
			}
		}
		fields[h.target] = strings.Join(parts, h.joinSep)
	case kindTres:
		sub, ok := value.(map[string]any)
		if !ok {
			return
		}
		if alloc, ok := sub["allocated"].([]any); ok {
			fields["tres_allocated"] = extractTres(alloc)
		}
		if req, ok := sub["requested"].([]any); ok {
			fields["tres_requested"] = extractTres(req)
		}
	}
}

// extractTres folds a TRES list down to the counts the dashboard uses.
// Anything else in the list ("energy", "fs/disk", licenses) is dropped.
func extractTres(items []any) record.TresCounts {
	var tc record.TresCounts
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		typ, _ := m["type"].(string)
		name, _ := m["name"].(string)
		count := asInt64(m["count"])
		switch {
		case typ == "mem":
			tc.Mem = count
		case typ == "billing":
			tc.Billing = count
		case typ == "cpu":
			tc.NumCPUs = count
		case typ == "node":
			tc.NumNodes = count
		case typ == "gres" && strings.HasPrefix(name, "gpu"):
			tc.NumGPUs = count
		}
	}
	return tc
}

// numberToNullable maps a zero number to a nil timestamp and anything else
// to epoch seconds. Slurm uses 0 for "has not happened".
func numberToNullable(v any) *int64 {
	n := asInt64(v)
	if n == 0 {
		return nil
	}
	return &n
}

func asInt64(v any) int64 {
	switch x := v.(type) {
	case float64:
		return int64(x)
	case int64:
		return x
	case int:
		return int64(x)
	case string:
		n, _ := strconv.ParseInt(x, 10, 64)
		return n
	default:
		return 0
	}
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		// Report numbers are identifiers here, never fractional.
		return strconv.FormatInt(int64(x), 10)
	default:
		return fmt.Sprintf("%v", x)
	}
}
