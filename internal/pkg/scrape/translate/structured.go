package translate

import (
	"strconv"

	"github.com/mila-iqia/clockwork-sub001/internal/pkg/scrape/record"
	"github.com/mila-iqia/clockwork-sub001/internal/pkg/scrape/report"
)

// JobFromStructured builds the normalized job partition from a structured
// report entry. The cluster name always comes from the scrape configuration,
// not from the report: operators name clusters, schedulers do not.
func JobFromStructured(e report.Entry, clusterName string) record.JobSlurm {
	f := e.Fields
	return record.JobSlurm{
		JobID:            fieldString(f, "job_id"),
		ArrayJobID:       zeroAsEmpty(fieldString(f, "array_job_id")),
		ArrayTaskID:      zeroAsEmpty(fieldString(f, "array_task_id")),
		ClusterName:      clusterName,
		JobState:         fieldString(f, "job_state"),
		Account:          fieldString(f, "account"),
		Partition:        fieldString(f, "partition"),
		Nodes:            fieldString(f, "nodes"),
		Username:         fieldString(f, "username"),
		SubmitTime:       fieldTime(f, "submit_time"),
		StartTime:        fieldTime(f, "start_time"),
		EndTime:          fieldTime(f, "end_time"),
		EligibleTime:     fieldTime(f, "eligible_time"),
		TimeLimit:        derefOrZero(fieldTime(f, "time_limit")),
		ExitCode:         fieldString(f, "exit_code"),
		TresRequested:    fieldTres(f, "tres_requested"),
		TresAllocated:    fieldTres(f, "tres_allocated"),
		WorkingDirectory: fieldString(f, "working_directory"),
		Command:          fieldString(f, "command"),
	}
}

// NodeFromStructured builds the normalized node partition from a structured
// report entry.
func NodeFromStructured(e report.Entry, clusterName string) record.NodeSlurm {
	f := e.Fields
	return record.NodeSlurm{
		Name:        fieldString(f, "name"),
		ClusterName: clusterName,
		Arch:        fieldString(f, "arch"),
		State:       fieldString(f, "state"),
		StateFlags:  fieldStrings(f, "state_flags"),
		Partitions:  fieldStrings(f, "partitions"),
		Features:    fieldString(f, "features"),
		Gres:        fieldNullableString(f, "gres"),
		GresUsed:    fieldString(f, "gres_used"),
		Addr:        fieldString(f, "addr"),
		Comment:     fieldString(f, "comment"),
		Cores:       fieldInt(f, "cores"),
		CPUs:        fieldInt(f, "cpus"),
		Memory:      fieldInt(f, "memory"),
		LastBusy:    nonZeroTime(fieldInt(f, "last_busy")),
		Reason:      fieldString(f, "reason"),
		ReasonAt:    nonZeroTime(fieldInt(f, "reason_changed_at")),
		Tres:        fieldString(f, "tres"),
		TresUsed:    fieldString(f, "tres_used"),
	}
}

func fieldString(f map[string]any, key string) string {
	switch v := f[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	default:
		return ""
	}
}

// zeroAsEmpty drops the "0" an entry reports for array fields when the job
// is not part of an array.
func zeroAsEmpty(s string) string {
	if s == "0" {
		return ""
	}
	return s
}

func fieldTime(f map[string]any, key string) *int64 {
	if v, ok := f[key].(*int64); ok {
		return v
	}
	return nil
}

func fieldInt(f map[string]any, key string) int64 {
	switch v := f[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	default:
		return 0
	}
}

func fieldTres(f map[string]any, key string) record.TresCounts {
	if v, ok := f[key].(record.TresCounts); ok {
		return v
	}
	return record.TresCounts{}
}

func fieldStrings(f map[string]any, key string) []string {
	items, ok := f[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func fieldNullableString(f map[string]any, key string) *string {
	v, present := f[key]
	if !present || v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}

func derefOrZero(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

func nonZeroTime(n int64) *int64 {
	if n == 0 {
		return nil
	}
	return &n
}
