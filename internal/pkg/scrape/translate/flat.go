package translate

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mila-iqia/clockwork-sub001/internal/pkg/scrape/clusterconf"
	"github.com/mila-iqia/clockwork-sub001/internal/pkg/scrape/record"
	"github.com/mila-iqia/clockwork-sub001/internal/pkg/scrape/report"
)

// FlatFieldKind enumerates what to do with one flat report column.
type FlatFieldKind int

const (
	// FlatIgnore drops the column.
	FlatIgnore FlatFieldKind = iota
	// FlatCopy stores the column under Target.
	FlatCopy
	// FlatSentinelCopy is FlatCopy with null sentinels mapped to empty.
	FlatSentinelCopy
	// FlatLocalTime parses the column as cluster-local wall-clock time.
	FlatLocalTime
	// FlatTimeLimit parses the column as minutes, empty meaning zero.
	FlatTimeLimit
	// FlatTres parses the column as a TRES summary string.
	FlatTres
	// FlatJobID stores the column as the job id and derives the array ids
	// from the "base_task" form.
	FlatJobID
)

// FlatField describes the treatment of one flat report column.
type FlatField struct {
	Kind   FlatFieldKind
	Target string
}

// FlatJobFieldMap maps the sacct --format column names requested by the
// scraper onto canonical job fields. Like the structured handler table, the
// map is closed: a column without an entry fails the whole report.
var FlatJobFieldMap = map[string]FlatField{
	"Account":      {FlatCopy, "account"},
	"User":         {FlatCopy, "username"},
	"JobID":        {FlatJobID, "job_id"},
	"JobName":      {FlatCopy, "command"},
	"State":        {FlatCopy, "job_state"},
	"Partition":    {FlatCopy, "partition"},
	"NodeList":     {FlatSentinelCopy, "nodes"},
	"WorkDir":      {FlatCopy, "working_directory"},
	"ExitCode":     {FlatCopy, "exit_code"},
	"TimelimitRaw": {FlatTimeLimit, "time_limit"},
	"Submit":       {FlatLocalTime, "submit_time"},
	"Start":        {FlatLocalTime, "start_time"},
	"End":          {FlatLocalTime, "end_time"},
	"Eligible":     {FlatLocalTime, "eligible_time"},
	"ReqTRES":      {FlatTres, "tres_requested"},
	"AllocTRES":    {FlatTres, "tres_allocated"},
	"Cluster":      {FlatIgnore, ""},
	"UID":          {FlatIgnore, ""},
}

// FlatJobColumns is the column list the scraper asks sacct for, in a fixed
// order so that command lines are reproducible.
var FlatJobColumns = []string{
	"Account", "UID", "User", "JobID", "JobName", "State", "Partition",
	"NodeList", "WorkDir", "ExitCode", "TimelimitRaw",
	"Submit", "Start", "End", "Eligible", "ReqTRES", "AllocTRES", "Cluster",
}

// JobFromFlat builds the normalized job partition from one flat report row.
// Timestamps are interpreted in the cluster's configured timezone.
func JobFromFlat(row map[string]string, cluster *clusterconf.Cluster) (record.JobSlurm, error) {
	slurm := record.JobSlurm{ClusterName: cluster.Name}
	for column, value := range row {
		ff, ok := FlatJobFieldMap[column]
		if !ok {
			return record.JobSlurm{}, &report.UnknownFieldError{Entity: "flat job", Field: column}
		}
		if err := applyFlatField(&slurm, ff, value, cluster); err != nil {
			return record.JobSlurm{}, fmt.Errorf("column %s: %w", column, err)
		}
	}
	return slurm, nil
}

func applyFlatField(slurm *record.JobSlurm, ff FlatField, value string, cluster *clusterconf.Cluster) error {
	switch ff.Kind {
	case FlatIgnore:
		return nil

	case FlatCopy, FlatSentinelCopy:
		if ff.Kind == FlatSentinelCopy && IsNullSentinel(value) {
			value = ""
		}
		switch ff.Target {
		case "account":
			slurm.Account = value
		case "username":
			slurm.Username = value
		case "command":
			slurm.Command = value
		case "job_state":
			slurm.JobState = value
		case "partition":
			slurm.Partition = value
		case "nodes":
			slurm.Nodes = value
		case "working_directory":
			slurm.WorkingDirectory = value
		case "exit_code":
			slurm.ExitCode = value
		}
		return nil

	case FlatJobID:
		slurm.JobID = value
		if base, task, ok := strings.Cut(value, "_"); ok {
			slurm.ArrayJobID = base
			slurm.ArrayTaskID = task
		}
		return nil

	case FlatLocalTime:
		epoch, err := LocalTimeToUnix(value, cluster.Location)
		if err != nil {
			return err
		}
		switch ff.Target {
		case "submit_time":
			slurm.SubmitTime = epoch
		case "start_time":
			slurm.StartTime = epoch
		case "end_time":
			slurm.EndTime = epoch
		case "eligible_time":
			slurm.EligibleTime = epoch
		}
		return nil

	case FlatTimeLimit:
		if value == "" {
			slurm.TimeLimit = 0
			return nil
		}
		minutes, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			// "UNLIMITED" and "Partition_Limit" land here.
			slurm.TimeLimit = 0
			return nil
		}
		slurm.TimeLimit = minutes
		return nil

	case FlatTres:
		counts := parseTresString(value)
		if ff.Target == "tres_requested" {
			slurm.TresRequested = counts
		} else {
			slurm.TresAllocated = counts
		}
		return nil
	}
	return nil
}

// parseTresString folds a flat TRES summary such as
// "billing=2,cpu=4,gres/gpu=1,mem=40G,node=1" into counts. Memory is
// normalized to mebibytes to match the structured report.
func parseTresString(s string) record.TresCounts {
	var tc record.TresCounts
	if s == "" {
		return tc
	}
	for _, part := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch {
		case key == "mem":
			tc.Mem = parseMemMB(value)
		case key == "billing":
			tc.Billing, _ = strconv.ParseInt(value, 10, 64)
		case key == "cpu":
			tc.NumCPUs, _ = strconv.ParseInt(value, 10, 64)
		case key == "node":
			tc.NumNodes, _ = strconv.ParseInt(value, 10, 64)
		case strings.HasPrefix(key, "gres/gpu"):
			n, _ := strconv.ParseInt(value, 10, 64)
			tc.NumGPUs += n
		}
	}
	return tc
}

// parseMemMB converts a sacct memory value ("40G", "3800M", "512000K") to
// mebibytes. A bare number is already in mebibytes.
func parseMemMB(s string) int64 {
	if s == "" {
		return 0
	}
	mult := 1.0
	switch s[len(s)-1] {
	case 'K', 'k':
		mult = 1.0 / 1024
		s = s[:len(s)-1]
	case 'M', 'm':
		s = s[:len(s)-1]
	case 'G', 'g':
		mult = 1024
		s = s[:len(s)-1]
	case 'T', 't':
		mult = 1024 * 1024
		s = s[:len(s)-1]
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(math.Round(n * mult))
}
