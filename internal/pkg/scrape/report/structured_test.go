package report

import (
	"errors"
	"reflect"
	"testing"

	"github.com/mila-iqia/clockwork-sub001/internal/pkg/scrape/record"
)

const sacctSample = `{
  "meta": {"Slurm": {"version": {"major": 21, "minor": 8, "micro": 8}, "release": "21.08.8"}},
  "jobs": [
    {
      "account": "mila",
      "allocation_nodes": 1,
      "array": {"job_id": 3114459, "task_id": 1},
      "association": {"account": "mila", "cluster": "mila", "partition": "", "user": "alice"},
      "cluster": "mila",
      "comment": {"administrator": null, "job": null, "system": null},
      "constraints": "x86_64&(32gb|48gb)",
      "derived_exit_code": {"status": "SUCCESS", "return_code": 0},
      "exit_code": {"status": "SUCCESS", "return_code": 0},
      "flags": ["CLEAR_SCHEDULING", "STARTED_ON_BACKFILL"],
      "group": "alice",
      "het": {"job_id": 0, "job_offset": null},
      "job_id": 3114460,
      "kill_request_user": null,
      "mcs": {"label": ""},
      "name": "main.sh",
      "nodes": "cn-c021",
      "partition": "long",
      "priority": 1234,
      "qos": "normal",
      "required": {"CPUs": 4, "memory": 49152},
      "reservation": {"id": 0, "name": 0},
      "state": {"current": "RUNNING", "reason": "None"},
      "steps": [],
      "time": {
        "elapsed": 1000,
        "eligible": 1620502655,
        "end": 0,
        "start": 1620502656,
        "submission": 1620502655,
        "suspended": 0,
        "limit": 2880
      },
      "tres": {
        "allocated": [
          {"type": "cpu", "name": "", "id": 1, "count": 4},
          {"type": "mem", "name": "", "id": 2, "count": 49152},
          {"type": "node", "name": "", "id": 4, "count": 1},
          {"type": "billing", "name": "", "id": 5, "count": 1},
          {"type": "gres", "name": "gpu", "id": 1001, "count": 1}
        ],
        "requested": [
          {"type": "cpu", "name": "", "id": 1, "count": 4},
          {"type": "mem", "name": "", "id": 2, "count": 49152},
          {"type": "node", "name": "", "id": 4, "count": 1},
          {"type": "billing", "name": "", "id": 5, "count": 1},
          {"type": "gres", "name": "gpu", "id": 1001, "count": 1},
          {"type": "energy", "name": "", "id": 3, "count": 9999}
        ]
      },
      "user": "alice",
      "wckey": {"wckey": "", "flags": []},
      "working_directory": "/home/mila/a/alice"
    }
  ]
}`

func TestParseStructuredJobs(t *testing.T) {
	entries, err := ParseStructuredJobs([]byte(sacctSample))
	if err != nil {
		t.Fatalf("ParseStructuredJobs: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]

	want := map[string]any{
		"job_id":        "3114460",
		"array_job_id":  "3114459",
		"array_task_id": "1",
		"cluster_name":  "mila",
		"job_state":     "RUNNING",
		"account":       "mila",
		"partition":     "long",
		"nodes":         "cn-c021",
		"username":      "alice",
		"exit_code":     "SUCCESS:0",
		"command":       "main.sh",
	}
	for k, v := range want {
		if got := e.Fields[k]; got != v {
			t.Errorf("field %q = %v, want %v", k, got, v)
		}
	}

	if got := e.Fields["end_time"].(*int64); got != nil {
		t.Errorf("end_time = %v, want nil (report says 0)", *got)
	}
	if got := e.Fields["start_time"].(*int64); got == nil || *got != 1620502656 {
		t.Errorf("start_time = %v, want 1620502656", got)
	}
	if got := e.Fields["time_limit"].(*int64); got == nil || *got != 2880 {
		t.Errorf("time_limit = %v, want 2880", got)
	}

	alloc := e.Fields["tres_allocated"].(record.TresCounts)
	wantAlloc := record.TresCounts{Mem: 49152, Billing: 1, NumCPUs: 4, NumGPUs: 1, NumNodes: 1}
	if alloc != wantAlloc {
		t.Errorf("tres_allocated = %+v, want %+v", alloc, wantAlloc)
	}
	req := e.Fields["tres_requested"].(record.TresCounts)
	if req != wantAlloc {
		t.Errorf("tres_requested = %+v, want %+v", req, wantAlloc)
	}

	// The raw partition keeps the source verbatim, unused fields included.
	if e.Raw["constraints"] != "x86_64&(32gb|48gb)" {
		t.Errorf("raw constraints lost: %v", e.Raw["constraints"])
	}
}

func TestParseStructuredJobsIsPure(t *testing.T) {
	first, err := ParseStructuredJobs([]byte(sacctSample))
	if err != nil {
		t.Fatal(err)
	}
	second, err := ParseStructuredJobs([]byte(sacctSample))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("parsing the same report twice produced different entries")
	}
}

func TestParseStructuredJobsUnknownFieldIsFatal(t *testing.T) {
	const report = `{
	  "meta": {"Slurm": {"version": {"major": 22, "minor": 5, "micro": 0}}},
	  "jobs": [{"account": "mila", "shiny_new_field": 42}]
	}`
	_, err := ParseStructuredJobs([]byte(report))
	var ufe *UnknownFieldError
	if !errors.As(err, &ufe) {
		t.Fatalf("err = %v, want UnknownFieldError", err)
	}
	if ufe.Field != "shiny_new_field" || ufe.Entity != "job" {
		t.Errorf("got %+v", ufe)
	}
}

func TestParseStructuredRejectsOldVersions(t *testing.T) {
	const report = `{
	  "meta": {"Slurm": {"version": {"major": 20, "minor": 11, "micro": 8}}},
	  "jobs": []
	}`
	_, err := ParseStructuredJobs([]byte(report))
	var uve *UnsupportedVersionError
	if !errors.As(err, &uve) {
		t.Fatalf("err = %v, want UnsupportedVersionError", err)
	}
	if uve.Major != 20 {
		t.Errorf("Major = %d, want 20", uve.Major)
	}
}

const sinfoSample = `{
  "meta": {"Slurm": {"version": {"major": 21, "minor": 8, "micro": 8}, "release": "21.08.8"}},
  "nodes": [
    {
      "architecture": "x86_64",
      "address": "cn-c021",
      "boards": 1,
      "boot_time": 1620000000,
      "comment": "",
      "cores": 20,
      "cpus": 40,
      "features": "x86_64,volta,32gb",
      "gres": "gpu:v100:4(S:0-1)",
      "gres_used": "gpu:v100:2(IDX:0-1)",
      "last_busy": 1620502000,
      "name": "cn-c021",
      "partitions": ["long", "main"],
      "real_memory": 386619,
      "reason": "",
      "reason_changed_at": 0,
      "state": "mixed",
      "state_flags": [],
      "tres": "cpu=40,mem=386619M,billing=72,gres/gpu=4",
      "tres_used": "cpu=4,mem=40G,gres/gpu=2",
      "operating_system": "Linux 4.18.0",
      "slurmd_version": "21.08.8",
      "weight": 1
    }
  ]
}`

func TestParseStructuredNodes(t *testing.T) {
	entries, err := ParseStructuredNodes([]byte(sinfoSample))
	if err != nil {
		t.Fatalf("ParseStructuredNodes: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]

	if e.Fields["name"] != "cn-c021" {
		t.Errorf("name = %v", e.Fields["name"])
	}
	if e.Fields["arch"] != "x86_64" {
		t.Errorf("arch = %v", e.Fields["arch"])
	}
	if e.Fields["addr"] != "cn-c021" {
		t.Errorf("addr = %v", e.Fields["addr"])
	}
	if e.Fields["memory"] != float64(386619) {
		t.Errorf("memory = %v", e.Fields["memory"])
	}
	if e.Fields["gres"] != "gpu:v100:4(S:0-1)" {
		t.Errorf("gres = %v", e.Fields["gres"])
	}
	parts, ok := e.Fields["partitions"].([]any)
	if !ok || len(parts) != 2 || parts[0] != "long" {
		t.Errorf("partitions = %v", e.Fields["partitions"])
	}
	if _, present := e.Fields["operating_system"]; present {
		t.Error("ignored field leaked into canonical fields")
	}
}
