package translate

import (
	"errors"
	"testing"
	"time"

	"github.com/mila-iqia/clockwork-sub001/internal/pkg/scrape/clusterconf"
	"github.com/mila-iqia/clockwork-sub001/internal/pkg/scrape/report"
)

func testCluster(t *testing.T) *clusterconf.Cluster {
	t.Helper()
	loc, err := time.LoadLocation("America/Montreal")
	if err != nil {
		t.Fatal(err)
	}
	return &clusterconf.Cluster{
		Name:         "narval",
		Timezone:     "America/Montreal",
		Location:     loc,
		AccountField: "cc_account_username",
	}
}

func TestJobFromFlat(t *testing.T) {
	cluster := testCluster(t)
	row := map[string]string{
		"Account":      "def-patate-rrg",
		"UID":          "10203",
		"User":         "alice",
		"JobID":        "3114459_7",
		"JobName":      "train.sh",
		"State":        "RUNNING",
		"Partition":    "gpu",
		"NodeList":     "ng10304",
		"WorkDir":      "/home/alice/projects",
		"ExitCode":     "0:0",
		"TimelimitRaw": "2880",
		"Submit":       "2021-05-08T15:37:35",
		"Start":        "2021-05-08T16:00:00",
		"End":          "Unknown",
		"Eligible":     "2021-05-08T15:37:35",
		"ReqTRES":      "billing=2,cpu=4,gres/gpu=1,mem=40G,node=1",
		"AllocTRES":    "billing=2,cpu=4,gres/gpu=1,mem=40G,node=1",
		"Cluster":      "narval",
	}
	slurm, err := JobFromFlat(row, cluster)
	if err != nil {
		t.Fatalf("JobFromFlat: %v", err)
	}

	if slurm.JobID != "3114459_7" || slurm.ArrayJobID != "3114459" || slurm.ArrayTaskID != "7" {
		t.Errorf("array ids: %q / %q / %q", slurm.JobID, slurm.ArrayJobID, slurm.ArrayTaskID)
	}
	if slurm.ClusterName != "narval" {
		t.Errorf("cluster_name = %q", slurm.ClusterName)
	}
	if slurm.Username != "alice" || slurm.Account != "def-patate-rrg" {
		t.Errorf("identity fields: %q %q", slurm.Username, slurm.Account)
	}
	if slurm.Command != "train.sh" {
		t.Errorf("command = %q", slurm.Command)
	}
	if slurm.EndTime != nil {
		t.Errorf("end_time = %v, want nil for Unknown", *slurm.EndTime)
	}
	wantSubmit := time.Date(2021, 5, 8, 19, 37, 35, 0, time.UTC).Unix()
	if slurm.SubmitTime == nil || *slurm.SubmitTime != wantSubmit {
		t.Errorf("submit_time = %v, want %d (Montreal is UTC-4 in May)", slurm.SubmitTime, wantSubmit)
	}
	if slurm.TimeLimit != 2880 {
		t.Errorf("time_limit = %d", slurm.TimeLimit)
	}
	if slurm.TresRequested.NumGPUs != 1 || slurm.TresRequested.Mem != 40960 {
		t.Errorf("tres_requested = %+v", slurm.TresRequested)
	}
}

func TestJobFromFlatSentinels(t *testing.T) {
	cluster := testCluster(t)
	row := map[string]string{
		"JobID":        "200",
		"NodeList":     "None assigned",
		"TimelimitRaw": "",
		"State":        "PENDING",
	}
	slurm, err := JobFromFlat(row, cluster)
	if err != nil {
		t.Fatalf("JobFromFlat: %v", err)
	}
	if slurm.Nodes != "" {
		t.Errorf("nodes = %q, want empty for None assigned", slurm.Nodes)
	}
	if slurm.TimeLimit != 0 {
		t.Errorf("time_limit = %d, want 0 for empty", slurm.TimeLimit)
	}
	if slurm.ArrayJobID != "" || slurm.ArrayTaskID != "" {
		t.Errorf("non-array job grew array ids: %q %q", slurm.ArrayJobID, slurm.ArrayTaskID)
	}
}

func TestJobFromFlatUnknownColumn(t *testing.T) {
	_, err := JobFromFlat(map[string]string{"Nice": "10"}, testCluster(t))
	var ufe *report.UnknownFieldError
	if !errors.As(err, &ufe) {
		t.Fatalf("err = %v, want UnknownFieldError", err)
	}
}

func TestFlatJobColumnsAllHaveHandlers(t *testing.T) {
	for _, c := range FlatJobColumns {
		if _, ok := FlatJobFieldMap[c]; !ok {
			t.Errorf("requested column %q has no handler", c)
		}
	}
}
