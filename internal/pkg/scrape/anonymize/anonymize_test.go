package anonymize

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/mila-iqia/clockwork-sub001/internal/pkg/scrape/report"
)

const jobsReport = `{
  "meta": {"Slurm": {"version": {"major": 21, "minor": 8, "micro": 8}}},
  "jobs": [
    {"account": "mila", "job_id": 1, "name": "train_resnet.sh", "user": "alice",
     "group": "alice", "working_directory": "/home/mila/a/alice",
     "association": {"account": "mila", "user": "alice"},
     "state": {"current": "RUNNING"}, "time": {"submission": 1620502655}},
    {"account": "mila", "job_id": 2, "name": "eval.sh", "user": "bob",
     "group": "bob", "working_directory": "/home/mila/b/bob",
     "association": {"account": "mila", "user": "bob"},
     "state": {"current": "COMPLETED"}, "time": {"submission": 1620502656}}
  ]
}`

func TestJobsReport(t *testing.T) {
	out, err := New().JobsReport([]byte(jobsReport))
	if err != nil {
		t.Fatalf("JobsReport: %v", err)
	}
	s := string(out)
	for _, leaked := range []string{"alice", "bob", "train_resnet", "/home/mila"} {
		if strings.Contains(s, leaked) {
			t.Errorf("output still contains %q", leaked)
		}
	}

	var doc map[string]any
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatal(err)
	}
	jobs := doc["jobs"].([]any)
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs", len(jobs))
	}
	first := jobs[0].(map[string]any)
	second := jobs[1].(map[string]any)

	// Distinct users get distinct pseudonyms; the shared account maps to one.
	if first["user"] == second["user"] {
		t.Error("distinct users collapsed to one pseudonym")
	}
	if first["account"] != second["account"] {
		t.Error("shared account split into two pseudonyms")
	}
	// Structure the pipeline depends on is intact.
	if first["state"].(map[string]any)["current"] != "RUNNING" {
		t.Error("state mangled")
	}
}

func TestJobsReportStillParses(t *testing.T) {
	out, err := New().JobsReport([]byte(jobsReport))
	if err != nil {
		t.Fatal(err)
	}
	// The whole point of a fixture: it must go through the real parser.
	entries, err := report.ParseStructuredJobs(out)
	if err != nil {
		t.Fatalf("anonymized report no longer parses: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("got %d entries", len(entries))
	}
}

func TestFlatJobsReport(t *testing.T) {
	text := "Account<^>User<^>JobID<^>JobName<^>WorkDir\n" +
		"mila<^>alice<^>100<^>train.sh<^>/home/mila/a/alice\n" +
		"mila<^>alice<^>101<^>train.sh<^>/home/mila/a/alice\n"
	out, err := New().FlatJobsReport(text)
	if err != nil {
		t.Fatalf("FlatJobsReport: %v", err)
	}
	if strings.Contains(out, "alice") {
		t.Errorf("output still contains the username:\n%s", out)
	}

	rows, err := report.ParseFlat(out)
	if err != nil {
		t.Fatalf("anonymized flat report no longer parses: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0]["User"] != rows[1]["User"] {
		t.Error("the same user must keep the same pseudonym across rows")
	}
	if rows[0]["JobID"] != "100" {
		t.Error("non-identifying fields must pass through unchanged")
	}
}
