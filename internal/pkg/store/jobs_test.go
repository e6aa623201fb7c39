package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mila-iqia/clockwork-sub001/internal/pkg/scrape/record"
)

func testStore(pool *fakePool) *Store {
	return NewWithPool(pool, slog.New(slog.NewTextHandler(testWriter{}, nil)))
}

// testWriter swallows log output so test runs stay quiet.
type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func makeJob(jobID, cluster, username string) record.JobRecord {
	return record.NewJobRecord(
		record.RawFields{"job_id": jobID},
		record.JobSlurm{JobID: jobID, ClusterName: cluster, Username: username, JobState: "RUNNING"},
		record.AccountFieldMila,
	)
}

func TestUpsertJobsLeavesCWAloneOnConflict(t *testing.T) {
	pool := &fakePool{}
	s := testStore(pool)

	applied, err := s.UpsertJobs(context.Background(), []record.JobRecord{makeJob("1", "mila", "alice")})
	if err != nil || applied != 1 {
		t.Fatalf("applied=%d err=%v", applied, err)
	}
	if len(pool.execs) != 1 {
		t.Fatalf("got %d execs", len(pool.execs))
	}
	sql := pool.execs[0].sql
	if !strings.Contains(sql, "ON CONFLICT (job_id, cluster_name)") {
		t.Errorf("upsert not keyed on the business key:\n%s", sql)
	}
	if !strings.Contains(sql, "raw = EXCLUDED.raw") || !strings.Contains(sql, "slurm = EXCLUDED.slurm") {
		t.Errorf("raw and slurm must be replaced on conflict:\n%s", sql)
	}
	if strings.Contains(sql, "cw = EXCLUDED.cw") {
		t.Errorf("cw must never be touched on conflict:\n%s", sql)
	}

	// The insert still seeds cw for first sight.
	cw := pool.execs[0].args[5].([]byte)
	var decoded record.JobCW
	if err := json.Unmarshal(cw, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.MilaClusterUsername == nil || *decoded.MilaClusterUsername != "alice" {
		t.Errorf("cw on insert = %s", cw)
	}
}

func TestUpsertJobsCountsIndependentWrites(t *testing.T) {
	pool := &fakePool{execErrAt: map[int]error{1: errors.New("constraint violation")}}
	s := testStore(pool)

	recs := []record.JobRecord{
		makeJob("1", "mila", "alice"),
		makeJob("2", "mila", "bob"),
		makeJob("3", "mila", "carol"),
	}
	applied, err := s.UpsertJobs(context.Background(), recs)
	if err != nil {
		t.Fatalf("UpsertJobs: %v", err)
	}
	if applied != 2 {
		t.Errorf("applied = %d, want 2 (one record failed, the rest proceed)", applied)
	}
	if len(pool.execs) != 3 {
		t.Errorf("got %d execs, want 3: a failed record must not stop the batch", len(pool.execs))
	}
}

func TestStampJobsIsSeparateFromUpsert(t *testing.T) {
	pool := &fakePool{}
	s := testStore(pool)

	at := time.Unix(1620502655, 500000000)
	keys := []JobKey{{"1", "mila"}, {"2", "mila"}}
	if err := s.StampJobs(context.Background(), at, keys); err != nil {
		t.Fatal(err)
	}
	if len(pool.execs) != 2 {
		t.Fatalf("got %d execs", len(pool.execs))
	}
	if !strings.Contains(pool.execs[0].sql, "SET last_slurm_update") {
		t.Errorf("sql: %s", pool.execs[0].sql)
	}
	stamp := pool.execs[0].args[0].(float64)
	if stamp != 1620502655.5 {
		t.Errorf("stamp = %v, want fractional seconds", stamp)
	}
}

func TestListJobsFilterComposition(t *testing.T) {
	pool := &fakePool{}
	s := testStore(pool)
	window := 24 * time.Hour

	// An empty result is fine; the point is that the call succeeds for any
	// filter combination and that the username filter spans all namespaces.
	_, err := s.ListJobs(context.Background(), JobFilter{
		Username:     "alice",
		ClusterName:  "mila",
		RelativeTime: &window,
		Now:          time.Unix(1620502655, 0),
	})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
}

func TestListJobsDecodesPartitions(t *testing.T) {
	job := makeJob("7", "mila", "alice")
	raw, _ := json.Marshal(job.Raw)
	slurm, _ := json.Marshal(job.Slurm)
	cw, _ := json.Marshal(job.CW)

	pool := &fakePool{rowsQueue: [][][]any{
		{{string(raw), string(slurm), string(cw), 1620502655.5}},
	}}
	s := testStore(pool)

	jobs, err := s.ListJobs(context.Background(), JobFilter{ClusterName: "mila"})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("got %d jobs", len(jobs))
	}
	got := jobs[0]
	if got.Slurm.JobID != "7" || got.Slurm.Username != "alice" {
		t.Errorf("slurm = %+v", got.Slurm)
	}
	if got.CW.MilaClusterUsername == nil || *got.CW.MilaClusterUsername != "alice" {
		t.Errorf("cw = %+v", got.CW)
	}
	if got.LastSlurmUpdate == nil || *got.LastSlurmUpdate != 1620502655.5 {
		t.Errorf("last_slurm_update = %v", got.LastSlurmUpdate)
	}
}

func TestPruneJobsKeepsRunningJobs(t *testing.T) {
	pool := &fakePool{rowsAffected: 42}
	s := testStore(pool)

	deleted, err := s.PruneJobs(context.Background(), 90*24*time.Hour, time.Unix(1700000000, 0))
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 42 {
		t.Errorf("deleted = %d", deleted)
	}
	sql := pool.execs[0].sql
	if !strings.Contains(sql, "end_time' IS NOT NULL") {
		t.Errorf("prune must never delete jobs without an end time:\n%s", sql)
	}
	cutoff := pool.execs[0].args[0].(int64)
	if cutoff != 1700000000-90*24*3600 {
		t.Errorf("cutoff = %d", cutoff)
	}
}

func TestAssociateUsersRejectsUnknownNamespace(t *testing.T) {
	s := testStore(&fakePool{})
	if _, err := s.AssociateUsers(context.Background(), "mila", "ldap_username"); err == nil {
		t.Error("an unknown account field must not reach the SQL layer")
	}
}
