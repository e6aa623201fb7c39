package store

import (
	"context"
	"strings"
	"testing"
	"time"
)

func syncJobRow(id, jobID, cluster string, stamp any) []any {
	return []any{id, jobID, cluster, `{}`, `{"job_id":"` + jobID + `"}`, `{"props":{}}`, stamp}
}

func TestSyncJobsWindowExpiresOnlyOldEndedRows(t *testing.T) {
	src := &fakePool{rowsQueue: [][][]any{{
		syncJobRow("9d2f1b1a-0000-0000-0000-000000000001", "123", "mila", 1620502655.5),
	}}}
	dst := &fakePool{rowsAffected: 3}
	now := time.Unix(1_700_000_000, 0)
	window := 7 * 24 * time.Hour

	copied, deleted, err := testStore(src).SyncJobsTo(context.Background(), testStore(dst), &window, now)
	if err != nil {
		t.Fatal(err)
	}
	if copied != 1 || deleted != 3 {
		t.Errorf("copied = %d, deleted = %d", copied, deleted)
	}
	if len(dst.execs) != 2 {
		t.Fatalf("destination writes = %d, want upsert then expiry", len(dst.execs))
	}
	del := dst.execs[1]
	if !strings.Contains(del.sql, "end_time' IS NOT NULL") || !strings.Contains(del.sql, "< $1") {
		t.Errorf("expiry must filter on the destination's own end_time, got: %s", del.sql)
	}
	if strings.Contains(del.sql, "ANY(") {
		t.Errorf("expiry must not depend on the copied id set, got: %s", del.sql)
	}
	wantCutoff := now.Add(-window).Unix()
	if got := del.args[0].(int64); got != wantCutoff {
		t.Errorf("cutoff = %d, want %d", got, wantCutoff)
	}
}

// A windowed sync against an empty source must not touch running or recent
// destination jobs: the expiry filter only reaches ended-and-old rows.
func TestSyncJobsEmptySourceKeepsDestination(t *testing.T) {
	src := &fakePool{}
	dst := &fakePool{}
	window := 24 * time.Hour

	copied, _, err := testStore(src).SyncJobsTo(context.Background(), testStore(dst), &window, time.Unix(1_700_000_000, 0))
	if err != nil {
		t.Fatal(err)
	}
	if copied != 0 {
		t.Errorf("copied = %d", copied)
	}
	if len(dst.execs) != 1 {
		t.Fatalf("destination writes = %d, want only the expiry", len(dst.execs))
	}
	sql := dst.execs[0].sql
	if !strings.Contains(sql, "end_time' IS NOT NULL") || strings.Contains(sql, "ANY(") {
		t.Errorf("an empty source must not be able to empty the destination, got: %s", sql)
	}
}

func TestSyncJobsNoWindowNeverDeletes(t *testing.T) {
	src := &fakePool{rowsQueue: [][][]any{{
		syncJobRow("9d2f1b1a-0000-0000-0000-000000000002", "456", "narval", nil),
	}}}
	dst := &fakePool{}

	copied, deleted, err := testStore(src).SyncJobsTo(context.Background(), testStore(dst), nil, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if copied != 1 || deleted != 0 {
		t.Errorf("copied = %d, deleted = %d", copied, deleted)
	}
	for _, e := range dst.execs {
		if strings.Contains(e.sql, "DELETE") {
			t.Errorf("delete ran without a window: %s", e.sql)
		}
	}
}

func TestSyncNodesNeverDeletes(t *testing.T) {
	src := &fakePool{rowsQueue: [][][]any{{
		{"9d2f1b1a-0000-0000-0000-000000000003", "cn-a001", "mila", `{}`, `{"name":"cn-a001"}`, `{"gpu":{}}`, nil},
	}}}
	dst := &fakePool{}

	copied, err := testStore(src).SyncNodesTo(context.Background(), testStore(dst))
	if err != nil {
		t.Fatal(err)
	}
	if copied != 1 {
		t.Errorf("copied = %d", copied)
	}
	if len(dst.execs) != 1 || !strings.Contains(dst.execs[0].sql, "INSERT INTO nodes") {
		t.Fatalf("destination writes = %+v, want one node upsert", dst.execs)
	}
	for _, e := range dst.execs {
		if strings.Contains(e.sql, "DELETE") {
			t.Errorf("node sync deleted: %s", e.sql)
		}
	}
}
