package record

import "testing"

func TestResolveIdentitySingleNamespace(t *testing.T) {
	cases := []struct {
		name         string
		accountField string
		username     string
		wantMila     string
		wantCC       string
	}{
		{"mila cluster account", AccountFieldMila, "alice", "alice", ""},
		{"cc account", AccountFieldCC, "alice42", "", "alice42"},
		{"empty username leaves everything nil", AccountFieldMila, "", "", ""},
		{"unknown account field leaves everything nil", "ldap_username", "alice", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var cw JobCW
			ResolveIdentity(&cw, tc.accountField, tc.username)

			got := func(p *string) string {
				if p == nil {
					return ""
				}
				return *p
			}
			if got(cw.MilaClusterUsername) != tc.wantMila {
				t.Errorf("mila_cluster_username = %q, want %q", got(cw.MilaClusterUsername), tc.wantMila)
			}
			if got(cw.CCAccountUsername) != tc.wantCC {
				t.Errorf("cc_account_username = %q, want %q", got(cw.CCAccountUsername), tc.wantCC)
			}
			if cw.MilaEmailUsername != nil {
				t.Errorf("mila_email_username should never be resolved from a report, got %q", *cw.MilaEmailUsername)
			}
		})
	}
}

func TestResolveIdentityNeverOverwrites(t *testing.T) {
	existing := "bob"
	cw := JobCW{MilaClusterUsername: &existing}
	ResolveIdentity(&cw, AccountFieldMila, "alice")
	if *cw.MilaClusterUsername != "bob" {
		t.Errorf("existing identity overwritten: got %q", *cw.MilaClusterUsername)
	}
}

func TestNewJobRecordSeedsCW(t *testing.T) {
	slurm := JobSlurm{JobID: "123", ClusterName: "mila", Username: "alice"}
	rec := NewJobRecord(RawFields{"job_id": "123"}, slurm, AccountFieldMila)

	if rec.CW.Props == nil || len(rec.CW.Props) != 0 {
		t.Errorf("props should start as an empty map, got %v", rec.CW.Props)
	}
	if rec.CW.MilaClusterUsername == nil || *rec.CW.MilaClusterUsername != "alice" {
		t.Errorf("mila_cluster_username not resolved: %v", rec.CW.MilaClusterUsername)
	}
	jobID, cluster := rec.Key()
	if jobID != "123" || cluster != "mila" {
		t.Errorf("Key() = (%q, %q), want (123, mila)", jobID, cluster)
	}
}
