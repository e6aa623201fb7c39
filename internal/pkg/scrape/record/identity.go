package record

// AccountFieldMila and AccountFieldCC name the identity namespace a cluster's
// local accounts belong to. A cluster configuration declares exactly one of
// them; the scraped username is only ever written into that namespace.
const (
	AccountFieldMila = "mila_cluster_username"
	AccountFieldCC   = "cc_account_username"
)

// ResolveIdentity fills the identity namespace named by accountField with the
// username scraped from the report. The other namespaces stay nil so that a
// later association pass (or an operator) can complete them. An identity that
// is already set is never overwritten; cross-namespace inference never
// happens here.
func ResolveIdentity(cw *JobCW, accountField, username string) {
	if username == "" {
		return
	}
	switch accountField {
	case AccountFieldMila:
		if cw.MilaClusterUsername == nil {
			cw.MilaClusterUsername = &username
		}
	case AccountFieldCC:
		if cw.CCAccountUsername == nil {
			cw.CCAccountUsername = &username
		}
	}
}

// NewJobRecord assembles a job record from its raw and normalized partitions
// and seeds the user-owned partition: the identity namespace designated by
// accountField is resolved from the normalized username and props start
// empty. The store only applies this CW partition on first insert.
func NewJobRecord(raw RawFields, slurm JobSlurm, accountField string) JobRecord {
	cw := JobCW{Props: map[string]string{}}
	ResolveIdentity(&cw, accountField, slurm.Username)
	return JobRecord{Raw: raw, Slurm: slurm, CW: cw}
}

// NewNodeRecord assembles a node record with the decomposed GPU descriptor
// as its user-owned partition.
func NewNodeRecord(raw RawFields, slurm NodeSlurm, gpu GpuInfo) NodeRecord {
	return NodeRecord{Raw: raw, Slurm: slurm, CW: NodeCW{GPU: gpu}}
}
