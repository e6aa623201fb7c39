// Package record defines the canonical three-partition job and node records
// shared by the ingestion pipeline and the store.
//
// Each stored entity carries three partitions:
//
//	Raw   : the exact fields returned by the upstream report, kept verbatim
//	        for traceability and debugging. Authoritative for nothing else;
//	        business logic never branches on it.
//	Slurm : the normalized partition with a fixed field set.
//	CW    : the user-owned partition (identities and props for jobs, the
//	        enriched GPU descriptor for nodes). A scrape writes it once, on
//	        insert, and never again.
package record

// RawFields is the opaque, weakly typed payload of one upstream entry.
type RawFields map[string]any

// TresCounts summarizes a TRES list (requested or allocated) into the counts
// the dashboard cares about.
type TresCounts struct {
	Mem      int64 `json:"mem,omitempty"`
	Billing  int64 `json:"billing,omitempty"`
	NumCPUs  int64 `json:"num_cpus,omitempty"`
	NumGPUs  int64 `json:"num_gpus,omitempty"`
	NumNodes int64 `json:"num_nodes,omitempty"`
}

// JobSlurm is the normalized partition of a job record.
//
// JobID is a string on purpose: sacct emits identifiers like "3114459_1.batch"
// so it cannot be an integer. A job id is only unique together with the
// cluster name.
type JobSlurm struct {
	JobID       string `json:"job_id"`
	ArrayJobID  string `json:"array_job_id,omitempty"`
	ArrayTaskID string `json:"array_task_id,omitempty"`
	ClusterName string `json:"cluster_name"`
	JobState    string `json:"job_state"`
	Account     string `json:"account,omitempty"`
	Partition   string `json:"partition,omitempty"`
	Nodes       string `json:"nodes,omitempty"`
	Username    string `json:"username,omitempty"`

	// Timestamps are epoch seconds; nil means the scheduler reported the
	// event as not having happened yet ("Unknown", or a zero in the
	// structured report).
	SubmitTime   *int64 `json:"submit_time"`
	StartTime    *int64 `json:"start_time"`
	EndTime      *int64 `json:"end_time"`
	EligibleTime *int64 `json:"eligible_time"`

	TimeLimit int64  `json:"time_limit"`
	ExitCode  string `json:"exit_code,omitempty"`

	TresRequested TresCounts `json:"tres_requested"`
	TresAllocated TresCounts `json:"tres_allocated"`

	WorkingDirectory string `json:"working_directory,omitempty"`
	// Command is mapped from the report's job-name field. The two are not
	// strictly the same thing; the mapping is a decision inherited from the
	// operators of the original deployment (see translate.FlatJobFieldMap).
	Command string `json:"command,omitempty"`
}

// JobCW is the user-owned partition of a job record. The username fields are
// three distinct namespaces; a scrape fills in at most the one it is certain
// about (see ResolveIdentity) and a later pass may complete the others from
// the users table. Props are arbitrary user-set annotations.
type JobCW struct {
	MilaEmailUsername   *string           `json:"mila_email_username"`
	MilaClusterUsername *string           `json:"mila_cluster_username"`
	CCAccountUsername   *string           `json:"cc_account_username"`
	Props               map[string]string `json:"props"`
}

// JobRecord is one job observation ready for the store.
type JobRecord struct {
	Raw   RawFields `json:"raw"`
	Slurm JobSlurm  `json:"slurm"`
	CW    JobCW     `json:"cw"`
}

// Key returns the business key of the record.
func (j *JobRecord) Key() (jobID, clusterName string) {
	return j.Slurm.JobID, j.Slurm.ClusterName
}

// GpuInfo describes the GPUs attached to a node, decomposed from the GRES
// field. CwName is the disambiguated display name ("v100l" for the 32 GB
// variant of a "v100"); Name is the name exactly as Slurm reports it. The
// zero value means "no GPU" and is a valid node state.
type GpuInfo struct {
	CwName            string `json:"cw_name,omitempty"`
	Name              string `json:"name,omitempty"`
	Number            int64  `json:"number,omitempty"`
	AssociatedSockets string `json:"associated_sockets,omitempty"`
}

// NodeSlurm is the normalized partition of a node record.
type NodeSlurm struct {
	Name        string   `json:"name"`
	ClusterName string   `json:"cluster_name"`
	Arch        string   `json:"arch,omitempty"`
	State       string   `json:"state"`
	StateFlags  []string `json:"state_flags,omitempty"`
	Partitions  []string `json:"partitions,omitempty"`
	Features    string   `json:"features,omitempty"`
	Gres        *string  `json:"gres"`
	GresUsed    string   `json:"gres_used,omitempty"`
	Addr        string   `json:"addr,omitempty"`
	Comment     string   `json:"comment,omitempty"`
	Cores       int64    `json:"cores"`
	CPUs        int64    `json:"cpus"`
	Memory      int64    `json:"memory"`
	LastBusy    *int64   `json:"last_busy"`
	Reason      string   `json:"reason,omitempty"`
	ReasonAt    *int64   `json:"reason_changed_at"`
	Tres        string   `json:"tres,omitempty"`
	TresUsed    string   `json:"tres_used,omitempty"`
}

// NodeCW is the user-owned partition of a node record. It only holds the
// enriched GPU descriptor today; the partition exists for schema symmetry
// with jobs.
type NodeCW struct {
	GPU GpuInfo `json:"gpu"`
}

// NodeRecord is one node observation ready for the store.
type NodeRecord struct {
	Raw   RawFields `json:"raw"`
	Slurm NodeSlurm `json:"slurm"`
	CW    NodeCW    `json:"cw"`
}

// Key returns the business key of the record.
func (n *NodeRecord) Key() (name, clusterName string) {
	return n.Slurm.Name, n.Slurm.ClusterName
}
