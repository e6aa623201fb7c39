// Package clusterconf loads the per-cluster scrape configuration from a TOML
// file. Each cluster entry describes how to reach the remote scheduler, which
// report format it speaks and how its local accounts map onto identity
// namespaces.
package clusterconf

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml"

	"github.com/mila-iqia/clockwork-sub001/internal/pkg/scrape/record"
)

// Report formats a cluster can be configured with. The structured format is
// the JSON emitted by recent Slurm releases; the flat format is the
// delimiter-separated output of older deployments.
const (
	FormatStructured = "structured"
	FormatFlat       = "flat"
)

// Cluster is the configuration of one scrape target.
type Cluster struct {
	Name string `toml:"-"`

	// Timezone is the IANA name of the cluster's local timezone, e.g.
	// "America/Montreal". Flat reports print local wall-clock times, so the
	// scraper cannot interpret them without it.
	Timezone string         `toml:"timezone"`
	Location *time.Location `toml:"-"`

	// AccountField names the identity namespace that usernames on this
	// cluster belong to (record.AccountFieldMila or record.AccountFieldCC).
	AccountField string `toml:"account_field"`

	// Allocations restricts job scraping to the listed accounts. The single
	// element "*" scrapes every account; an empty list scrapes no jobs at
	// all (nodes are still scraped).
	Allocations []string `toml:"allocations"`

	// ReportFormat selects the sacct output dialect, FormatStructured by
	// default.
	ReportFormat string `toml:"report_format"`

	RemoteUser     string `toml:"remote_user"`
	RemoteHostname string `toml:"remote_hostname"`
	SSHPort        int    `toml:"ssh_port"`
	SSHKeyFilename string `toml:"ssh_key_filename"`

	SacctPath string `toml:"sacct_path"`
	SinfoPath string `toml:"sinfo_path"`
}

// Config is the full clusters file.
type Config struct {
	Clusters map[string]*Cluster `toml:"clusters"`
}

// WantsAllAccounts reports whether job scraping is unrestricted.
func (c *Cluster) WantsAllAccounts() bool {
	return len(c.Allocations) == 1 && c.Allocations[0] == "*"
}

// SkipsJobs reports whether job scraping is disabled for this cluster.
func (c *Cluster) SkipsJobs() bool { return len(c.Allocations) == 0 }

// Load reads and validates the clusters file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read clusters file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a clusters file.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode clusters file: %w", err)
	}
	if len(cfg.Clusters) == 0 {
		return nil, fmt.Errorf("clusters file declares no clusters")
	}
	for name, c := range cfg.Clusters {
		c.Name = name
		if err := c.validate(); err != nil {
			return nil, fmt.Errorf("cluster %q: %w", name, err)
		}
	}
	return &cfg, nil
}

func (c *Cluster) validate() error {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	c.Location = loc

	switch c.AccountField {
	case record.AccountFieldMila, record.AccountFieldCC:
	default:
		return fmt.Errorf("account_field must be %q or %q, got %q",
			record.AccountFieldMila, record.AccountFieldCC, c.AccountField)
	}

	if c.ReportFormat == "" {
		c.ReportFormat = FormatStructured
	}
	switch c.ReportFormat {
	case FormatStructured, FormatFlat:
	default:
		return fmt.Errorf("unknown report_format %q", c.ReportFormat)
	}

	// A misconfigured path that points at some other binary would fail in a
	// confusing way on the remote side, so reject it up front.
	if c.SacctPath != "" && !strings.HasSuffix(c.SacctPath, "sacct") {
		return fmt.Errorf("sacct_path %q does not end with sacct", c.SacctPath)
	}
	if c.SinfoPath != "" && !strings.HasSuffix(c.SinfoPath, "sinfo") {
		return fmt.Errorf("sinfo_path %q does not end with sinfo", c.SinfoPath)
	}

	if c.RemoteHostname == "" || c.RemoteUser == "" {
		return fmt.Errorf("remote_user and remote_hostname are required")
	}
	if c.SSHPort == 0 {
		c.SSHPort = 22
	}
	return nil
}
