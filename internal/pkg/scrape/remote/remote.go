// Package remote runs scheduler commands on cluster login nodes over ssh.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mila-iqia/clockwork-sub001/internal/pkg/scrape/clusterconf"
)

// ExecCommandFunc builds the command to run. Tests substitute it to avoid
// spawning a real ssh.
type ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

// Client runs remote commands with a per-command timeout.
type Client struct {
	execCommand ExecCommandFunc
	timeout     time.Duration
	sshKeyDir   string
	logger      *slog.Logger
}

// New creates a client. sshKeyDir is where the per-cluster key files live,
// typically ~/.ssh.
func New(timeout time.Duration, sshKeyDir string, logger *slog.Logger) *Client {
	return NewWithExecCommand(exec.CommandContext, timeout, sshKeyDir, logger)
}

// NewWithExecCommand creates a client with a custom command builder.
func NewWithExecCommand(fn ExecCommandFunc, timeout time.Duration, sshKeyDir string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{execCommand: fn, timeout: timeout, sshKeyDir: sshKeyDir, logger: logger}
}

// Run executes command on the cluster's login node and returns its stdout.
// A failure carries the remote stderr, which is where sacct and sinfo
// explain themselves.
func (c *Client) Run(ctx context.Context, cluster *clusterconf.Cluster, command string) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := []string{
		"-o", "BatchMode=yes",
		"-o", "StrictHostKeyChecking=accept-new",
		"-p", strconv.Itoa(cluster.SSHPort),
	}
	if cluster.SSHKeyFilename != "" {
		args = append(args, "-i", filepath.Join(c.sshKeyDir, cluster.SSHKeyFilename))
	}
	args = append(args, cluster.RemoteUser+"@"+cluster.RemoteHostname, command)

	cmd := c.execCommand(ctx, "ssh", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.logger.Debug("running remote command", "cluster", cluster.Name, "command", command)
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("remote command on %s: %w", cluster.Name, err)
		}
		return nil, fmt.Errorf("remote command on %s: %w: %s", cluster.Name, err, msg)
	}
	return stdout.Bytes(), nil
}
