package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/test-agent/flags"
	"github.com/ethereum-optimism/infra/test-agent/types"
	"github.com/ethereum/go-ethereum/log"
)

// Config holds the application configuration
type Config struct {
	Pattern        string             // Glob pattern for test files to discover
	RepoRoot       string             // Repository root; file paths are recorded relative to it
	LocatorConfig  string             // Path to locator configuration file (empty = run everything)
	Diff           []string           // Changed files for impact analysis
	ReportEndpoint string             // URL to publish reports to (empty = skip publishing)
	OutputDir      string             // Directory to store execution reports
	RunInterval    time.Duration      // Interval between executions
	RunOnce        bool               // Indicates if the service should exit after one execution
	Metadata       types.RunMetadata  // Identity stamped onto reports and identifiers
	Log            log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	repoRoot := ctx.String(flags.RepoRoot.Name)
	if repoRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		repoRoot = wd
	}
	absRepoRoot, err := filepath.Abs(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for repo root '%s': %w", repoRoot, err)
	}

	locatorConfig := ctx.String(flags.LocatorConfig.Name)
	if locatorConfig != "" {
		locatorConfig, err = filepath.Abs(locatorConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for locator config '%s': %w", locatorConfig, err)
		}
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)
	runOnce := runInterval == 0

	metadata := types.RunMetadata{
		RepoID:      ctx.String(flags.RepoID.Name),
		BuildID:     ctx.String(flags.BuildID.Name),
		TaskID:      ctx.String(flags.TaskID.Name),
		OrgID:       ctx.String(flags.OrgID.Name),
		CommitID:    ctx.String(flags.CommitID.Name),
		Branch:      ctx.String(flags.Branch.Name),
		Parallelism: ctx.Int(flags.Parallelism.Name),
	}

	return &Config{
		Pattern:        ctx.String(flags.Pattern.Name),
		RepoRoot:       absRepoRoot,
		LocatorConfig:  locatorConfig,
		Diff:           ctx.StringSlice(flags.Diff.Name),
		ReportEndpoint: ctx.String(flags.ReportEndpoint.Name),
		OutputDir:      ctx.String(flags.OutputDir.Name),
		RunInterval:    runInterval,
		RunOnce:        runOnce,
		Metadata:       metadata,
		Log:            log,
	}, nil
}

// ScopeID is the identifier scope for all suites and tests of this run.
// Falls back to the repo root when no repository identifier was provided.
func (c *Config) ScopeID() string {
	if c.Metadata.RepoID != "" {
		return c.Metadata.RepoID
	}
	return c.RepoRoot
}
