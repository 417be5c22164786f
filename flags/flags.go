package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
)

const EnvVarPrefix = "TEST_AGENT"

var (
	Pattern = &cli.StringFlag{
		Name:     "pattern",
		Value:    "",
		Required: true,
		EnvVars:  opservice.PrefixEnvVar(EnvVarPrefix, "PATTERN"),
		Usage:    "Glob pattern for test files to discover (eg. 'tests/**/*.spec.js')",
	}
	Diff = &cli.StringSliceFlag{
		Name:    "diff",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "DIFF"),
		Usage:   "Changed files for impact analysis; discovery also reports the impacted-test subset",
	}
	LocatorConfig = &cli.StringFlag{
		Name:    "locator-config",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LOCATOR_CONFIG"),
		Usage:   "Path to locator configuration file (eg. 'locators.yaml'). Omit to run everything not blocklisted.",
	}
	RepoRoot = &cli.StringFlag{
		Name:    "repo-root",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REPO_ROOT"),
		Usage:   "Repository root; file paths are recorded relative to it. Defaults to the working directory.",
	}
	ReportEndpoint = &cli.StringFlag{
		Name:    "report-endpoint",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REPORT_ENDPOINT"),
		Usage:   "URL to publish discovery and execution reports to. Omit to skip publishing.",
	}
	OutputDir = &cli.StringFlag{
		Name:    "output-dir",
		Value:   "results",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "OUTPUT_DIR"),
		Usage:   "Directory to store execution reports",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUN_INTERVAL"),
		Usage:   "Interval between executions (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}

	RepoID = &cli.StringFlag{
		Name:    "repo-id",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REPO_ID"),
		Usage:   "Repository identifier; scopes all suite/test identifiers",
	}
	BuildID = &cli.StringFlag{
		Name:    "build-id",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "BUILD_ID"),
		Usage:   "Build identifier stamped onto reports",
	}
	TaskID = &cli.StringFlag{
		Name:    "task-id",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TASK_ID"),
		Usage:   "Task identifier stamped onto reports",
	}
	OrgID = &cli.StringFlag{
		Name:    "org-id",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ORG_ID"),
		Usage:   "Organization identifier stamped onto reports",
	}
	CommitID = &cli.StringFlag{
		Name:    "commit-id",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "COMMIT_ID"),
		Usage:   "Commit identifier stamped onto every discovered test",
	}
	Branch = &cli.StringFlag{
		Name:    "branch",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "BRANCH"),
		Usage:   "Branch name stamped onto reports",
	}
	Parallelism = &cli.IntFlag{
		Name:    "parallelism",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PARALLELISM"),
		Usage:   "Parallelism count reported with discovery results",
	}
)

var requiredFlags = []cli.Flag{
	Pattern,
}

var identityFlags = []cli.Flag{
	RepoID,
	BuildID,
	TaskID,
	OrgID,
	CommitID,
	Branch,
	Parallelism,
}

// DiscoverFlags are the flags for the discover command
var DiscoverFlags []cli.Flag

// ExecuteFlags are the flags for the execute command
var ExecuteFlags []cli.Flag

func init() {
	common := append([]cli.Flag{}, requiredFlags...)
	common = append(common, identityFlags...)
	common = append(common, RepoRoot, ReportEndpoint)
	common = append(common, oplog.CLIFlags(EnvVarPrefix)...)

	DiscoverFlags = append(append([]cli.Flag{}, common...), Diff)
	ExecuteFlags = append(append([]cli.Flag{}, common...), LocatorConfig, OutputDir, RunInterval)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
