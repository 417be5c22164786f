package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/test-agent/depends"
	"github.com/ethereum-optimism/infra/test-agent/discovery"
	"github.com/ethereum-optimism/infra/test-agent/engine"
	"github.com/ethereum-optimism/infra/test-agent/exitcodes"
	"github.com/ethereum-optimism/infra/test-agent/metrics"
	"github.com/ethereum-optimism/infra/test-agent/registry"
	"github.com/ethereum-optimism/infra/test-agent/reporting"
	"github.com/ethereum-optimism/infra/test-agent/runner"
	"github.com/ethereum-optimism/infra/test-agent/types"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
)

// Mode selects the operation the service performs
type Mode string

const (
	ModeDiscover Mode = "discover"
	ModeExecute  Mode = "execute"
)

// agent implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &agent{}

// agent is the test-execution orchestrator service: it discovers the suite
// tree, applies the locator selection, and coordinates execution passes.
type agent struct {
	ctx         context.Context
	config      *Config
	version     string
	mode        Mode
	registry    *registry.Registry
	engine      engine.Engine
	graph       *discovery.Graph
	files       []string
	reporter    *reporting.Client
	store       runner.ReportStore
	result      *types.ExecutionReport

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(ctx context.Context, config *Config, version string, mode Mode, shutdownCallback func(error)) (*agent, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating test agent with config",
		"mode", mode,
		"pattern", config.Pattern,
		"repoRoot", config.RepoRoot,
		"locatorConfig", config.LocatorConfig,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce)

	reg, err := registry.NewRegistry(registry.Config{
		Log:               config.Log,
		LocatorConfigFile: config.LocatorConfig,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}

	return &agent{
		ctx:              ctx,
		config:           config,
		version:          version,
		mode:             mode,
		registry:         reg,
		reporter:         reporting.NewClient(config.Log),
		store:            runner.NewJSONStore(config.OutputDir),
		done:             make(chan struct{}),
		shutdownCallback: shutdownCallback,
	}, nil
}

// Start runs the selected operation, periodically when an interval is set.
// Start implements the cliapp.Lifecycle interface.
func (a *agent) Start(ctx context.Context) error {
	// Set up panic recovery to ensure we exit with code 2 for runtime errors
	defer func() {
		if r := recover(); r != nil {
			a.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	a.ctx = ctx
	a.done = make(chan struct{})
	a.running.Store(true)

	if err := a.discover(ctx); err != nil {
		a.config.Log.Error("Runtime error during discovery", "error", err)
		return cli.Exit(NewRuntimeError(err).Error(), exitcodes.RuntimeErr)
	}

	if a.mode == ModeDiscover {
		// Discovery is always run-once.
		go func() {
			a.shutdownCallback(nil)
		}()
		return nil
	}

	if a.config.RunOnce {
		a.config.Log.Info("Starting test agent in run-once mode")
	} else {
		a.config.Log.Info("Starting test agent in continuous mode", "interval", a.config.RunInterval)
	}

	// Run immediately on startup
	if err := a.execute(ctx); err != nil {
		a.config.Log.Error("Runtime error running tests", "error", err)
		return cli.Exit(err.Error(), exitcodes.RuntimeErr)
	}

	// If in run-once mode, trigger shutdown and return
	if a.config.RunOnce {
		a.config.Log.Info("Execution completed, exiting (run-once mode)")

		// Check if any tests failed and return appropriate exit code
		if a.result != nil && a.result.Status == types.TestStatusFail {
			a.config.Log.Warn("Run-once execution completed with failures, returning exit code 1")
			return NewTestFailureError(a.result.String())
		}

		go func() {
			a.shutdownCallback(nil)
		}()
		return nil
	}

	// Start a goroutine for periodic execution
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.config.Log.Debug("Starting periodic execution goroutine", "interval", a.config.RunInterval)

		for {
			select {
			case <-time.After(a.config.RunInterval):
				if !a.running.Load() {
					a.config.Log.Debug("Service stopped, exiting periodic execution")
					return
				}

				a.config.Log.Info("Running periodic execution")
				if err := a.execute(a.ctx); err != nil {
					a.config.Log.Error("Error running periodic execution", "error", err)
				}

			case <-a.done:
				a.config.Log.Debug("Done signal received, stopping periodic execution")
				return

			case <-ctx.Done():
				a.config.Log.Debug("Context canceled, stopping periodic execution")
				a.running.Store(false)
				return
			}
		}
	}()
	a.config.Log.Debug("test agent started successfully")
	return nil
}

// discover loads the test files matching the configured pattern, walks the
// engine's suite tree into the discovery graph, and publishes the discovery
// report. The graph is built once and reused by every execution pass.
func (a *agent) discover(ctx context.Context) error {
	manifests, err := engine.LoadManifests(a.config.RepoRoot, a.config.Pattern)
	if err != nil {
		return fmt.Errorf("loading test definitions: %w", err)
	}
	eng := engine.NewStaticEngine(manifests.Files, manifests.Outcome, a.config.Log)

	files := make([]string, 0, len(manifests.Files))
	for f := range manifests.Files {
		files = append(files, f)
	}
	sort.Strings(files)

	root, err := eng.Load(ctx, files)
	if err != nil {
		return fmt.Errorf("loading suite tree: %w", err)
	}

	walker, err := discovery.NewWalker(discovery.Config{
		ScopeID:  a.config.ScopeID(),
		CommitID: a.config.Metadata.CommitID,
		RepoRoot: a.config.RepoRoot,
		Log:      a.config.Log,
	})
	if err != nil {
		return fmt.Errorf("creating discovery walker: %w", err)
	}
	graph, err := walker.Discover(root)
	if err != nil {
		metrics.RecordErrorDetails("discovery", err)
		return err
	}
	a.engine = eng
	a.graph = graph
	a.files = files

	runID := uuid.New().String()
	metrics.RecordDiscovery(a.config.Metadata.RepoID, runID, len(graph.Suites), len(graph.Tests))

	report := &types.DiscoveryReport{
		RunID:    runID,
		Metadata: a.config.Metadata,
		Suites:   graph.Suites,
		Tests:    graph.Tests,
	}

	if len(a.config.Diff) > 0 {
		analyzer := depends.NewFileAnalyzer(a.config.Log)
		deps, err := analyzer.ListDependencies(ctx, files)
		if err != nil {
			return fmt.Errorf("analyzing dependencies: %w", err)
		}
		report.Impacted = depends.FindImpactedTests(deps, graph.Tests, a.config.Diff)
		a.config.Log.Info("Impact analysis complete",
			"changed", len(a.config.Diff), "impacted", len(report.Impacted))
	}

	a.publish(ctx, reporting.NewDiscoveryPayload(report))

	a.config.Log.Info("Test discovery completed",
		"run_id", runID, "files", len(files), "suites", len(graph.Suites), "tests", len(graph.Tests))
	return nil
}

// execute runs the configured locator groups and processes the results
func (a *agent) execute(ctx context.Context) error {
	coordinator, err := runner.NewCoordinator(runner.Config{
		Engine:    a.engine,
		Graph:     a.graph,
		Blocklist: a.registry.Blocklisted,
		Metadata:  a.config.Metadata,
		Log:       a.config.Log,
	})
	if err != nil {
		return NewRuntimeError(err)
	}

	result, err := coordinator.Run(ctx, a.registry.Groups())
	if err != nil {
		// This is a runtime error (not a test failure)
		return NewRuntimeError(err)
	}
	a.result = result

	if path, err := a.store.Store(result); err != nil {
		a.config.Log.Error("Failed to store execution report", "error", err)
	} else {
		a.config.Log.Info("Stored execution report", "path", path)
	}

	a.printResultsTable(result)
	fmt.Println(result.String())

	a.publish(ctx, reporting.NewExecutionPayload(result))

	a.config.Log.Info("Test execution completed", "run_id", result.RunID, "status", result.Status)
	return nil
}

// publish posts a report payload to the configured endpoint. Publishing is
// best-effort: a failure is surfaced in the logs but never fails the run.
func (a *agent) publish(ctx context.Context, payload reporting.Payload) {
	if a.config.ReportEndpoint == "" {
		return
	}
	if err := a.reporter.Post(ctx, a.config.ReportEndpoint, payload); err != nil {
		metrics.RecordErrorDetails("reporting", err)
		a.config.Log.Error("Failed to publish report", "kind", payload.Kind, "error", err)
	}
}

// Stop stops the test agent service.
// Stop implements the cliapp.Lifecycle interface.
func (a *agent) Stop(ctx context.Context) error {
	a.config.Log.Info("Stopping test agent")

	if !a.running.Load() {
		a.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}

	// Update running state first to prevent new runs
	a.running.Store(false)

	a.config.Log.Debug("Sending done signal to goroutines")
	close(a.done)

	a.config.Log.Info("test agent stopped successfully")
	return nil
}

// Stopped returns true if the test agent service is stopped.
// Stopped implements the cliapp.Lifecycle interface.
func (a *agent) Stopped() bool {
	return !a.running.Load()
}

// printResultsTable prints the execution results to the console, one section
// per pass so repeated passes stay visible as distinct outcomes.
func (a *agent) printResultsTable(result *types.ExecutionReport) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("Test Execution Results (%s)", formatDuration(result.Duration)))

	t.AppendHeader(table.Row{
		"Type", "ID", "Duration", "Tests", "Passed", "Failed", "Skipped", "Blocklisted", "Status",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Type", AutoMerge: true},
		{Name: "ID", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Tests", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Skipped", Align: text.AlignRight},
		{Name: "Blocklisted", Align: text.AlignRight},
	})

	for _, pass := range result.Passes {
		stats := passStats(pass)
		t.AppendRow(table.Row{
			"Pass",
			fmt.Sprintf("group %d attempt %d", pass.Group, pass.Attempt),
			formatDuration(pass.Duration),
			"-",
			stats.Passed,
			stats.Failed,
			stats.Skipped,
			stats.BlockListed,
			getResultString(passStatus(pass)),
		})

		for i, test := range pass.TestResults {
			prefix := "├──"
			if i == len(pass.TestResults)-1 {
				prefix = "└──"
			}
			t.AppendRow(table.Row{
				"Test",
				fmt.Sprintf("%s %s", prefix, test.Locator.String()),
				formatDuration(test.Duration),
				"1",
				boolToInt(test.Status == types.TestStatusPass),
				boolToInt(test.Status == types.TestStatusFail),
				boolToInt(test.Status == types.TestStatusSkip),
				boolToInt(test.Status == types.TestStatusBlockListed),
				getResultString(test.Status),
			})
		}
		t.AppendSeparator()
	}

	// Update the table style setting based on result status
	if result.Status == types.TestStatusPass {
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	} else if result.Status == types.TestStatusSkip {
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	} else {
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		"",
		formatDuration(result.Duration),
		result.Stats.Total,
		result.Stats.Passed,
		result.Stats.Failed,
		result.Stats.Skipped,
		result.Stats.BlockListed,
		getResultString(result.Status),
	})

	t.Render()

	if len(result.Flakes) > 0 {
		a.printFlakeTable(result.Flakes)
	}
}

// printFlakeTable prints tests that both passed and failed across passes
func (a *agent) printFlakeTable(flakes []types.FlakeStats) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Flaky Tests")
	t.AppendHeader(table.Row{"Test", "Runs", "Passes", "Failures", "Pass Rate"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Test", WidthMax: 70, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Runs", Align: text.AlignRight},
		{Name: "Passes", Align: text.AlignRight},
		{Name: "Failures", Align: text.AlignRight},
		{Name: "Pass Rate", Align: text.AlignRight},
	})
	for _, f := range flakes {
		t.AppendRow(table.Row{
			f.Locator.String(),
			f.TotalRuns,
			f.Passes,
			f.Failures,
			fmt.Sprintf("%.0f%%", f.PassRate*100),
		})
	}
	t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	t.Render()
}

// passStats tallies one pass's outcomes
func passStats(pass types.PassResult) types.ResultStats {
	var stats types.ResultStats
	for _, r := range pass.TestResults {
		stats.Total++
		switch r.Status {
		case types.TestStatusPass:
			stats.Passed++
		case types.TestStatusFail:
			stats.Failed++
		case types.TestStatusSkip:
			stats.Skipped++
		case types.TestStatusBlockListed:
			stats.BlockListed++
		}
	}
	return stats
}

// passStatus derives a single status for a pass row
func passStatus(pass types.PassResult) types.TestStatus {
	if pass.Failures > 0 {
		return types.TestStatusFail
	}
	for _, r := range pass.TestResults {
		if r.Status == types.TestStatusFail {
			return types.TestStatusFail
		}
	}
	return types.TestStatusPass
}

// Helper function to convert bool to int
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// getResultString returns a colored string representing the test result
func getResultString(status types.TestStatus) string {
	switch status {
	case types.TestStatusPass:
		return "✓ pass"
	case types.TestStatusSkip:
		return "- skip"
	case types.TestStatusBlockListed:
		return "⊘ blocklisted"
	default:
		return "✗ fail"
	}
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// WaitForShutdown blocks until all goroutines have terminated.
// This is useful in tests to ensure complete cleanup before moving to the next test.
func (a *agent) WaitForShutdown(ctx context.Context) error {
	a.config.Log.Debug("Waiting for all goroutines to terminate")

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.config.Log.Debug("All goroutines terminated successfully")
		return nil
	case <-ctx.Done():
		a.config.Log.Warn("Timed out waiting for goroutines to terminate", "error", ctx.Err())
		return ctx.Err()
	}
}
