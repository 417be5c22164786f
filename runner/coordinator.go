// Package runner drives execution passes over locator groups and folds the
// pass outputs into a single execution report.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/test-agent/discovery"
	"github.com/ethereum-optimism/infra/test-agent/engine"
	"github.com/ethereum-optimism/infra/test-agent/filter"
	"github.com/ethereum-optimism/infra/test-agent/metrics"
	"github.com/ethereum-optimism/infra/test-agent/types"
)

// PassExecutionError reports an engine failure mid-pass. It aborts the
// remaining passes; there is no partial-pass skip-and-continue.
type PassExecutionError struct {
	Group   int
	Attempt int
	Err     error
}

func (e *PassExecutionError) Error() string {
	return fmt.Sprintf("pass failed (group %d, attempt %d): %v", e.Group, e.Attempt, e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *PassExecutionError) Unwrap() error {
	return e.Err
}

// Coordinator owns the execution passes for one invocation. All mutable
// accumulator state is scoped to a single pass and handed to the aggregator
// explicitly; nothing leaks between passes or coordinator instances.
type Coordinator struct {
	engine    engine.Engine
	graph     *discovery.Graph
	blocklist types.BlocklistPredicate
	metadata  types.RunMetadata
	dedup     DedupPolicy
	log       log.Logger
	tracer    trace.Tracer
}

// Config holds configuration for creating a coordinator
type Config struct {
	Engine engine.Engine
	// Graph is the immutable discovery snapshot for this invocation. Its
	// file paths are the paths handed to Engine.Load for each pass, so
	// engine and graph must agree on the repository-relative form.
	Graph     *discovery.Graph
	Blocklist types.BlocklistPredicate
	Metadata  types.RunMetadata
	Dedup     DedupPolicy
	Log       log.Logger
}

// NewCoordinator creates a coordinator instance
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if cfg.Graph == nil {
		return nil, fmt.Errorf("discovery graph is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}

	return &Coordinator{
		engine:    cfg.Engine,
		graph:     cfg.Graph,
		blocklist: cfg.Blocklist,
		metadata:  cfg.Metadata,
		dedup:     cfg.Dedup,
		log:       cfg.Log,
		tracer:    otel.Tracer("execution coordinator"),
	}, nil
}

// Run executes the locator groups and returns the aggregated report.
//
// No groups means exactly one pass over everything discovered, with an empty
// explicit set (run-everything-except-blocklisted). Otherwise groups run in
// order, each repeated RepeatCount times. Passes are strictly sequential:
// every pass reconfigures the engine's loaded files and filter hook, so
// concurrent passes would corrupt each other's state. The coordinator
// imposes no internal timeout; ctx is the host's cancellation seam.
func (c *Coordinator) Run(ctx context.Context, groups []types.LocatorGroup) (*types.ExecutionReport, error) {
	runID := uuid.New().String()
	start := time.Now()
	c.log.Info("Starting execution", "run_id", runID, "groups", len(groups))

	if len(groups) == 0 {
		groups = []types.LocatorGroup{{RepeatCount: 1}}
	}

	var passes []passOutput
	for gi, group := range groups {
		if group.RepeatCount < 1 {
			return nil, fmt.Errorf("group %d: repeat count must be >= 1", gi)
		}
		sel := types.NewSelection(group.Locators, c.blocklist)
		for attempt := 1; attempt <= group.RepeatCount; attempt++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			out, err := c.runPass(ctx, gi, attempt, sel)
			if err != nil {
				metrics.RecordError("pass_execution")
				return nil, &PassExecutionError{Group: gi, Attempt: attempt, Err: err}
			}
			passes = append(passes, out)
		}
	}

	report := Aggregate(passes, c.dedup)
	report.RunID = runID
	report.Metadata = c.metadata
	report.Duration = time.Since(start)

	metrics.RecordExecution(c.metadata.RepoID, runID, string(report.Status),
		report.Stats.Total, report.Stats.Passed, report.Stats.Failed,
		report.Stats.BlockListed, report.Duration)
	c.log.Info("Execution complete", "run_id", runID, "passes", len(passes), "status", report.Status)
	return report, nil
}

// passOutput is the raw output of one pass: the engine-produced results,
// the pass-scoped blocklist accumulators, and the selection that produced
// them. The aggregator folds these into the final PassResult.
type passOutput struct {
	group, attempt int
	startedAt      time.Time
	duration       time.Duration
	failures       int
	engineTests    []types.TestResult
	engineSuites   []types.TestSuiteResult
	blockedTests   []types.TestResult
	blockedSuites  []types.TestSuiteResult
	sel            types.Selection
}

// runPass performs a single execution pass: compute the disposition plan,
// load only the files the pass needs, install the plan as the engine's
// pre-run hook, and await completion. Its sole externally-visible side
// effect is the returned PassResult.
func (c *Coordinator) runPass(ctx context.Context, group, attempt int, sel types.Selection) (passOutput, error) {
	ctx, span := c.tracer.Start(ctx, fmt.Sprintf("pass group=%d attempt=%d", group, attempt))
	defer span.End()

	passStart := time.Now()
	plan := filter.Compute(c.graph, sel)

	files := c.passFiles(plan)
	c.log.Debug("Starting pass", "group", group, "attempt", attempt, "files", len(files))

	blockedTests, blockedSuites := plan.BlockedResults(passStart)
	collector := newResultCollector(c.graph)

	var summary *engine.RunSummary
	if len(files) > 0 {
		root, err := c.engine.Load(ctx, files)
		if err != nil {
			return passOutput{}, fmt.Errorf("loading test files: %w", err)
		}
		summary, err = c.engine.Run(ctx, root, engine.RunOptions{
			PreRun: func(root *engine.Suite) (*engine.Suite, error) {
				return plan.Prune(root), nil
			},
			Reporter: collector,
		})
		if err != nil {
			return passOutput{}, err
		}
	} else {
		// Everything in the pass was blocklisted or excluded; the engine
		// is never invoked.
		summary = &engine.RunSummary{}
	}

	out := passOutput{
		group:         group,
		attempt:       attempt,
		startedAt:     passStart,
		duration:      time.Since(passStart),
		failures:      summary.Failures,
		engineTests:   collector.tests,
		engineSuites:  collector.suites,
		blockedTests:  blockedTests,
		blockedSuites: blockedSuites,
		sel:           sel,
	}
	c.log.Debug("Pass complete", "group", group, "attempt", attempt,
		"tests", len(out.engineTests), "blocklisted", len(out.blockedTests), "failures", summary.Failures)
	return out, nil
}

// passFiles returns the files that cover the pass's run set, in discovery
// order. Blocklisted and excluded tests never reach the engine, so their
// files are not loaded.
func (c *Coordinator) passFiles(plan *filter.Plan) []string {
	seen := make(map[string]struct{})
	var files []string
	for _, t := range c.graph.Tests {
		if plan.TestDisposition(t.ID) != filter.Include {
			continue
		}
		if _, ok := seen[t.FilePath]; !ok {
			seen[t.FilePath] = struct{}{}
			files = append(files, t.FilePath)
		}
	}
	return files
}

// resultCollector adapts the engine's reporter stream into pass-scoped
// result slices, stamping identifiers resolved from the discovery graph.
type resultCollector struct {
	byLocator      map[string]types.Identifier
	suiteByLocator map[string]types.Identifier
	tests          []types.TestResult
	suites         []types.TestSuiteResult
}

func newResultCollector(g *discovery.Graph) *resultCollector {
	c := &resultCollector{
		byLocator:      make(map[string]types.Identifier, len(g.Tests)),
		suiteByLocator: make(map[string]types.Identifier, len(g.Suites)),
	}
	for _, t := range g.Tests {
		c.byLocator[t.Locator.String()] = t.ID
	}
	for _, s := range g.Suites {
		if loc, ok := g.SuiteLocator(s.ID); ok {
			c.suiteByLocator[loc.String()] = s.ID
		}
	}
	return c
}

// TestCompleted implements the engine.Reporter interface
func (c *resultCollector) TestCompleted(result types.TestResult) {
	if result.ID == "" {
		result.ID = c.byLocator[result.Locator.String()]
	}
	c.tests = append(c.tests, result)
}

// SuiteCompleted implements the engine.Reporter interface
func (c *resultCollector) SuiteCompleted(result types.TestSuiteResult) {
	if result.ID == "" {
		result.ID = c.suiteByLocator[result.Locator.String()]
	}
	c.suites = append(c.suites, result)
}

var _ engine.Reporter = &resultCollector{}
