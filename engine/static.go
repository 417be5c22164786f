package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/test-agent/types"
)

// OutcomeFunc decides the status of a single test in the static engine.
// Results other than pass count as failures in the run summary.
type OutcomeFunc func(test *Test) types.TestStatus

// StaticEngine is an in-process Engine over a fixed file → suite-tree map.
// It runs tests sequentially and is deterministic, which makes it the
// reference implementation for coordinator and filter behavior.
type StaticEngine struct {
	files   map[string]*Suite
	outcome OutcomeFunc
	log     log.Logger
}

// NewStaticEngine creates a static engine. Each entry in files is the root
// suite for one test file; outcome may be nil, in which case every test
// passes.
func NewStaticEngine(files map[string]*Suite, outcome OutcomeFunc, logger log.Logger) *StaticEngine {
	if logger == nil {
		logger = log.New()
	}
	if outcome == nil {
		outcome = func(*Test) types.TestStatus { return types.TestStatusPass }
	}
	return &StaticEngine{files: files, outcome: outcome, log: logger}
}

// Load implements the Engine interface
func (e *StaticEngine) Load(ctx context.Context, files []string) (*Suite, error) {
	root := &Suite{Container: true}
	for _, f := range files {
		suite, ok := e.files[f]
		if !ok {
			return nil, fmt.Errorf("cannot load test file %q", f)
		}
		fileScope := suite.copyWithFile(f)
		fileScope.Container = true
		root.Suites = append(root.Suites, fileScope)
	}
	e.log.Debug("Loaded suite tree", "files", len(files), "tests", root.CountTests())
	return root, nil
}

// Run implements the Engine interface
func (e *StaticEngine) Run(ctx context.Context, root *Suite, opts RunOptions) (*RunSummary, error) {
	if opts.PreRun != nil {
		filtered, err := opts.PreRun(root)
		if err != nil {
			return nil, fmt.Errorf("pre-run hook: %w", err)
		}
		root = filtered
	}

	summary := &RunSummary{}
	if err := e.runSuite(ctx, root, nil, opts.Reporter, summary); err != nil {
		return nil, err
	}
	return summary, nil
}

func (e *StaticEngine) runSuite(ctx context.Context, suite *Suite, ancestors []string, reporter Reporter, summary *RunSummary) error {
	for _, test := range suite.Tests {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		status := e.outcome(test)
		if status != types.TestStatusPass && status != types.TestStatusSkip {
			summary.Failures++
		}
		if reporter != nil {
			reporter.TestCompleted(types.TestResult{
				Locator:   types.NewLocator(test.File, ancestors, test.Title),
				Status:    status,
				StartedAt: start,
				Duration:  time.Since(start),
			})
		}
	}

	for _, child := range suite.Suites {
		childAncestors := ancestors
		if !child.Container {
			childAncestors = append(append([]string{}, ancestors...), child.Title)
		}
		if err := e.runSuite(ctx, child, childAncestors, reporter, summary); err != nil {
			return err
		}
	}
	return nil
}

// copyWithFile deep-copies a suite definition, stamping the file path onto
// every test so callers can register file-agnostic definitions.
func (s *Suite) copyWithFile(file string) *Suite {
	if s == nil {
		return nil
	}
	out := &Suite{Title: s.Title, Container: s.Container, File: file}
	for _, t := range s.Tests {
		tf := t.File
		if tf == "" {
			tf = file
		}
		out.Tests = append(out.Tests, &Test{Title: t.Title, File: tf})
	}
	for _, child := range s.Suites {
		out.Suites = append(out.Suites, child.copyWithFile(file))
	}
	return out
}

var _ Engine = &StaticEngine{}
