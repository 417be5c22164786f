// Package engine defines the narrow contract between the orchestration core
// and the external test-execution engine, plus a small in-process reference
// engine used by tests and local runs.
//
// The core never reaches inside the engine's scheduling: it hands the engine
// a pre-run hook (the filter seam), observes per-test status transitions
// through the Reporter, and waits for the completion summary.
package engine

import (
	"context"

	"github.com/ethereum-optimism/infra/test-agent/types"
)

// Suite is a node in the engine-owned live suite tree. Container suites
// (the run root and the per-file scopes synthesized by Load) group children
// without contributing to any ancestor-title chain; an empty Title on a
// non-container suite is an ordinary title and participates normally.
type Suite struct {
	Title     string
	File      string
	Container bool
	Suites    []*Suite
	Tests     []*Test
}

// Test is a leaf in the engine-owned suite tree
type Test struct {
	Title string
	File  string
}

// Reporter receives per-test and per-suite status transitions as they occur
type Reporter interface {
	TestCompleted(result types.TestResult)
	SuiteCompleted(result types.TestSuiteResult)
}

// RunOptions configures a single engine run
type RunOptions struct {
	// PreRun intercepts the root suite immediately before running. It
	// returns the tree the engine should actually execute; returning an
	// error aborts the run. A nil PreRun runs the tree as loaded.
	PreRun func(root *Suite) (*Suite, error)

	// Reporter observes status transitions. May be nil.
	Reporter Reporter
}

// RunSummary is the engine's completion signal
type RunSummary struct {
	Failures int
}

// Engine is the external test-execution engine contract
type Engine interface {
	// Load enumerates the suite tree for the given test files. The returned
	// root is an unnamed container whose children are the file-level suites
	// and tests.
	Load(ctx context.Context, files []string) (*Suite, error)

	// Run executes the tree and blocks until the engine signals completion.
	// The engine owns its internal scheduling; the core only awaits the
	// summary. Cancellation is the caller's responsibility via ctx.
	Run(ctx context.Context, root *Suite, opts RunOptions) (*RunSummary, error)
}

// CountTests returns the number of tests in the subtree rooted at s
func (s *Suite) CountTests() int {
	if s == nil {
		return 0
	}
	count := len(s.Tests)
	for _, child := range s.Suites {
		count += child.CountTests()
	}
	return count
}
