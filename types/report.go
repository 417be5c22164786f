package types

import (
	"fmt"
	"time"
)

// PassResult captures one complete execution pass over a locator subset
type PassResult struct {
	Group        int               `json:"group"`   // index of the locator group that produced this pass
	Attempt      int               `json:"attempt"` // 1-based repeat attempt within the group
	TestResults  []TestResult      `json:"test_results"`
	SuiteResults []TestSuiteResult `json:"suite_results,omitempty"`
	StartedAt    time.Time         `json:"started_at"`
	Duration     time.Duration     `json:"duration"`
	Failures     int               `json:"failures"`
}

// ResultStats tracks test outcome totals across all passes
type ResultStats struct {
	Total       int `json:"total"`
	Passed      int `json:"passed"`
	Failed      int `json:"failed"`
	Skipped     int `json:"skipped"`
	BlockListed int `json:"blocklisted"`
}

// FlakeStats captures per-test outcome counts across repeated passes
type FlakeStats struct {
	ID        Identifier `json:"test_id"`
	Locator   Locator    `json:"locator"`
	TotalRuns int        `json:"total_runs"`
	Passes    int        `json:"passes"`
	Failures  int        `json:"failures"`
	PassRate  float64    `json:"pass_rate"`
}

// Flaky reports whether the test both passed and failed across its runs
func (f FlakeStats) Flaky() bool {
	return f.Passes > 0 && f.Failures > 0
}

// ExecutionReport is the aggregated multi-pass execution report. Passes stay
// discrete so repeat-count runs remain visible as distinct outcomes.
type ExecutionReport struct {
	RunID    string        `json:"run_id"`
	Metadata RunMetadata   `json:"metadata"`
	Passes   []PassResult  `json:"passes"`
	Stats    ResultStats   `json:"stats"`
	Flakes   []FlakeStats  `json:"flakes,omitempty"`
	Status   TestStatus    `json:"status"`
	Duration time.Duration `json:"duration"`
}

// String returns a one-line summary of the report
func (r *ExecutionReport) String() string {
	return fmt.Sprintf("Execution %s: %d passes, %d tests (%d passed, %d failed, %d skipped, %d blocklisted) in %.1fs [%s]",
		r.RunID, len(r.Passes), r.Stats.Total, r.Stats.Passed, r.Stats.Failed,
		r.Stats.Skipped, r.Stats.BlockListed, r.Duration.Seconds(), r.Status)
}

// DiscoveryReport is the published result of a discovery invocation
type DiscoveryReport struct {
	RunID    string          `json:"run_id"`
	Metadata RunMetadata     `json:"metadata"`
	Suites   []TestSuiteNode `json:"suites"`
	Tests    []TestNode      `json:"tests"`
	Impacted []TestNode      `json:"impacted,omitempty"`
}
