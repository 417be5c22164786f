// Package types contains shared types used across the test-agent orchestration core.
package types

import "time"

// TestStatus represents the possible outcomes of a test execution
type TestStatus string

const (
	TestStatusPass        TestStatus = "pass"
	TestStatusFail        TestStatus = "fail"
	TestStatusSkip        TestStatus = "skip"
	TestStatusBlockListed TestStatus = "blocklisted"
)

// Identifier is the stable content-derived key for a suite or test. It is
// independent of in-memory object identity and is the sole correlation key
// across runs and machines.
type Identifier string

// String implements the Stringer interface for Identifier
func (id Identifier) String() string {
	return string(id)
}

// TestSuiteNode is a discovered suite. ParentID is a lookup key into the
// suite list emitted by the same discovery invocation, never a pointer.
type TestSuiteNode struct {
	ID       Identifier `json:"suite_id"`
	Name     string     `json:"name"`
	ParentID Identifier `json:"parent_id,omitempty"`
}

// TestNode is a discovered test
type TestNode struct {
	ID       Identifier `json:"test_id"`
	Name     string     `json:"name"`
	Title    string     `json:"title"`
	SuiteID  Identifier `json:"suite_id,omitempty"`
	CommitID string     `json:"commit_id"`
	FilePath string     `json:"file_path"`
	Locator  Locator    `json:"locator"`
}

// TestResult captures the outcome of a single test in a single pass
type TestResult struct {
	ID        Identifier    `json:"test_id"`
	Locator   Locator       `json:"locator"`
	Status    TestStatus    `json:"status"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// TestSuiteResult captures the outcome of a suite in a single pass. A
// blocklisted suite produces exactly one of these for its whole subtree.
type TestSuiteResult struct {
	ID        Identifier    `json:"suite_id"`
	Locator   Locator       `json:"locator"`
	Status    TestStatus    `json:"status"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Key returns the deduplication key for a test result: the identifier when
// available, otherwise the locator serialization.
func (r TestResult) Key() string {
	if r.ID != "" {
		return string(r.ID)
	}
	return r.Locator.String()
}

// Key returns the deduplication key for a suite result
func (r TestSuiteResult) Key() string {
	if r.ID != "" {
		return string(r.ID)
	}
	return r.Locator.String()
}

// RunMetadata carries the environment-provided identifiers stamped onto
// every published report.
type RunMetadata struct {
	RepoID      string `json:"repo_id"`
	BuildID     string `json:"build_id"`
	TaskID      string `json:"task_id"`
	OrgID       string `json:"org_id"`
	CommitID    string `json:"commit_id"`
	Branch      string `json:"branch"`
	Parallelism int    `json:"parallelism,omitempty"`
}
