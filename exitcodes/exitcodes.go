package exitcodes

// Exit codes for the test agent.
// These are used to signal the outcome of a run to the calling process.
const (
	// Success indicates every selected test passed (or was skipped).
	Success = 0
	// TestFailure indicates the run completed but at least one test failed.
	TestFailure = 1
	// RuntimeErr indicates the agent itself failed: bad usage, discovery
	// errors, configuration errors, or an engine pass that did not complete.
	RuntimeErr = 2
)
