package runner

import (
	"sort"

	"github.com/ethereum-optimism/infra/test-agent/types"
)

// DedupPolicy selects the tie-break rule when two result entries in one pass
// share a deduplication key.
type DedupPolicy int

const (
	// DedupKeepLast retains the later-observed entry (default).
	DedupKeepLast DedupPolicy = iota
	// DedupKeepFirst retains the earlier-observed entry.
	DedupKeepFirst
)

// Aggregate folds the raw pass outputs into the execution report.
//
// Per pass: engine-produced results are concatenated with the pass's
// blocklisted pseudo-results, deduplicated by identifier (locator
// serialization when no identifier is available), and, when an explicit
// selection was active, restricted to locators present in that selection;
// blocklisted entries among them stay visible. Passes remain discrete in the
// report so repeated runs of a flaky test surface as distinct outcomes.
func Aggregate(passes []passOutput, policy DedupPolicy) *types.ExecutionReport {
	report := &types.ExecutionReport{}

	for _, out := range passes {
		pass := types.PassResult{
			Group:        out.group,
			Attempt:      out.attempt,
			StartedAt:    out.startedAt,
			Duration:     out.duration,
			Failures:     out.failures,
			TestResults:  dedupTests(append(append([]types.TestResult{}, out.engineTests...), out.blockedTests...), policy),
			SuiteResults: dedupSuites(append(append([]types.TestSuiteResult{}, out.engineSuites...), out.blockedSuites...), policy),
		}
		if !out.sel.ExplicitEmpty() {
			pass.TestResults = restrictToSelection(pass.TestResults, out.sel)
		}
		report.Passes = append(report.Passes, pass)

		for _, tr := range pass.TestResults {
			report.Stats.Total++
			switch tr.Status {
			case types.TestStatusPass:
				report.Stats.Passed++
			case types.TestStatusFail:
				report.Stats.Failed++
			case types.TestStatusSkip:
				report.Stats.Skipped++
			case types.TestStatusBlockListed:
				report.Stats.BlockListed++
			}
		}
		for _, sr := range pass.SuiteResults {
			if sr.Status == types.TestStatusBlockListed {
				report.Stats.BlockListed++
			}
		}
	}

	report.Flakes = flakeStats(report.Passes)
	report.Status = overallStatus(report)
	return report
}

// dedupTests deduplicates a single pass's results by key. The input order is
// aggregation order; the policy picks which colliding entry survives.
func dedupTests(results []types.TestResult, policy DedupPolicy) []types.TestResult {
	index := make(map[string]int, len(results))
	var deduped []types.TestResult
	for _, r := range results {
		key := r.Key()
		if at, dup := index[key]; dup {
			if policy == DedupKeepLast {
				deduped[at] = r
			}
			continue
		}
		index[key] = len(deduped)
		deduped = append(deduped, r)
	}
	return deduped
}

func dedupSuites(results []types.TestSuiteResult, policy DedupPolicy) []types.TestSuiteResult {
	index := make(map[string]int, len(results))
	var deduped []types.TestSuiteResult
	for _, r := range results {
		key := r.Key()
		if at, dup := index[key]; dup {
			if policy == DedupKeepLast {
				deduped[at] = r
			}
			continue
		}
		index[key] = len(deduped)
		deduped = append(deduped, r)
	}
	return deduped
}

// restrictToSelection drops results whose locator is not in the explicit
// selection. Blocklisted results for selected locators are kept.
func restrictToSelection(results []types.TestResult, sel types.Selection) []types.TestResult {
	var kept []types.TestResult
	for _, r := range results {
		if sel.Selects(r.Locator) {
			kept = append(kept, r)
		}
	}
	return kept
}

// flakeStats computes per-test outcome counts across all passes. Only tests
// observed more than once can be classified; blocklisted entries do not
// count as runs.
func flakeStats(passes []types.PassResult) []types.FlakeStats {
	byKey := make(map[string]*types.FlakeStats)
	var order []string
	for _, pass := range passes {
		for _, tr := range pass.TestResults {
			if tr.Status == types.TestStatusBlockListed {
				continue
			}
			key := tr.Key()
			fs, ok := byKey[key]
			if !ok {
				fs = &types.FlakeStats{ID: tr.ID, Locator: tr.Locator}
				byKey[key] = fs
				order = append(order, key)
			}
			fs.TotalRuns++
			switch tr.Status {
			case types.TestStatusPass:
				fs.Passes++
			case types.TestStatusFail:
				fs.Failures++
			}
		}
	}

	var flakes []types.FlakeStats
	for _, key := range order {
		fs := byKey[key]
		if fs.TotalRuns > 0 {
			fs.PassRate = float64(fs.Passes) / float64(fs.TotalRuns)
		}
		if fs.Flaky() {
			flakes = append(flakes, *fs)
		}
	}
	sort.SliceStable(flakes, func(i, j int) bool {
		return flakes[i].PassRate < flakes[j].PassRate
	})
	return flakes
}

// overallStatus derives the report status: fail if any test failed, skip if
// everything that ran was skipped, pass otherwise.
func overallStatus(report *types.ExecutionReport) types.TestStatus {
	anyRan := false
	allSkipped := true
	for _, pass := range report.Passes {
		for _, tr := range pass.TestResults {
			if tr.Status == types.TestStatusBlockListed {
				continue
			}
			anyRan = true
			if tr.Status == types.TestStatusFail {
				return types.TestStatusFail
			}
			if tr.Status != types.TestStatusSkip {
				allSkipped = false
			}
		}
	}
	if anyRan && allSkipped {
		return types.TestStatusSkip
	}
	return types.TestStatusPass
}
