package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/test-agent/discovery"
	"github.com/ethereum-optimism/infra/test-agent/engine"
	"github.com/ethereum-optimism/infra/test-agent/types"
)

// fixture bundles a static engine and the discovery graph over its files:
//
//	tests/a.yaml: suite A { one, two }
//	tests/b.yaml: suite B { three }
type fixture struct {
	engine engine.Engine
	graph  *discovery.Graph
}

func newFixture(t *testing.T, outcome engine.OutcomeFunc) *fixture {
	t.Helper()
	files := map[string]*engine.Suite{
		"tests/a.yaml": {
			Suites: []*engine.Suite{
				{Title: "A", Tests: []*engine.Test{{Title: "one"}, {Title: "two"}}},
			},
		},
		"tests/b.yaml": {
			Suites: []*engine.Suite{
				{Title: "B", Tests: []*engine.Test{{Title: "three"}}},
			},
		},
	}
	eng := engine.NewStaticEngine(files, outcome, nil)

	root, err := eng.Load(context.Background(), []string{"tests/a.yaml", "tests/b.yaml"})
	require.NoError(t, err)
	walker, err := discovery.NewWalker(discovery.Config{ScopeID: "repo-1"})
	require.NoError(t, err)
	graph, err := walker.Discover(root)
	require.NoError(t, err)

	return &fixture{engine: eng, graph: graph}
}

func (f *fixture) coordinator(t *testing.T, blocklist types.BlocklistPredicate, dedup DedupPolicy) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(Config{
		Engine:    f.engine,
		Graph:     f.graph,
		Blocklist: blocklist,
		Metadata:  types.RunMetadata{RepoID: "repo-1"},
		Dedup:     dedup,
	})
	require.NoError(t, err)
	return c
}

func mustParse(t *testing.T, s string) types.Locator {
	t.Helper()
	l, err := types.ParseLocator(s)
	require.NoError(t, err)
	return l
}

func blocklistOf(entries ...string) types.BlocklistPredicate {
	set := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		set[e] = struct{}{}
	}
	return func(l types.Locator) bool {
		_, ok := set[l.String()]
		return ok
	}
}

func passLocators(pass types.PassResult) []string {
	var out []string
	for _, r := range pass.TestResults {
		out = append(out, r.Locator.String())
	}
	return out
}

func TestNewCoordinatorValidation(t *testing.T) {
	_, err := NewCoordinator(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine is required")

	f := newFixture(t, nil)
	_, err = NewCoordinator(Config{Engine: f.engine})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discovery graph is required")
}

func TestRunEverythingSinglePass(t *testing.T) {
	f := newFixture(t, nil)
	c := f.coordinator(t, nil, DedupKeepLast)

	report, err := c.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "repo-1", report.Metadata.RepoID)
	require.Len(t, report.Passes, 1)
	assert.ElementsMatch(t, []string{
		"tests/a.yaml#A#one",
		"tests/a.yaml#A#two",
		"tests/b.yaml#B#three",
	}, passLocators(report.Passes[0]))
	assert.Equal(t, 3, report.Stats.Total)
	assert.Equal(t, 3, report.Stats.Passed)
	assert.Equal(t, types.TestStatusPass, report.Status)
}

func TestRunStampsIdentifiersFromGraph(t *testing.T) {
	f := newFixture(t, nil)
	c := f.coordinator(t, nil, DedupKeepLast)

	report, err := c.Run(context.Background(), nil)
	require.NoError(t, err)

	wantIDs := make(map[string]types.Identifier)
	for _, test := range f.graph.Tests {
		wantIDs[test.Locator.String()] = test.ID
	}
	for _, r := range report.Passes[0].TestResults {
		assert.Equal(t, wantIDs[r.Locator.String()], r.ID, r.Locator.String())
	}
}

func TestRunGroupsRepeatInOrder(t *testing.T) {
	f := newFixture(t, nil)
	c := f.coordinator(t, nil, DedupKeepLast)

	groups := []types.LocatorGroup{
		{Locators: []types.Locator{mustParse(t, "tests/a.yaml#A#one")}, RepeatCount: 2},
		{Locators: []types.Locator{mustParse(t, "tests/b.yaml#B#three")}, RepeatCount: 1},
	}
	report, err := c.Run(context.Background(), groups)
	require.NoError(t, err)

	require.Len(t, report.Passes, 3, "group repeats produce discrete passes")
	assert.Equal(t, 0, report.Passes[0].Group)
	assert.Equal(t, 1, report.Passes[0].Attempt)
	assert.Equal(t, 0, report.Passes[1].Group)
	assert.Equal(t, 2, report.Passes[1].Attempt)
	assert.Equal(t, 1, report.Passes[2].Group)
	assert.Equal(t, 1, report.Passes[2].Attempt)

	assert.Equal(t, []string{"tests/a.yaml#A#one"}, passLocators(report.Passes[0]))
	assert.Equal(t, []string{"tests/a.yaml#A#one"}, passLocators(report.Passes[1]))
	assert.Equal(t, []string{"tests/b.yaml#B#three"}, passLocators(report.Passes[2]))
	assert.Equal(t, 3, report.Stats.Total, "repeated runs count separately")
}

func TestRunRejectsInvalidRepeatCount(t *testing.T) {
	f := newFixture(t, nil)
	c := f.coordinator(t, nil, DedupKeepLast)

	_, err := c.Run(context.Background(), []types.LocatorGroup{{
		Locators: []types.Locator{mustParse(t, "tests/a.yaml#A#one")},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repeat count must be >= 1")
}

func TestRunBlocklistedTestRecorded(t *testing.T) {
	f := newFixture(t, nil)
	c := f.coordinator(t, blocklistOf("tests/a.yaml#A#two"), DedupKeepLast)

	report, err := c.Run(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, report.Passes, 1)
	byLocator := make(map[string]types.TestResult)
	for _, r := range report.Passes[0].TestResults {
		byLocator[r.Locator.String()] = r
	}
	require.Contains(t, byLocator, "tests/a.yaml#A#two")
	blocked := byLocator["tests/a.yaml#A#two"]
	assert.Equal(t, types.TestStatusBlockListed, blocked.Status)
	assert.NotEmpty(t, blocked.ID, "pseudo-results carry the discovered identifier")
	assert.Equal(t, 1, report.Stats.BlockListed)
	assert.Equal(t, 2, report.Stats.Passed)
	assert.Equal(t, types.TestStatusPass, report.Status, "blocklisted entries never fail a run")
}

func TestRunBlocklistedSuiteShortCircuits(t *testing.T) {
	f := newFixture(t, nil)
	c := f.coordinator(t, blocklistOf("tests/a.yaml#A"), DedupKeepLast)

	report, err := c.Run(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, report.Passes, 1)
	pass := report.Passes[0]
	assert.Equal(t, []string{"tests/b.yaml#B#three"}, passLocators(pass), "descendants of a blocked suite are not individually recorded")

	require.Len(t, pass.SuiteResults, 1)
	assert.Equal(t, "tests/a.yaml#A", pass.SuiteResults[0].Locator.String())
	assert.Equal(t, types.TestStatusBlockListed, pass.SuiteResults[0].Status)
	assert.Equal(t, 1, report.Stats.BlockListed)
}

func TestRunExplicitSelectionHidesUnlistedBlocked(t *testing.T) {
	f := newFixture(t, nil)
	c := f.coordinator(t, blocklistOf("tests/a.yaml#A#two"), DedupKeepLast)

	groups := []types.LocatorGroup{{
		Locators:    []types.Locator{mustParse(t, "tests/a.yaml#A#one")},
		RepeatCount: 1,
	}}
	report, err := c.Run(context.Background(), groups)
	require.NoError(t, err)

	require.Len(t, report.Passes, 1)
	assert.Equal(t, []string{"tests/a.yaml#A#one"}, passLocators(report.Passes[0]),
		"a blocklisted locator outside the explicit selection stays invisible")
}

func TestRunExplicitSelectionKeepsListedBlocked(t *testing.T) {
	f := newFixture(t, nil)
	c := f.coordinator(t, blocklistOf("tests/a.yaml#A#two"), DedupKeepLast)

	groups := []types.LocatorGroup{{
		Locators:    []types.Locator{mustParse(t, "tests/a.yaml#A#two")},
		RepeatCount: 1,
	}}
	report, err := c.Run(context.Background(), groups)
	require.NoError(t, err)

	require.Len(t, report.Passes, 1)
	require.Len(t, report.Passes[0].TestResults, 1)
	assert.Equal(t, types.TestStatusBlockListed, report.Passes[0].TestResults[0].Status)
	assert.Equal(t, 1, report.Stats.BlockListed)
}

func TestRunFlakyTestSurfacesInFlakes(t *testing.T) {
	invocations := 0
	outcome := func(test *engine.Test) types.TestStatus {
		if test.Title != "one" {
			return types.TestStatusPass
		}
		invocations++
		if invocations%2 == 0 {
			return types.TestStatusFail
		}
		return types.TestStatusPass
	}
	f := newFixture(t, outcome)
	c := f.coordinator(t, nil, DedupKeepLast)

	groups := []types.LocatorGroup{{
		Locators:    []types.Locator{mustParse(t, "tests/a.yaml#A#one")},
		RepeatCount: 4,
	}}
	report, err := c.Run(context.Background(), groups)
	require.NoError(t, err)

	require.Len(t, report.Passes, 4, "passes stay discrete so flakes remain visible")
	assert.Equal(t, types.TestStatusFail, report.Status)

	require.Len(t, report.Flakes, 1)
	flake := report.Flakes[0]
	assert.Equal(t, "tests/a.yaml#A#one", flake.Locator.String())
	assert.Equal(t, 4, flake.TotalRuns)
	assert.Equal(t, 2, flake.Passes)
	assert.Equal(t, 2, flake.Failures)
	assert.InDelta(t, 0.5, flake.PassRate, 1e-9)
}

func TestRunCancelledContext(t *testing.T) {
	f := newFixture(t, nil)
	c := f.coordinator(t, nil, DedupKeepLast)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Run(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
}

// failingEngine loads fine and fails every run
type failingEngine struct {
	inner engine.Engine
}

func (f *failingEngine) Load(ctx context.Context, files []string) (*engine.Suite, error) {
	return f.inner.Load(ctx, files)
}

func (f *failingEngine) Run(context.Context, *engine.Suite, engine.RunOptions) (*engine.RunSummary, error) {
	return nil, errors.New("engine crashed")
}

func TestRunEngineFailureAbortsRemainingPasses(t *testing.T) {
	f := newFixture(t, nil)
	c, err := NewCoordinator(Config{
		Engine: &failingEngine{inner: f.engine},
		Graph:  f.graph,
	})
	require.NoError(t, err)

	_, err = c.Run(context.Background(), []types.LocatorGroup{{
		Locators:    []types.Locator{mustParse(t, "tests/a.yaml#A#one")},
		RepeatCount: 3,
	}})
	require.Error(t, err)

	var perr *PassExecutionError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 0, perr.Group)
	assert.Equal(t, 1, perr.Attempt, "the first failing pass aborts the rest")
}

func TestRunSkipOnlyReportIsSkip(t *testing.T) {
	outcome := func(*engine.Test) types.TestStatus { return types.TestStatusSkip }
	f := newFixture(t, outcome)
	c := f.coordinator(t, nil, DedupKeepLast)

	report, err := c.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, types.TestStatusSkip, report.Status)
	assert.Equal(t, 3, report.Stats.Skipped)
}
