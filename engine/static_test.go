package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/test-agent/types"
)

type recordingReporter struct {
	tests  []types.TestResult
	suites []types.TestSuiteResult
}

func (r *recordingReporter) TestCompleted(result types.TestResult)       { r.tests = append(r.tests, result) }
func (r *recordingReporter) SuiteCompleted(result types.TestSuiteResult) { r.suites = append(r.suites, result) }

func testFiles() map[string]*Suite {
	return map[string]*Suite{
		"tests/a.yaml": {
			Suites: []*Suite{
				{
					Title: "Checkout",
					Tests: []*Test{{Title: "applies discount"}, {Title: "computes tax"}},
				},
			},
		},
		"tests/b.yaml": {
			Tests: []*Test{{Title: "smoke"}},
		},
	}
}

func TestStaticEngineLoad(t *testing.T) {
	eng := NewStaticEngine(testFiles(), nil, nil)

	root, err := eng.Load(context.Background(), []string{"tests/a.yaml", "tests/b.yaml"})
	require.NoError(t, err)

	assert.True(t, root.Container)
	require.Len(t, root.Suites, 2)
	for _, fileScope := range root.Suites {
		assert.True(t, fileScope.Container, "file scopes never extend the ancestor chain")
	}
	assert.Equal(t, 3, root.CountTests())
}

func TestStaticEngineLoadUnknownFile(t *testing.T) {
	eng := NewStaticEngine(testFiles(), nil, nil)
	_, err := eng.Load(context.Background(), []string{"tests/missing.yaml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tests/missing.yaml")
}

func TestStaticEngineLoadStampsFiles(t *testing.T) {
	eng := NewStaticEngine(testFiles(), nil, nil)
	root, err := eng.Load(context.Background(), []string{"tests/a.yaml"})
	require.NoError(t, err)

	checkout := root.Suites[0].Suites[0]
	for _, test := range checkout.Tests {
		assert.Equal(t, "tests/a.yaml", test.File)
	}
}

func TestStaticEngineRunReportsResults(t *testing.T) {
	outcome := func(test *Test) types.TestStatus {
		if test.Title == "computes tax" {
			return types.TestStatusFail
		}
		return types.TestStatusPass
	}
	eng := NewStaticEngine(testFiles(), outcome, nil)

	root, err := eng.Load(context.Background(), []string{"tests/a.yaml", "tests/b.yaml"})
	require.NoError(t, err)

	reporter := &recordingReporter{}
	summary, err := eng.Run(context.Background(), root, RunOptions{Reporter: reporter})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failures)
	require.Len(t, reporter.tests, 3)

	byLocator := make(map[string]types.TestStatus)
	for _, r := range reporter.tests {
		byLocator[r.Locator.String()] = r.Status
	}
	assert.Equal(t, types.TestStatusPass, byLocator["tests/a.yaml#Checkout#applies discount"])
	assert.Equal(t, types.TestStatusFail, byLocator["tests/a.yaml#Checkout#computes tax"])
	assert.Equal(t, types.TestStatusPass, byLocator["tests/b.yaml#smoke"])
}

func TestStaticEngineRunAppliesPreRun(t *testing.T) {
	eng := NewStaticEngine(testFiles(), nil, nil)
	root, err := eng.Load(context.Background(), []string{"tests/a.yaml", "tests/b.yaml"})
	require.NoError(t, err)

	reporter := &recordingReporter{}
	_, err = eng.Run(context.Background(), root, RunOptions{
		PreRun: func(root *Suite) (*Suite, error) {
			// Drop everything but the second file scope.
			return &Suite{Container: true, Suites: root.Suites[1:]}, nil
		},
		Reporter: reporter,
	})
	require.NoError(t, err)
	require.Len(t, reporter.tests, 1)
	assert.Equal(t, "tests/b.yaml#smoke", reporter.tests[0].Locator.String())
}

func TestStaticEngineRunPreRunError(t *testing.T) {
	eng := NewStaticEngine(testFiles(), nil, nil)
	root, err := eng.Load(context.Background(), []string{"tests/a.yaml"})
	require.NoError(t, err)

	_, err = eng.Run(context.Background(), root, RunOptions{
		PreRun: func(*Suite) (*Suite, error) {
			return nil, assert.AnError
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestStaticEngineRunHonorsCancellation(t *testing.T) {
	eng := NewStaticEngine(testFiles(), nil, nil)
	root, err := eng.Load(context.Background(), []string{"tests/a.yaml"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = eng.Run(ctx, root, RunOptions{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestStaticEngineSkipsAreNotFailures(t *testing.T) {
	outcome := func(*Test) types.TestStatus { return types.TestStatusSkip }
	eng := NewStaticEngine(testFiles(), outcome, nil)
	root, err := eng.Load(context.Background(), []string{"tests/a.yaml"})
	require.NoError(t, err)

	summary, err := eng.Run(context.Background(), root, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Failures)
}
