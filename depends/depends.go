// Package depends defines the contract with the static dependency/impact
// analyzer. The core consumes it only during discovery, in diff mode, to
// narrow the discovered tests down to those impacted by a changed-file set.
package depends

import (
	"context"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/test-agent/types"
)

// DependencyMap maps a test file to the set of source files it depends on
type DependencyMap map[string]map[string]struct{}

// Analyzer computes static dependencies for test files
type Analyzer interface {
	ListDependencies(ctx context.Context, testFiles []string) (DependencyMap, error)
}

// FindImpactedTests returns the discovered tests whose dependency set
// intersects the changed-file set. Tests whose file has no entry in the map
// are treated as impacted, so an incomplete analysis errs toward running
// more rather than silently dropping tests.
func FindImpactedTests(deps DependencyMap, tests []types.TestNode, changed []string) []types.TestNode {
	if len(changed) == 0 {
		return nil
	}
	changedSet := make(map[string]struct{}, len(changed))
	for _, f := range changed {
		changedSet[f] = struct{}{}
	}

	var impacted []types.TestNode
	for _, t := range tests {
		fileDeps, analyzed := deps[t.FilePath]
		if !analyzed {
			impacted = append(impacted, t)
			continue
		}
		for dep := range fileDeps {
			if _, hit := changedSet[dep]; hit {
				impacted = append(impacted, t)
				break
			}
		}
	}
	return impacted
}

// FileAnalyzer is the reference Analyzer: each test file depends on itself
// and nothing else. It makes diff mode behave as "run the tests in changed
// test files" until a real source-graph analyzer is plugged in.
type FileAnalyzer struct {
	log log.Logger
}

// NewFileAnalyzer creates a file-level analyzer
func NewFileAnalyzer(logger log.Logger) *FileAnalyzer {
	if logger == nil {
		logger = log.New()
	}
	return &FileAnalyzer{log: logger}
}

// ListDependencies implements the Analyzer interface
func (a *FileAnalyzer) ListDependencies(_ context.Context, testFiles []string) (DependencyMap, error) {
	deps := make(DependencyMap, len(testFiles))
	for _, f := range testFiles {
		deps[f] = map[string]struct{}{f: {}}
	}
	a.log.Debug("Listed dependencies", "files", len(testFiles))
	return deps, nil
}

var _ Analyzer = &FileAnalyzer{}
