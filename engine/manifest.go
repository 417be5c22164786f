package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/test-agent/types"
)

// manifestSuite mirrors the YAML shape of a suite definition
type manifestSuite struct {
	Title  string          `yaml:"title"`
	Suites []manifestSuite `yaml:"suites,omitempty"`
	Tests  []manifestTest  `yaml:"tests,omitempty"`
}

type manifestTest struct {
	Title  string `yaml:"title"`
	Status string `yaml:"status,omitempty"` // pass (default), fail or skip
}

type manifestFile struct {
	Suites []manifestSuite `yaml:"suites,omitempty"`
	Tests  []manifestTest  `yaml:"tests,omitempty"`
}

// Manifests holds suite trees loaded from YAML definition files, keyed by
// repo-relative path, plus the declared outcome for each test.
type Manifests struct {
	Files    map[string]*Suite
	statuses map[string]types.TestStatus
}

// LoadManifests reads every YAML suite definition matching pattern under
// repoRoot. Paths in the returned map are relative to repoRoot so they line
// up with discovery's repo-relative locators.
func LoadManifests(repoRoot, pattern string) (*Manifests, error) {
	matches, err := filepath.Glob(filepath.Join(repoRoot, pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no test files match pattern %q under %s", pattern, repoRoot)
	}

	m := &Manifests{
		Files:    make(map[string]*Suite, len(matches)),
		statuses: make(map[string]types.TestStatus),
	}
	for _, match := range matches {
		rel, err := filepath.Rel(repoRoot, match)
		if err != nil {
			return nil, fmt.Errorf("relativizing %s: %w", match, err)
		}
		data, err := os.ReadFile(match)
		if err != nil {
			return nil, fmt.Errorf("reading test file %s: %w", rel, err)
		}
		var mf manifestFile
		if err := yaml.Unmarshal(data, &mf); err != nil {
			return nil, fmt.Errorf("parsing test file %s: %w", rel, err)
		}
		root := &Suite{Container: true}
		if err := m.buildSuite(root, mf.Suites, mf.Tests, rel); err != nil {
			return nil, fmt.Errorf("test file %s: %w", rel, err)
		}
		m.Files[rel] = root
	}
	return m, nil
}

func (m *Manifests) buildSuite(dst *Suite, suites []manifestSuite, tests []manifestTest, file string) error {
	for _, mt := range tests {
		status, err := parseStatus(mt.Status)
		if err != nil {
			return fmt.Errorf("test %q: %w", mt.Title, err)
		}
		m.statuses[file+"\x00"+mt.Title] = status
		dst.Tests = append(dst.Tests, &Test{Title: mt.Title})
	}
	for _, ms := range suites {
		child := &Suite{Title: ms.Title}
		if err := m.buildSuite(child, ms.Suites, ms.Tests, file); err != nil {
			return err
		}
		dst.Suites = append(dst.Suites, child)
	}
	return nil
}

// Outcome is the OutcomeFunc for the declared statuses. Statuses are keyed by
// file and title; same-titled tests in one file share a declared outcome.
func (m *Manifests) Outcome(test *Test) types.TestStatus {
	if status, ok := m.statuses[test.File+"\x00"+test.Title]; ok {
		return status
	}
	return types.TestStatusPass
}

func parseStatus(s string) (types.TestStatus, error) {
	switch s {
	case "", "pass":
		return types.TestStatusPass, nil
	case "fail":
		return types.TestStatusFail, nil
	case "skip":
		return types.TestStatusSkip, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}
