// Package discovery walks the execution engine's live suite tree and emits an
// immutable snapshot graph of suite and test nodes, linked by identifier
// rather than by object reference.
package discovery

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/test-agent/engine"
	"github.com/ethereum-optimism/infra/test-agent/ident"
	"github.com/ethereum-optimism/infra/test-agent/types"
)

// DiscoveryError reports a traversal failure. It carries the partial ancestor
// path reached before the failure; discovery aborts rather than emitting a
// partial, inconsistent graph.
type DiscoveryError struct {
	Path []string
	Err  error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery failed at %q: %v", strings.Join(e.Path, " > "), e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// Graph is the immutable discovery snapshot: flattened suite and test lists
// with parent/child links resolved by identifier.
type Graph struct {
	Suites []types.TestSuiteNode
	Tests  []types.TestNode

	// suiteLocators maps each emitted suite to its locator so the filter can
	// apply suite-level blocklist matching without re-walking the engine tree.
	suiteLocators map[types.Identifier]types.Locator
}

// SuiteLocator returns the locator for an emitted suite
func (g *Graph) SuiteLocator(id types.Identifier) (types.Locator, bool) {
	l, ok := g.suiteLocators[id]
	return l, ok
}

// Files returns the distinct repo-relative file paths of all discovered
// tests, in first-seen order.
func (g *Graph) Files() []string {
	seen := make(map[string]struct{})
	var files []string
	for _, t := range g.Tests {
		if _, ok := seen[t.FilePath]; !ok {
			seen[t.FilePath] = struct{}{}
			files = append(files, t.FilePath)
		}
	}
	return files
}

// Config holds walker configuration
type Config struct {
	// ScopeID scopes all identifiers; nodes from different scopes never
	// collide. Typically the repository id.
	ScopeID string
	// CommitID is stamped onto every test node.
	CommitID string
	// RepoRoot is the fixed repository root; file paths are recorded
	// relative to it so identifiers and paths are portable across machines.
	RepoRoot string
	Log      log.Logger
}

// Walker builds discovery graphs from engine suite trees
type Walker struct {
	cfg Config
}

// NewWalker creates a walker. The graph it produces is built once per
// invocation and immutable thereafter.
func NewWalker(cfg Config) (*Walker, error) {
	if cfg.ScopeID == "" {
		return nil, fmt.Errorf("scope id is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	return &Walker{cfg: cfg}, nil
}

// Discover traverses the engine tree depth-first in pre-order and returns the
// snapshot graph. Container suites (the run root and per-file scopes) group
// children without emitting nodes or extending the ancestor chain; empty
// titles on real suites participate normally.
func (w *Walker) Discover(root *engine.Suite) (*Graph, error) {
	if root == nil {
		return nil, &DiscoveryError{Err: fmt.Errorf("root suite is nil")}
	}

	g := &Graph{suiteLocators: make(map[types.Identifier]types.Locator)}
	seenSuites := make(map[types.Identifier]struct{})

	var ancestors []string
	if err := w.walkSuite(root, root.File, &ancestors, g, seenSuites); err != nil {
		return nil, err
	}

	if err := w.checkConsistency(g); err != nil {
		return nil, err
	}

	w.cfg.Log.Debug("Discovery complete", "suites", len(g.Suites), "tests", len(g.Tests))
	return g, nil
}

// walkSuite maintains the ancestor stack with strict push/defer-pop
// discipline so a failing subtree cannot corrupt sibling traversal.
func (w *Walker) walkSuite(suite *engine.Suite, file string, ancestors *[]string, g *Graph, seen map[types.Identifier]struct{}) (err error) {
	if suite == nil {
		return &DiscoveryError{Path: append([]string{}, *ancestors...), Err: fmt.Errorf("nil suite node")}
	}
	if suite.File != "" {
		file = suite.File
	}

	if !suite.Container {
		parentPath := append([]string{}, *ancestors...)
		*ancestors = append(*ancestors, suite.Title)
		defer func() {
			*ancestors = (*ancestors)[:len(*ancestors)-1]
		}()

		id := ident.Identify(w.cfg.ScopeID, *ancestors)
		node := types.TestSuiteNode{
			ID:   id,
			Name: suite.Title,
		}
		if len(parentPath) > 0 {
			node.ParentID = ident.Identify(w.cfg.ScopeID, parentPath)
		}
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			g.Suites = append(g.Suites, node)
			g.suiteLocators[id] = types.NewLocator(w.relative(file), parentPath, suite.Title)
		}
	}

	for _, test := range suite.Tests {
		if test == nil {
			return &DiscoveryError{Path: append([]string{}, *ancestors...), Err: fmt.Errorf("nil test node")}
		}
		if err := w.emitTest(test, file, *ancestors, g); err != nil {
			return err
		}
	}

	for _, child := range suite.Suites {
		if err := w.walkSuite(child, file, ancestors, g, seen); err != nil {
			return err
		}
	}
	return nil
}

func (w *Walker) emitTest(test *engine.Test, file string, ancestors []string, g *Graph) error {
	if test.File != "" {
		file = test.File
	}

	path := append(append([]string{}, ancestors...), test.Title)
	node := types.TestNode{
		ID:       ident.Identify(w.cfg.ScopeID, path),
		Name:     strings.Join(path, " > "),
		Title:    test.Title,
		CommitID: w.cfg.CommitID,
		FilePath: w.relative(file),
		Locator:  types.NewLocator(w.relative(file), ancestors, test.Title),
	}
	if len(ancestors) > 0 {
		node.SuiteID = ident.Identify(w.cfg.ScopeID, ancestors)
	}
	g.Tests = append(g.Tests, node)
	return nil
}

// checkConsistency verifies that every non-empty SuiteID resolves to a suite
// emitted by this same invocation.
func (w *Walker) checkConsistency(g *Graph) error {
	ids := make(map[types.Identifier]struct{}, len(g.Suites))
	for _, s := range g.Suites {
		ids[s.ID] = struct{}{}
	}
	for _, t := range g.Tests {
		if t.SuiteID == "" {
			continue
		}
		if _, ok := ids[t.SuiteID]; !ok {
			return &DiscoveryError{Err: fmt.Errorf("test %q references unknown suite %s", t.Name, t.SuiteID)}
		}
	}
	return nil
}

// relative records paths relative to the repository root; paths already
// relative are kept as-is.
func (w *Walker) relative(file string) string {
	if w.cfg.RepoRoot == "" || !filepath.IsAbs(file) {
		return file
	}
	rel, err := filepath.Rel(w.cfg.RepoRoot, file)
	if err != nil {
		return file
	}
	return rel
}
