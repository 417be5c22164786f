// Package filter decides, per suite and test, whether a pass runs it, records
// it as blocklisted, or drops it. The decision is computed as a pure
// disposition plan over the discovery graph; an adapter step translates the
// plan into a pruned engine tree, so the engine's own tree is never mutated.
package filter

import (
	"time"

	"github.com/ethereum-optimism/infra/test-agent/discovery"
	"github.com/ethereum-optimism/infra/test-agent/engine"
	"github.com/ethereum-optimism/infra/test-agent/types"
)

// Disposition is the outcome of filtering one node
type Disposition int

const (
	// Include means the node is part of the run set.
	Include Disposition = iota
	// BlockListed means the node is recorded with a blocklisted
	// pseudo-result and never reaches the engine.
	BlockListed
	// Excluded means the node is silently dropped: neither run nor reported.
	Excluded
)

// Plan maps every discovered node to its disposition for one pass
type Plan struct {
	tests  map[types.Identifier]Disposition
	suites map[types.Identifier]Disposition

	// includeLocators indexes the run set by serialized locator for the
	// prune step, which sees the engine tree rather than the graph.
	includeLocators map[string]struct{}
	// blockedSuiteLocators indexes blocklisted suites the same way.
	blockedSuiteLocators map[string]struct{}

	blockedTests  []types.TestNode
	blockedSuites []blockedSuite
}

type blockedSuite struct {
	id      types.Identifier
	locator types.Locator
}

// Compute applies the selection state to the discovery graph and returns the
// disposition plan for one pass.
//
// Per test: the blocklist always wins; with an empty explicit set everything
// else is included; with a non-empty set only listed locators are included
// and the rest are excluded silently. A blocklisted suite short-circuits its
// whole subtree into a single suite-level record, with no per-test
// evaluation underneath it.
func Compute(g *discovery.Graph, sel types.Selection) *Plan {
	p := &Plan{
		tests:                make(map[types.Identifier]Disposition, len(g.Tests)),
		suites:               make(map[types.Identifier]Disposition, len(g.Suites)),
		includeLocators:      make(map[string]struct{}),
		blockedSuiteLocators: make(map[string]struct{}),
	}

	// Suite pass first: a suite blocklisted directly, or living under a
	// blocklisted ancestor, removes its subtree.
	blockedAncestors := make(map[types.Identifier]bool, len(g.Suites))
	for _, s := range g.Suites {
		// Suites are emitted in pre-order, so the parent's entry is
		// already resolved when the child is visited.
		if s.ParentID != "" && blockedAncestors[s.ParentID] {
			blockedAncestors[s.ID] = true
			p.suites[s.ID] = Excluded
			continue
		}
		loc, ok := g.SuiteLocator(s.ID)
		if ok && sel.Blocklisted(loc) {
			blockedAncestors[s.ID] = true
			p.suites[s.ID] = BlockListed
			p.blockedSuites = append(p.blockedSuites, blockedSuite{id: s.ID, locator: loc})
			p.blockedSuiteLocators[loc.String()] = struct{}{}
			continue
		}
		p.suites[s.ID] = Include
	}

	for _, t := range g.Tests {
		if t.SuiteID != "" && blockedAncestors[t.SuiteID] {
			// Covered by the suite-level record; not individually reported.
			p.tests[t.ID] = Excluded
			continue
		}
		d := dispose(t.Locator, sel)
		p.tests[t.ID] = d
		switch d {
		case Include:
			p.includeLocators[t.Locator.String()] = struct{}{}
		case BlockListed:
			p.blockedTests = append(p.blockedTests, t)
		}
	}
	return p
}

// dispose implements the test-level decision table
func dispose(l types.Locator, sel types.Selection) Disposition {
	if sel.Blocklisted(l) {
		return BlockListed
	}
	if sel.ExplicitEmpty() || sel.Selects(l) {
		return Include
	}
	return Excluded
}

// TestDisposition returns the disposition for a discovered test
func (p *Plan) TestDisposition(id types.Identifier) Disposition {
	return p.tests[id]
}

// SuiteDisposition returns the disposition for a discovered suite
func (p *Plan) SuiteDisposition(id types.Identifier) Disposition {
	return p.suites[id]
}

// Includes reports whether a test locator is in the run set
func (p *Plan) Includes(l types.Locator) bool {
	_, ok := p.includeLocators[l.String()]
	return ok
}

// BlockedResults materializes the blocklisted pseudo-results for this pass,
// stamped with the pass start time.
func (p *Plan) BlockedResults(passStart time.Time) ([]types.TestResult, []types.TestSuiteResult) {
	var tests []types.TestResult
	for _, t := range p.blockedTests {
		tests = append(tests, types.TestResult{
			ID:        t.ID,
			Locator:   t.Locator,
			Status:    types.TestStatusBlockListed,
			StartedAt: passStart,
		})
	}
	var suites []types.TestSuiteResult
	for _, s := range p.blockedSuites {
		suites = append(suites, types.TestSuiteResult{
			ID:        s.id,
			Locator:   s.locator,
			Status:    types.TestStatusBlockListed,
			StartedAt: passStart,
		})
	}
	return tests, suites
}

// Prune builds a filtered copy of the engine tree containing only the run
// set. The input tree is left untouched; the copy is what the engine runs.
// Blocklisted suites disappear as whole subtrees, blocklisted and excluded
// tests are dropped individually, and suites left without any tests are kept
// only while they still have live descendants.
func (p *Plan) Prune(root *engine.Suite) *engine.Suite {
	return p.pruneSuite(root, root.File, nil)
}

func (p *Plan) pruneSuite(suite *engine.Suite, file string, ancestors []string) *engine.Suite {
	if suite == nil {
		return nil
	}
	if suite.File != "" {
		file = suite.File
	}

	childAncestors := ancestors
	if !suite.Container {
		loc := types.NewLocator(file, ancestors, suite.Title)
		if _, blocked := p.blockedSuiteLocators[loc.String()]; blocked {
			return nil
		}
		childAncestors = append(append([]string{}, ancestors...), suite.Title)
	}

	out := &engine.Suite{Title: suite.Title, File: suite.File, Container: suite.Container}
	for _, child := range suite.Suites {
		if kept := p.pruneSuite(child, file, childAncestors); kept != nil {
			out.Suites = append(out.Suites, kept)
		}
	}
	for _, test := range suite.Tests {
		if test == nil {
			continue
		}
		tf := file
		if test.File != "" {
			tf = test.File
		}
		if p.Includes(types.NewLocator(tf, childAncestors, test.Title)) {
			out.Tests = append(out.Tests, test)
		}
	}

	if !suite.Container && len(out.Suites) == 0 && len(out.Tests) == 0 {
		return nil
	}
	return out
}
