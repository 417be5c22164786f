// Package registry loads the locator configuration file that drives an
// execution invocation: the locator groups (pass specifications) and the
// blocklist entries.
package registry

import (
	"fmt"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/test-agent/types"
)

// SelectionError reports a malformed locator configuration file. It is fatal
// before any pass starts.
type SelectionError struct {
	Path string
	Err  error
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("invalid locator configuration %q: %v", e.Path, e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *SelectionError) Unwrap() error {
	return e.Err
}

// Registry holds the parsed selection state for one execution invocation
type Registry struct {
	config    Config
	groups    []types.LocatorGroup
	blocklist map[string]struct{}
	mu        sync.RWMutex
}

// Config contains registry configuration
type Config struct {
	Log log.Logger
	// LocatorConfigFile is the path to the locator configuration file.
	// Empty means run-everything mode: no groups, no blocklist.
	LocatorConfigFile string
}

// NewRegistry creates a registry, loading the locator configuration file if
// one was supplied.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}

	r := &Registry{
		config:    cfg,
		blocklist: make(map[string]struct{}),
	}

	if cfg.LocatorConfigFile != "" {
		if err := r.loadSelection(cfg.LocatorConfigFile); err != nil {
			return nil, err
		}
	}

	cfg.Log.Debug("Registry loaded", "groups", len(r.groups), "blocklist", len(r.blocklist))
	return r, nil
}

// loadSelection parses the locator configuration file
func (r *Registry) loadSelection(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return &SelectionError{Path: path, Err: fmt.Errorf("reading config file: %w", err)}
	}

	var cfg types.SelectionConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return &SelectionError{Path: path, Err: fmt.Errorf("parsing config file: %w", err)}
	}

	groups, err := parseGroups(cfg.Groups)
	if err != nil {
		return &SelectionError{Path: path, Err: err}
	}
	r.groups = groups

	for _, entry := range cfg.Blocklist {
		loc, err := types.ParseLocator(entry)
		if err != nil {
			return &SelectionError{Path: path, Err: err}
		}
		r.blocklist[loc.String()] = struct{}{}
	}
	return nil
}

func parseGroups(configs []types.LocatorGroupConfig) ([]types.LocatorGroup, error) {
	var groups []types.LocatorGroup
	for i, gc := range configs {
		repeat := gc.RepeatCount
		if repeat == 0 {
			repeat = 1
		}
		if repeat < 1 {
			return nil, fmt.Errorf("group %d: repeat_count must be >= 1, got %d", i, gc.RepeatCount)
		}
		if len(gc.Locators) == 0 {
			return nil, fmt.Errorf("group %d: at least one locator is required", i)
		}

		group := types.LocatorGroup{RepeatCount: repeat}
		for _, entry := range gc.Locators {
			loc, err := types.ParseLocator(entry)
			if err != nil {
				return nil, fmt.Errorf("group %d: %w", i, err)
			}
			group.Locators = append(group.Locators, loc)
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// Groups returns the configured locator groups in file order. Empty means
// run-everything mode.
func (r *Registry) Groups() []types.LocatorGroup {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.groups
}

// Blocklisted is the blocklist predicate for this invocation. It matches a
// locator against the loaded blocklist entries by serialized form.
func (r *Registry) Blocklisted(l types.Locator) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.blocklist[l.String()]
	return ok
}

// GetConfig returns the registry configuration
func (r *Registry) GetConfig() Config {
	return r.config
}
