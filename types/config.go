package types

// LocatorGroupConfig is one pass specification as it appears in the locator
// configuration file. Locators are in serialized form and parsed at load time.
type LocatorGroupConfig struct {
	Locators    []string `yaml:"locators"`
	RepeatCount int      `yaml:"repeat_count,omitempty"`
}

// SelectionConfig represents the complete locator configuration file:
// zero or more locator groups plus the blocklist entries for this run.
// Blocklist entries may name tests or whole suites; a suite entry removes
// the entire subtree from the run.
type SelectionConfig struct {
	Groups    []LocatorGroupConfig `yaml:"groups,omitempty"`
	Blocklist []string             `yaml:"blocklist,omitempty"`
}
