package types

// BlocklistPredicate reports whether a locator is blocklisted
type BlocklistPredicate func(Locator) bool

// Selection is the per-execution selection state: the explicit locator set
// (possibly empty) and the blocklist predicate. It is constructed once per
// execution invocation and read-only during filtering.
type Selection struct {
	explicit  map[string]struct{}
	blocklist BlocklistPredicate
}

// NewSelection builds a Selection. A nil or empty locator list means
// "select everything not blocklisted". A nil blocklist never matches.
func NewSelection(locators []Locator, blocklist BlocklistPredicate) Selection {
	s := Selection{blocklist: blocklist}
	if len(locators) > 0 {
		s.explicit = make(map[string]struct{}, len(locators))
		for _, l := range locators {
			s.explicit[l.String()] = struct{}{}
		}
	}
	return s
}

// ExplicitEmpty reports whether no explicit locators were supplied
func (s Selection) ExplicitEmpty() bool {
	return len(s.explicit) == 0
}

// Selects reports whether the locator is in the explicit set
func (s Selection) Selects(l Locator) bool {
	_, ok := s.explicit[l.String()]
	return ok
}

// Blocklisted reports whether the locator matches the blocklist predicate
func (s Selection) Blocklisted(l Locator) bool {
	return s.blocklist != nil && s.blocklist(l)
}

// LocatorGroup is a pass specification: a locator subset and how many times
// to repeat the pass over it.
type LocatorGroup struct {
	Locators    []Locator `json:"locators" yaml:"locators"`
	RepeatCount int       `json:"repeat_count" yaml:"repeat_count"`
}
