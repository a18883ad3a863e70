package dirsync

// Rule decides whether an item takes part in a sync
type Rule interface {
	Allows(item *SyncItem) bool
}

// RuleFunc adapts a plain function to a Rule
type RuleFunc func(item *SyncItem) bool

func (f RuleFunc) Allows(item *SyncItem) bool {
	return f(item)
}

// RuleSet is an ordered list of rules. An item passes only if every rule allows it;
// an empty set allows everything.
type RuleSet []Rule

func (rs RuleSet) Allows(item *SyncItem) bool {
	for _, rule := range rs {
		if rule != nil && !rule.Allows(item) {
			return false
		}
	}
	return true
}
