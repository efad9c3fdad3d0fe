package reminder

// Rule is a family's reminder configuration for one event category.
type Rule struct {
	FamilyID string
	Category string
	Offsets  []Offset
}

type ruleKey struct {
	familyID string
	category string
}

// Resolver maps (family, category) to the configured offsets.
type Resolver struct {
	rules map[ruleKey][]Offset
}

// NewResolver indexes rules. A later rule for the same pair replaces an earlier one.
func NewResolver(rules []Rule) *Resolver {
	index := make(map[ruleKey][]Offset, len(rules))
	for _, r := range rules {
		index[ruleKey{familyID: r.FamilyID, category: r.Category}] = r.Offsets
	}
	return &Resolver{rules: index}
}

// Offsets returns the offsets configured for the pair, or nil.
func (r *Resolver) Offsets(familyID, category string) []Offset {
	if r == nil {
		return nil
	}
	return r.rules[ruleKey{familyID: familyID, category: category}]
}

// Len reports how many rules were indexed.
func (r *Resolver) Len() int {
	if r == nil {
		return 0
	}
	return len(r.rules)
}
