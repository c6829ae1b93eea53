package model

import (
	"fmt"
	"hash/fnv"
	"sort"
)

// LinkConfig configures the auto-linker.
type LinkConfig struct {
	// MaxLinksPerDocument is the hard ceiling of auto-links applied to
	// one document, across all entities.
	MaxLinksPerDocument int `json:"max_links_per_document"`
	// DefaultMode applies to entities without a stored link rule.
	DefaultMode LinkMode `json:"default_mode"`
	// MinTermLength skips very short terms that would over-match.
	MinTermLength int `json:"min_term_length"`
}

// DefaultLinkConfig returns the default auto-linker configuration.
func DefaultLinkConfig() LinkConfig {
	return LinkConfig{
		MaxLinksPerDocument: 10,
		DefaultMode:         LinkModeFirstOnly,
		MinTermLength:       3,
	}
}

// Validate checks the configuration for out-of-range values.
func (c *LinkConfig) Validate() error {
	if c.MaxLinksPerDocument < 0 {
		return &ValidationError{Field: "max_links_per_document", Reason: "must not be negative"}
	}
	if !c.DefaultMode.Valid() {
		return &ValidationError{Field: "default_mode", Reason: fmt.Sprintf("unknown link mode %q", c.DefaultMode)}
	}
	if c.MinTermLength < 1 {
		return &ValidationError{Field: "min_term_length", Reason: "must be at least 1"}
	}
	return nil
}

// MergeStrategyName selects the per-type merge algorithm.
type MergeStrategyName string

const (
	StrategyMergeProperties MergeStrategyName = "merge_properties"
	StrategyMergeBySameAs   MergeStrategyName = "merge_by_sameAs"
	StrategyMergeByOffers   MergeStrategyName = "merge_by_offers"
	StrategyMergeItems      MergeStrategyName = "merge_items"
	StrategyMergeQuestions  MergeStrategyName = "merge_questions"
	StrategyKeepComplete    MergeStrategyName = "keep_most_complete"
)

// Valid reports whether the strategy name is one of the closed set.
func (s MergeStrategyName) Valid() bool {
	switch s {
	case StrategyMergeProperties, StrategyMergeBySameAs, StrategyMergeByOffers,
		StrategyMergeItems, StrategyMergeQuestions, StrategyKeepComplete:
		return true
	}
	return false
}

// DedupRule configures deduplication for one schema type.
type DedupRule struct {
	MaxInstances   int               `json:"max_instances"`
	Strategy       MergeStrategyName `json:"strategy"`
	PriorityFields []string          `json:"priority_fields,omitempty"`
}

// DedupConfig configures the schema collector.
type DedupConfig struct {
	Enabled bool                 `json:"enabled"`
	Rules   map[string]DedupRule `json:"rules"`
}

// DefaultDedupConfig returns the built-in per-type rules.
func DefaultDedupConfig() DedupConfig {
	return DedupConfig{
		Enabled: true,
		Rules: map[string]DedupRule{
			"Organization": {
				MaxInstances:   1,
				Strategy:       StrategyMergeProperties,
				PriorityFields: []string{"name", "url", "logo", "sameAs"},
			},
			"Person": {
				MaxInstances:   1,
				Strategy:       StrategyMergeBySameAs,
				PriorityFields: []string{"name", "jobTitle", "worksFor", "sameAs"},
			},
			"Article": {
				MaxInstances:   1,
				Strategy:       StrategyKeepComplete,
				PriorityFields: []string{"headline", "description", "author", "publisher", "datePublished"},
			},
			"Product": {
				MaxInstances:   3,
				Strategy:       StrategyMergeByOffers,
				PriorityFields: []string{"name", "sku", "brand", "offers", "aggregateRating"},
			},
			"BreadcrumbList": {
				MaxInstances:   1,
				Strategy:       StrategyMergeItems,
				PriorityFields: []string{"itemListElement"},
			},
			"FAQPage": {
				MaxInstances:   1,
				Strategy:       StrategyMergeQuestions,
				PriorityFields: []string{"mainEntity"},
			},
			"HowTo": {
				MaxInstances:   1,
				Strategy:       StrategyKeepComplete,
				PriorityFields: []string{"name", "description", "step"},
			},
			"Event": {
				MaxInstances:   5,
				Strategy:       StrategyMergeBySameAs,
				PriorityFields: []string{"name", "startDate", "location", "sameAs"},
			},
		},
	}
}

// DefaultDedupRule is the fallback for schema types without a rule.
func DefaultDedupRule() DedupRule {
	return DedupRule{
		MaxInstances: 1,
		Strategy:     StrategyKeepComplete,
	}
}

// RuleFor resolves the rule for a schema type, falling back to the
// default keep_most_complete rule for unknown types.
func (c *DedupConfig) RuleFor(schemaType string) DedupRule {
	if rule, ok := c.Rules[schemaType]; ok {
		return rule
	}
	return DefaultDedupRule()
}

// Validate checks every rule for unknown strategies or invalid caps.
func (c *DedupConfig) Validate() error {
	for schemaType, rule := range c.Rules {
		if rule.MaxInstances < 1 {
			return &ValidationError{Field: schemaType, Reason: "max_instances must be at least 1"}
		}
		if !rule.Strategy.Valid() {
			return &ValidationError{Field: schemaType, Reason: fmt.Sprintf("unknown merge strategy %q", rule.Strategy)}
		}
	}
	return nil
}

// Hash returns a stable hash of the configuration, used to key the
// per-document snapshot cache.
func (c *DedupConfig) Hash() uint64 {
	h := fnv.New64a()
	if c.Enabled {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}

	types := make([]string, 0, len(c.Rules))
	for t := range c.Rules {
		types = append(types, t)
	}
	sort.Strings(types)

	for _, t := range types {
		rule := c.Rules[t]
		fmt.Fprintf(h, "%s|%d|%s|%v;", t, rule.MaxInstances, rule.Strategy, rule.PriorityFields)
	}
	return h.Sum64()
}
