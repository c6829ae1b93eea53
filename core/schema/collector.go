package schema

import (
	"log/slog"
	"time"

	"github.com/siherrmann/canon/model"
)

// Collector gathers structured-data fragments during one page render
// and deduplicates them on flush. A collector is single-use per render:
// after Flush it ignores further fragments until Reset.
type Collector struct {
	config      model.DedupConfig
	knownSameAs map[string]bool
	fragments   []*model.Fragment
	flushed     bool
	logger      *slog.Logger
}

// NewCollector creates a collector. knownSameAs holds the sameAs URLs
// of dictionary entities, used to boost fragments that resolve to a
// known entity; nil is fine.
func NewCollector(config model.DedupConfig, knownSameAs map[string]bool, logger *slog.Logger) *Collector {
	return &Collector{
		config:      config,
		knownSameAs: knownSameAs,
		logger:      logger,
	}
}

// Collect adds a fragment. Its priority is scored at collection time.
// Fragments arriving after Flush are dropped with a log line.
func (c *Collector) Collect(fragment *model.Fragment) {
	if c.flushed {
		c.logger.Warn("Dropping fragment collected after flush",
			slog.String("type", fragment.Type),
			slog.String("source", fragment.Source))
		return
	}
	if fragment.Type == "" {
		c.logger.Warn("Dropping fragment without type", slog.String("source", fragment.Source))
		return
	}

	if fragment.CollectedAt.IsZero() {
		fragment.CollectedAt = time.Now()
	}
	fragment.Priority = c.score(fragment)

	c.fragments = append(c.fragments, fragment)
}

// Collected returns the number of fragments gathered so far.
func (c *Collector) Collected() int {
	return len(c.fragments)
}

// Flushed reports whether the collector has already flushed.
func (c *Collector) Flushed() bool {
	return c.flushed
}

// Flush deduplicates the collected fragments per type and returns the
// survivors in collection order together with the conflict report.
// The collector accepts no further fragments until Reset.
func (c *Collector) Flush() ([]*model.Fragment, []*model.Conflict) {
	c.flushed = true

	if !c.config.Enabled {
		return c.fragments, nil
	}

	// group per type, preserving first-seen type order
	var typeOrder []string
	byType := map[string][]*model.Fragment{}
	for _, fragment := range c.fragments {
		if _, ok := byType[fragment.Type]; !ok {
			typeOrder = append(typeOrder, fragment.Type)
		}
		byType[fragment.Type] = append(byType[fragment.Type], fragment)
	}

	var kept []*model.Fragment
	var conflicts []*model.Conflict
	for _, schemaType := range typeOrder {
		rule := c.config.RuleFor(schemaType)
		group := byType[schemaType]

		// within the instance cap nothing needs merging
		if len(group) <= rule.MaxInstances {
			kept = append(kept, group...)
			continue
		}

		strategy := StrategyFor(rule.Strategy)
		typeKept, typeConflicts := strategy.Merge(group, rule)
		kept = append(kept, typeKept...)
		conflicts = append(conflicts, typeConflicts...)
	}

	if len(conflicts) > 0 {
		c.logger.Info("Deduplicated fragments",
			slog.Int("collected", len(c.fragments)),
			slog.Int("kept", len(kept)),
			slog.Int("conflicts", len(conflicts)))
	}

	return kept, conflicts
}

// Reset re-arms the collector for another render.
func (c *Collector) Reset() {
	c.fragments = nil
	c.flushed = false
}

// completeness bonuses per schema type: the properties that make the
// type actually useful to search engines.
var typeBonusFields = map[string][][]string{
	"Article":      {{"author", "publisher"}},
	"Product":      {{"offers", "aggregateRating"}},
	"Organization": {{"logo", "contactPoint"}},
}

// score rates a fragment 0-100 by how complete and well-connected it is.
func (c *Collector) score(fragment *model.Fragment) int {
	score := 2 * len(fragment.Properties)
	if score > 50 {
		score = 50
	}

	sameAs := fragment.SameAs()
	if len(sameAs) > 0 {
		score += 15
		for _, url := range sameAs {
			if c.knownSameAs[url] {
				score += 20
				break
			}
		}
	}

	for _, required := range typeBonusFields[fragment.Type] {
		all := true
		for _, field := range required {
			if _, ok := fragment.Properties[field]; !ok {
				all = false
				break
			}
		}
		if all {
			score += 10
		}
	}

	if score > 100 {
		score = 100
	}
	return score
}
