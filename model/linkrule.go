package model

import "time"

// LinkMode governs how many occurrences of an entity get auto-linked.
type LinkMode string

const (
	LinkModeFirstOnly LinkMode = "first_only"
	LinkModeAll       LinkMode = "all"
	LinkModeManual    LinkMode = "manual"
	LinkModeNever     LinkMode = "never"
)

// Valid reports whether the mode is one of the four enumerated values.
func (m LinkMode) Valid() bool {
	switch m {
	case LinkModeFirstOnly, LinkModeAll, LinkModeManual, LinkModeNever:
		return true
	}
	return false
}

// AllowsAuto reports whether the mode permits any automatic linking.
func (m LinkMode) AllowsAuto() bool {
	return m == LinkModeFirstOnly || m == LinkModeAll
}

// LinkRule is the per-entity linking policy. At most one rule exists per
// entity; entities without a stored rule get DefaultLinkRule.
type LinkRule struct {
	ID           int64     `json:"id"`
	EntityID     int64     `json:"entity_id"`
	Mode         LinkMode  `json:"mode"`
	Nofollow     bool      `json:"nofollow"`
	NewTab       bool      `json:"new_tab"`
	SkipHeadings bool      `json:"skip_headings"`
	SkipQuotes   bool      `json:"skip_quotes"`
	SkipCode     bool      `json:"skip_code"`
	TargetURL    string    `json:"target_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DefaultLinkRule returns the fully-defaulted rule for an entity:
// first occurrence only, follow, same tab, skip headings/quotes/code.
func DefaultLinkRule(entityID int64) *LinkRule {
	return &LinkRule{
		EntityID:     entityID,
		Mode:         LinkModeFirstOnly,
		Nofollow:     false,
		NewTab:       false,
		SkipHeadings: true,
		SkipQuotes:   true,
		SkipCode:     true,
	}
}
