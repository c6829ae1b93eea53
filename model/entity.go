package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EntityType classifies an entity in the dictionary.
type EntityType string

const (
	TypeOrganization EntityType = "Organization"
	TypeProduct      EntityType = "Product"
	TypeTechnology   EntityType = "Technology"
	TypeMetric       EntityType = "Metric"
	TypeAcronym      EntityType = "Acronym"
	TypeTerm         EntityType = "Term"
	TypePerson       EntityType = "Person"
	TypePlace        EntityType = "Place"
	TypeThing        EntityType = "Thing"
)

// ValidEntityTypes lists all accepted entity types.
var ValidEntityTypes = []EntityType{
	TypeOrganization, TypeProduct, TypeTechnology, TypeMetric,
	TypeAcronym, TypeTerm, TypePerson, TypePlace, TypeThing,
}

// Valid reports whether the type is one of the enumerated set.
func (t EntityType) Valid() bool {
	for _, v := range ValidEntityTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Scope is the breadth of applicability of an entity definition,
// from global (widest) to site (narrowest).
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeClient Scope = "client"
	ScopeSite   Scope = "site"
)

// Valid reports whether the scope is one of the enumerated set.
func (s Scope) Valid() bool {
	return s == ScopeGlobal || s == ScopeClient || s == ScopeSite
}

// Status is the lifecycle state of an entity.
type Status string

const (
	StatusActive     Status = "active"
	StatusDeprecated Status = "deprecated"
)

// Valid reports whether the status is one of the enumerated set.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusDeprecated
}

// Entity represents one canonical named thing in the dictionary together
// with its governance metadata. The (canonical, scope) pair is unique
// among active entities.
type Entity struct {
	ID                      int64       `json:"id"`
	RID                     uuid.UUID   `json:"rid"`
	Canonical               string      `json:"canonical"`
	Slug                    string      `json:"slug"`
	Type                    EntityType  `json:"type"`
	Scope                   Scope       `json:"scope"`
	Status                  Status      `json:"status"`
	Definition              string      `json:"definition,omitempty"`
	PreferredCapitalization string      `json:"preferred_capitalization,omitempty"`
	SameAs                  StringSlice `json:"same_as,omitempty"`
	ReplacementEntityID     *int64      `json:"replacement_entity_id,omitempty"`
	OwnerID                 *int64      `json:"owner_id,omitempty"`
	ReviewCadenceDays       int         `json:"review_cadence_days,omitempty"`
	LastReviewedAt          *time.Time  `json:"last_reviewed_at,omitempty"`
	CreatedAt               time.Time   `json:"created_at"`
	UpdatedAt               time.Time   `json:"updated_at"`
	// Populated by detailed search results only
	AliasCount int `json:"alias_count,omitempty"`
	UsageCount int `json:"usage_count,omitempty"`
}

// EntityPatch is a partial update. Nil fields are left untouched.
type EntityPatch struct {
	Canonical               *string     `json:"canonical,omitempty"`
	Type                    *EntityType `json:"type,omitempty"`
	Scope                   *Scope      `json:"scope,omitempty"`
	Status                  *Status     `json:"status,omitempty"`
	Definition              *string     `json:"definition,omitempty"`
	PreferredCapitalization *string     `json:"preferred_capitalization,omitempty"`
	SameAs                  StringSlice `json:"same_as,omitempty"`
	ReplacementEntityID     *int64      `json:"replacement_entity_id,omitempty"`
	OwnerID                 *int64      `json:"owner_id,omitempty"`
	ReviewCadenceDays       *int        `json:"review_cadence_days,omitempty"`
	LastReviewedAt          *time.Time  `json:"last_reviewed_at,omitempty"`
}

// Slugify derives a URL-safe slug from a canonical name.
func Slugify(canonical string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(canonical) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteRune('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// SearchFilter holds entity search parameters.
type SearchFilter struct {
	Search  string     `json:"search,omitempty"`
	Type    EntityType `json:"type,omitempty"`
	Scope   Scope      `json:"scope,omitempty"`
	Status  Status     `json:"status,omitempty"`
	Limit   int        `json:"limit"`
	Offset  int        `json:"offset"`
	OrderBy string     `json:"order_by"`
	Order   string     `json:"order"`
}

// Orderable search columns. Anything else falls back to canonical.
var searchOrderColumns = map[string]bool{
	"canonical":  true,
	"type":       true,
	"created_at": true,
	"updated_at": true,
}

// Normalize fills defaults and clamps the filter to whitelisted values.
func (f *SearchFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if !searchOrderColumns[f.OrderBy] {
		f.OrderBy = "canonical"
	}
	if strings.ToUpper(f.Order) == "DESC" {
		f.Order = "DESC"
	} else {
		f.Order = "ASC"
	}
}

// DictionaryEntry is one entity with its aliases, as supplied to the
// detector and the auto-linker.
type DictionaryEntry struct {
	Entity  *Entity  `json:"entity"`
	Aliases []*Alias `json:"aliases,omitempty"`
}

// Terms returns the matchable terms for this entry: the canonical name
// followed by all non-banned aliases.
func (d *DictionaryEntry) Terms() []string {
	terms := []string{d.Entity.Canonical}
	for _, a := range d.Aliases {
		if !a.Banned {
			terms = append(terms, a.Alias)
		}
	}
	return terms
}

// Document is the textual content handed to detection and validation.
type Document struct {
	ID    int64  `json:"id"`
	Title string `json:"title,omitempty"`
	Body  string `json:"body"`
}

// Text returns the full scannable text of the document.
func (d *Document) Text() string {
	if d.Title == "" {
		return d.Body
	}
	return d.Title + " " + d.Body
}
