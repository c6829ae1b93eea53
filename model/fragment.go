package model

import "time"

// Fragment is one structured-data object contributed by a render-time
// source, pending merge. Fragments live only for the duration of a
// single page render.
type Fragment struct {
	Type        string     `json:"type"`
	Properties  Properties `json:"properties"`
	Source      string     `json:"source"`
	Priority    int        `json:"priority"`
	CollectedAt time.Time  `json:"collected_at"`
}

// SameAs returns the normalized same-as URL set of the fragment.
// The property may be a single string or a list.
func (f *Fragment) SameAs() []string {
	raw, ok := f.Properties["sameAs"]
	if !ok {
		return nil
	}

	switch v := raw.(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []interface{}:
		var urls []string
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				urls = append(urls, s)
			}
		}
		return urls
	}
	return nil
}

// Conflict records one dedup resolution: what was merged or discarded,
// which sources contributed, and how it was resolved. Conflicts are
// diagnostics, never failures.
type Conflict struct {
	Type       string   `json:"type"`
	SchemaType string   `json:"schema_type"`
	Sources    []string `json:"sources,omitempty"`
	Kept       int      `json:"kept,omitempty"`
	Discarded  int      `json:"discarded,omitempty"`
	SameAs     []string `json:"same_as,omitempty"`
	Resolution string   `json:"resolution"`
}

// Conflict types emitted by the dedup strategies.
const (
	ConflictExcessSchemas   = "excess_schemas"
	ConflictDuplicateEntity = "duplicate_entity"
	ConflictMerged          = "merged"
)
