package model

// Match is one entity detected in a document's text.
type Match struct {
	EntityID    int64   `json:"entity_id"`
	Canonical   string  `json:"canonical"`
	Confidence  float64 `json:"confidence"`
	MatchedTerm string  `json:"matched_term"`
	ViaAlias    bool    `json:"via_alias"`
	Role        Role    `json:"role"`
}
