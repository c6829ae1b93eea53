package model

import "time"

// Role describes how an entity relates to a document.
type Role string

const (
	RolePrimary  Role = "primary"
	RoleAbout    Role = "about"
	RoleMentions Role = "mentions"
	// RoleLink records an applied auto-link, kept separate from the
	// content roles so re-detection never clobbers link history.
	RoleLink Role = "link"
)

// Valid reports whether the role is one of the enumerated set.
func (r Role) Valid() bool {
	switch r {
	case RolePrimary, RoleAbout, RoleMentions, RoleLink:
		return true
	}
	return false
}

// DetectionMethod records how an association came to exist.
type DetectionMethod string

const (
	DetectedManual DetectionMethod = "manual"
	DetectedAuto   DetectionMethod = "auto"
)

// Association links an entity to a document with a confidence score.
// At most one row exists per (document, entity, role); re-detection
// keeps the higher confidence instead of duplicating.
type Association struct {
	ID         int64           `json:"id"`
	DocumentID int64           `json:"document_id"`
	EntityID   int64           `json:"entity_id"`
	Role       Role            `json:"role"`
	Confidence float64         `json:"confidence"`
	DetectedBy DetectionMethod `json:"detected_by"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
