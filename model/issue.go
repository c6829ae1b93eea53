package model

// IssueType identifies a content-validation finding.
type IssueType string

const (
	IssueAliasUsed        IssueType = "alias_used"
	IssueBannedTerm       IssueType = "banned_term"
	IssueMissingPrimary   IssueType = "missing_primary_entity"
	IssueDeprecatedEntity IssueType = "deprecated_entity"
)

// Severity grades a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue is one content-validation finding.
type Issue struct {
	Type     IssueType `json:"type"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
	EntityID int64     `json:"entity_id,omitempty"`
	Term     string    `json:"term,omitempty"`
}

// Suggestion proposes a term replacement, e.g. alias to canonical.
type Suggestion struct {
	From     string `json:"from"`
	To       string `json:"to"`
	EntityID int64  `json:"entity_id"`
}

// ValidationReport aggregates the findings for one piece of content
// with the 0-100 governance score derived from issue severities.
type ValidationReport struct {
	Issues      []Issue      `json:"issues"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
	Score       int          `json:"score"`
}
