package validate

import (
	"fmt"
	"log/slog"
	"regexp"

	"github.com/siherrmann/canon/helper"
	"github.com/siherrmann/canon/model"
)

// Score deductions per issue severity.
const (
	DeductionError   = 20
	DeductionWarning = 10
	DeductionOther   = 5
)

// Source supplies the dictionary state validation checks against.
type Source interface {
	Dictionary() ([]*model.DictionaryEntry, error)
	DeprecatedEntities() ([]*model.Entity, error)
	GetEntity(id int64) (*model.Entity, error)
	DocumentHasRole(documentID int64, role model.Role) (bool, error)
}

// Validator checks document text against the dictionary's terminology
// rules and produces a governance report.
type Validator struct {
	store  Source
	logger *slog.Logger
}

// NewValidator creates a validator reading from the given source.
func NewValidator(store Source, logger *slog.Logger) *Validator {
	return &Validator{
		store:  store,
		logger: logger,
	}
}

// Validate scans the document and reports terminology issues with
// replacement suggestions and a 0-100 governance score. Findings:
// a non-banned alias used while the canonical name is absent, a banned
// term used at all, a deprecated entity's name still appearing, and a
// stored document lacking a primary entity association.
func (v *Validator) Validate(document *model.Document) (*model.ValidationReport, error) {
	entries, err := v.store.Dictionary()
	if err != nil {
		return nil, helper.NewError("loading dictionary", err)
	}

	text := document.Text()
	report := &model.ValidationReport{}

	for _, entry := range entries {
		v.checkEntry(text, entry, report)
	}

	deprecated, err := v.store.DeprecatedEntities()
	if err != nil {
		return nil, helper.NewError("loading deprecated entities", err)
	}
	for _, entity := range deprecated {
		err := v.checkDeprecated(text, entity, report)
		if err != nil {
			return nil, err
		}
	}

	if document.ID != 0 {
		hasPrimary, err := v.store.DocumentHasRole(document.ID, model.RolePrimary)
		if err != nil {
			return nil, helper.NewError("checking primary role", err)
		}
		if !hasPrimary {
			report.Issues = append(report.Issues, model.Issue{
				Type:     model.IssueMissingPrimary,
				Severity: model.SeverityWarning,
				Message:  "document has no primary entity association",
			})
		}
	}

	report.Score = Score(report.Issues)

	v.logger.Info("Validated document",
		slog.Int64("documentId", document.ID),
		slog.Int("issues", len(report.Issues)),
		slog.Int("score", report.Score))

	return report, nil
}

// checkEntry flags banned terms and aliases used in place of the
// canonical name.
func (v *Validator) checkEntry(text string, entry *model.DictionaryEntry, report *model.ValidationReport) {
	canonicalPresent := termInText(text, entry.Entity.Canonical)

	for _, alias := range entry.Aliases {
		if !termInText(text, alias.Alias) {
			continue
		}

		if alias.Banned {
			report.Issues = append(report.Issues, model.Issue{
				Type:     model.IssueBannedTerm,
				Severity: model.SeverityError,
				Message:  fmt.Sprintf("banned term %q used, use %q instead", alias.Alias, entry.Entity.Canonical),
				EntityID: entry.Entity.ID,
				Term:     alias.Alias,
			})
			report.Suggestions = append(report.Suggestions, model.Suggestion{
				From:     alias.Alias,
				To:       entry.Entity.Canonical,
				EntityID: entry.Entity.ID,
			})
			continue
		}

		if !canonicalPresent {
			report.Issues = append(report.Issues, model.Issue{
				Type:     model.IssueAliasUsed,
				Severity: model.SeverityWarning,
				Message:  fmt.Sprintf("alias %q used without canonical %q", alias.Alias, entry.Entity.Canonical),
				EntityID: entry.Entity.ID,
				Term:     alias.Alias,
			})
			report.Suggestions = append(report.Suggestions, model.Suggestion{
				From:     alias.Alias,
				To:       entry.Entity.Canonical,
				EntityID: entry.Entity.ID,
			})
		}
	}
}

// checkDeprecated flags a deprecated entity's name still appearing,
// suggesting its replacement when one is set.
func (v *Validator) checkDeprecated(text string, entity *model.Entity, report *model.ValidationReport) error {
	if !termInText(text, entity.Canonical) {
		return nil
	}

	message := fmt.Sprintf("deprecated entity %q still referenced", entity.Canonical)
	if entity.ReplacementEntityID != nil {
		replacement, err := v.store.GetEntity(*entity.ReplacementEntityID)
		if err != nil {
			return err
		}
		if replacement != nil {
			message = fmt.Sprintf("deprecated entity %q still referenced, use %q instead", entity.Canonical, replacement.Canonical)
			report.Suggestions = append(report.Suggestions, model.Suggestion{
				From:     entity.Canonical,
				To:       replacement.Canonical,
				EntityID: replacement.ID,
			})
		}
	}

	report.Issues = append(report.Issues, model.Issue{
		Type:     model.IssueDeprecatedEntity,
		Severity: model.SeverityWarning,
		Message:  message,
		EntityID: entity.ID,
		Term:     entity.Canonical,
	})

	return nil
}

// Score derives the 0-100 governance score from the issue list.
func Score(issues []model.Issue) int {
	score := 100
	for _, issue := range issues {
		switch issue.Severity {
		case model.SeverityError:
			score -= DeductionError
		case model.SeverityWarning:
			score -= DeductionWarning
		default:
			score -= DeductionOther
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}

func termInText(text, term string) bool {
	if term == "" {
		return false
	}
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}
