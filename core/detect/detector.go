package detect

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/siherrmann/canon/helper"
	"github.com/siherrmann/canon/model"
)

// Confidence levels assigned by dictionary detection. A canonical name
// in the text is stronger evidence than an alias.
const (
	ConfidenceBase      = 0.5
	ConfidenceCanonical = 0.8
	ConfidenceAlias     = 0.6
)

// Dictionary supplies the entries to scan for.
type Dictionary interface {
	Dictionary() ([]*model.DictionaryEntry, error)
	RecordAssociation(association *model.Association) error
}

// Detector scans document text for dictionary terms. Matching is a
// case-insensitive literal substring scan; a term inside a longer word
// still counts. Banned aliases never match.
type Detector struct {
	store  Dictionary
	logger *slog.Logger
}

// NewDetector creates a detector reading from the given dictionary.
func NewDetector(store Dictionary, logger *slog.Logger) *Detector {
	return &Detector{
		store:  store,
		logger: logger,
	}
}

// Detect scans the document and returns one match per detected entity,
// ordered by descending confidence then canonical name. An entity hit
// through its canonical name scores higher than one hit only through
// an alias.
func (d *Detector) Detect(document *model.Document) ([]*model.Match, error) {
	entries, err := d.store.Dictionary()
	if err != nil {
		return nil, helper.NewError("loading dictionary", err)
	}

	return d.DetectWith(document, entries), nil
}

// DetectWith scans the document against an already loaded dictionary.
func (d *Detector) DetectWith(document *model.Document, entries []*model.DictionaryEntry) []*model.Match {
	text := strings.ToLower(document.Text())

	var matches []*model.Match
	for _, entry := range entries {
		match := matchEntry(text, entry)
		if match != nil {
			matches = append(matches, match)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		return matches[i].Canonical < matches[j].Canonical
	})

	return matches
}

// DetectAndRecord scans the document and persists every match as a
// mentions association. Re-detection keeps the higher confidence of the
// stored and the new value.
func (d *Detector) DetectAndRecord(document *model.Document) ([]*model.Match, error) {
	matches, err := d.Detect(document)
	if err != nil {
		return nil, err
	}

	for _, match := range matches {
		err := d.store.RecordAssociation(&model.Association{
			DocumentID: document.ID,
			EntityID:   match.EntityID,
			Role:       match.Role,
			Confidence: match.Confidence,
			DetectedBy: model.DetectedAuto,
		})
		if err != nil {
			return nil, helper.NewError("recording association", err)
		}
	}

	d.logger.Info("Detected entities",
		slog.Int64("documentId", document.ID),
		slog.Int("matches", len(matches)))

	return matches, nil
}

// matchEntry scans lowered text for the entry's terms. Substring hits
// inside longer words are accepted.
func matchEntry(text string, entry *model.DictionaryEntry) *model.Match {
	match := &model.Match{
		EntityID:   entry.Entity.ID,
		Canonical:  entry.Entity.Canonical,
		Confidence: ConfidenceBase,
		Role:       model.RoleMentions,
	}

	found := false
	if strings.Contains(text, strings.ToLower(entry.Entity.Canonical)) {
		match.Confidence = ConfidenceCanonical
		match.MatchedTerm = entry.Entity.Canonical
		found = true
	}

	if !found {
		for _, alias := range entry.Aliases {
			if alias.Banned {
				continue
			}
			if strings.Contains(text, strings.ToLower(alias.Alias)) {
				if ConfidenceAlias > match.Confidence {
					match.Confidence = ConfidenceAlias
				}
				match.MatchedTerm = alias.Alias
				match.ViaAlias = true
				found = true
				break
			}
		}
	}

	if !found {
		return nil
	}
	return match
}
