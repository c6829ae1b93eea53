package render

import (
	"fmt"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/siherrmann/canon/core/autolink"
	"github.com/siherrmann/canon/core/detect"
	"github.com/siherrmann/canon/core/schema"
	"github.com/siherrmann/canon/core/validate"
	"github.com/siherrmann/canon/helper"
	"github.com/siherrmann/canon/model"
)

// Input is one document going through a render.
type Input struct {
	Document  *model.Document   `json:"document"`
	HTML      string            `json:"html"`
	Fragments []*model.Fragment `json:"fragments,omitempty"`
}

// Snapshot is the outcome of one full render pass.
type Snapshot struct {
	Matches    []*model.Match          `json:"matches,omitempty"`
	HTML       string                  `json:"html"`
	Links      []autolink.AppliedLink  `json:"links,omitempty"`
	Fragments  []*model.Fragment       `json:"fragments,omitempty"`
	Conflicts  []*model.Conflict       `json:"conflicts,omitempty"`
	Report     *model.ValidationReport `json:"report,omitempty"`
	RenderedAt time.Time               `json:"rendered_at"`
}

// DictionarySource supplies sameAs URLs of known entities for the
// fragment scorer.
type DictionarySource interface {
	Dictionary() ([]*model.DictionaryEntry, error)
}

// Pipeline runs the explicit render stages detect, link, collect and
// flush in order. A pipeline can be shared across renders; every render
// gets a fresh collector.
type Pipeline struct {
	store       DictionarySource
	detector    *detect.Detector
	linker      *autolink.Linker
	validator   *validate.Validator
	dedupConfig model.DedupConfig
	snapshots   *gocache.Cache
	logger      *slog.Logger
}

// NewPipeline wires a render pipeline over the given stages. The
// snapshot cache is shared across renders of different documents.
func NewPipeline(
	store DictionarySource,
	detector *detect.Detector,
	linker *autolink.Linker,
	validator *validate.Validator,
	dedupConfig model.DedupConfig,
	logger *slog.Logger,
) (*Pipeline, error) {
	err := dedupConfig.Validate()
	if err != nil {
		return nil, helper.NewError("validating dedup config", err)
	}

	return &Pipeline{
		store:       store,
		detector:    detector,
		linker:      linker,
		validator:   validator,
		dedupConfig: dedupConfig,
		snapshots:   gocache.New(10*time.Minute, 15*time.Minute),
		logger:      logger,
	}, nil
}

// NewCollector hands out a fresh collector for one render, seeded with
// the sameAs URLs of all dictionary entities.
func (p *Pipeline) NewCollector() (*schema.Collector, error) {
	entries, err := p.store.Dictionary()
	if err != nil {
		return nil, helper.NewError("loading dictionary", err)
	}

	knownSameAs := map[string]bool{}
	for _, entry := range entries {
		for _, url := range entry.Entity.SameAs {
			knownSameAs[url] = true
		}
	}

	return schema.NewCollector(p.dedupConfig, knownSameAs, p.logger), nil
}

// Render runs the full pass: detect entities, apply auto-links, collect
// and deduplicate fragments, validate. Repeat renders of an unchanged
// document with an unchanged dedup configuration return the cached
// snapshot without re-running collect and flush.
func (p *Pipeline) Render(input *Input) (*Snapshot, error) {
	if input.Document == nil {
		return nil, helper.NewError("validating input", fmt.Errorf("document is nil"))
	}

	key := p.snapshotKey(input.Document.ID)
	if cached, found := p.snapshots.Get(key); found {
		return cached.(*Snapshot), nil
	}

	snapshot := &Snapshot{RenderedAt: time.Now()}

	matches, err := p.detector.DetectAndRecord(input.Document)
	if err != nil {
		return nil, helper.NewError("detect stage", err)
	}
	snapshot.Matches = matches

	html := input.HTML
	if html == "" {
		html = input.Document.Body
	}
	linked, err := p.linker.Link(input.Document.ID, html)
	if err != nil {
		return nil, helper.NewError("link stage", err)
	}
	snapshot.HTML = linked.HTML
	snapshot.Links = linked.Applied

	collector, err := p.NewCollector()
	if err != nil {
		return nil, helper.NewError("collect stage", err)
	}
	for _, fragment := range input.Fragments {
		collector.Collect(fragment)
	}
	snapshot.Fragments, snapshot.Conflicts = collector.Flush()

	report, err := p.validator.Validate(input.Document)
	if err != nil {
		return nil, helper.NewError("validate stage", err)
	}
	snapshot.Report = report

	p.snapshots.Set(key, snapshot, gocache.DefaultExpiration)

	p.logger.Info("Rendered document",
		slog.Int64("documentId", input.Document.ID),
		slog.Int("matches", len(snapshot.Matches)),
		slog.Int("links", len(snapshot.Links)),
		slog.Int("fragments", len(snapshot.Fragments)),
		slog.Int("score", report.Score))

	return snapshot, nil
}

// Invalidate drops the cached snapshot of a document, forcing the next
// render to run all stages.
func (p *Pipeline) Invalidate(documentID int64) {
	p.snapshots.Delete(p.snapshotKey(documentID))
}

// snapshotKey binds a snapshot to the document and the dedup
// configuration it was rendered under.
func (p *Pipeline) snapshotKey(documentID int64) string {
	return fmt.Sprintf("snapshot:%d:%d", documentID, p.dedupConfig.Hash())
}
