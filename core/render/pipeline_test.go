package render

import (
	"io"
	"log/slog"
	"testing"

	"github.com/siherrmann/canon/core/autolink"
	"github.com/siherrmann/canon/core/detect"
	"github.com/siherrmann/canon/core/store"
	"github.com/siherrmann/canon/core/validate"
	"github.com/siherrmann/canon/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServices backs all pipeline stages with in-memory data.
type fakeServices struct {
	entries      []*model.DictionaryEntry
	linkable     []*store.LinkableEntry
	deprecated   []*model.Entity
	roles        map[int64][]model.Role
	associations []*model.Association
}

func (f *fakeServices) Dictionary() ([]*model.DictionaryEntry, error) {
	return f.entries, nil
}

func (f *fakeServices) LinkableEntries() ([]*store.LinkableEntry, error) {
	return f.linkable, nil
}

func (f *fakeServices) DeprecatedEntities() ([]*model.Entity, error) {
	return f.deprecated, nil
}

func (f *fakeServices) GetEntity(id int64) (*model.Entity, error) {
	for _, entry := range f.entries {
		if entry.Entity.ID == id {
			return entry.Entity, nil
		}
	}
	return nil, nil
}

func (f *fakeServices) DocumentHasRole(documentID int64, role model.Role) (bool, error) {
	for _, r := range f.roles[documentID] {
		if r == role {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeServices) RecordAssociation(association *model.Association) error {
	f.associations = append(f.associations, association)
	return nil
}

func newTestPipeline(t *testing.T, services *fakeServices, dedupConfig model.DedupConfig) *Pipeline {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	detector := detect.NewDetector(services, logger)
	linker, err := autolink.NewLinker(services, model.DefaultLinkConfig(), logger)
	require.NoError(t, err)
	validator := validate.NewValidator(services, logger)

	pipeline, err := NewPipeline(services, detector, linker, validator, dedupConfig, logger)
	require.NoError(t, err)
	return pipeline
}

func testServices() *fakeServices {
	entity := &model.Entity{
		ID:        1,
		Canonical: "Kubernetes",
		Type:      model.TypeTechnology,
		Scope:     model.ScopeSite,
		Status:    model.StatusActive,
		SameAs:    model.StringSlice{"https://known.test/kubernetes"},
	}
	rule := model.DefaultLinkRule(1)
	rule.TargetURL = "https://example.com/kubernetes"

	return &fakeServices{
		entries: []*model.DictionaryEntry{{Entity: entity}},
		linkable: []*store.LinkableEntry{{
			Entry: model.DictionaryEntry{Entity: entity},
			Rule:  rule,
		}},
		roles: map[int64][]model.Role{3: {model.RolePrimary}},
	}
}

func TestRender(t *testing.T) {
	services := testServices()
	pipeline := newTestPipeline(t, services, model.DefaultDedupConfig())

	input := &Input{
		Document: &model.Document{ID: 3, Title: "Running Kubernetes", Body: "Kubernetes in production."},
		HTML:     "<p>Kubernetes in production.</p>",
		Fragments: []*model.Fragment{
			{Type: "Organization", Source: "plugin", Properties: model.Properties{"name": "Acme", "url": "https://acme.test"}},
			{Type: "Organization", Source: "theme", Properties: model.Properties{"name": "Acme", "logo": "https://acme.test/logo.png"}},
		},
	}

	snapshot, err := pipeline.Render(input)
	require.NoError(t, err)

	t.Run("Detect stage found the entity", func(t *testing.T) {
		require.Len(t, snapshot.Matches, 1)
		assert.Equal(t, "Kubernetes", snapshot.Matches[0].Canonical)
	})

	t.Run("Link stage applied one link", func(t *testing.T) {
		require.Len(t, snapshot.Links, 1)
		assert.Contains(t, snapshot.HTML, `<a href="https://example.com/kubernetes">Kubernetes</a>`)
	})

	t.Run("Collect stage merged the organizations", func(t *testing.T) {
		require.Len(t, snapshot.Fragments, 1)
		assert.Equal(t, "https://acme.test/logo.png", snapshot.Fragments[0].Properties["logo"])
		require.Len(t, snapshot.Conflicts, 1)
	})

	t.Run("Validate stage produced a clean report", func(t *testing.T) {
		require.NotNil(t, snapshot.Report)
		assert.Empty(t, snapshot.Report.Issues)
		assert.Equal(t, 100, snapshot.Report.Score)
	})

	t.Run("Associations recorded for detection and linking", func(t *testing.T) {
		var roles []model.Role
		for _, association := range services.associations {
			roles = append(roles, association.Role)
		}
		assert.ElementsMatch(t, []model.Role{model.RoleMentions, model.RoleLink}, roles)
	})
}

func TestRenderSnapshotCache(t *testing.T) {
	services := testServices()
	pipeline := newTestPipeline(t, services, model.DefaultDedupConfig())

	input := &Input{
		Document: &model.Document{ID: 3, Body: "Kubernetes in production."},
	}

	first, err := pipeline.Render(input)
	require.NoError(t, err)
	recorded := len(services.associations)

	second, err := pipeline.Render(input)
	require.NoError(t, err)
	assert.Same(t, first, second, "Expected the cached snapshot on a repeat render")
	assert.Equal(t, recorded, len(services.associations), "Expected no new associations from a cached render")

	pipeline.Invalidate(3)
	third, err := pipeline.Render(input)
	require.NoError(t, err)
	assert.NotSame(t, first, third, "Expected a fresh snapshot after invalidation")
}

func TestRenderDedupConfigKeysCache(t *testing.T) {
	services := testServices()

	enabled := model.DefaultDedupConfig()
	disabled := model.DefaultDedupConfig()
	disabled.Enabled = false

	pipelineA := newTestPipeline(t, services, enabled)
	pipelineB := newTestPipeline(t, services, disabled)

	assert.NotEqual(t, pipelineA.snapshotKey(3), pipelineB.snapshotKey(3),
		"Expected different dedup configurations to cache under different keys")
}

func TestRenderNilDocument(t *testing.T) {
	pipeline := newTestPipeline(t, testServices(), model.DefaultDedupConfig())

	_, err := pipeline.Render(&Input{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document is nil")
}

func TestNewCollectorKnowsSameAs(t *testing.T) {
	pipeline := newTestPipeline(t, testServices(), model.DefaultDedupConfig())

	collector, err := pipeline.NewCollector()
	require.NoError(t, err)

	f := &model.Fragment{
		Type:       "Thing",
		Source:     "plugin",
		Properties: model.Properties{"name": "K8s", "sameAs": []interface{}{"https://known.test/kubernetes"}},
	}
	collector.Collect(f)
	assert.Equal(t, 2*2+15+20, f.Priority, "Expected the known sameAs URL to boost the score")
}
