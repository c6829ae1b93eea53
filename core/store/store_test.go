package store

import (
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/canon/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memDB is an in-memory stand-in for the database handlers.
type memDB struct {
	nextID       int64
	entities     map[int64]*model.Entity
	aliases      map[int64][]*model.Alias
	linkRules    map[int64]*model.LinkRule
	associations []*model.Association
}

func newMemDB() *memDB {
	return &memDB{
		nextID:    1,
		entities:  map[int64]*model.Entity{},
		aliases:   map[int64][]*model.Alias{},
		linkRules: map[int64]*model.LinkRule{},
	}
}

func (m *memDB) InsertEntity(entity *model.Entity) error {
	entity.ID = m.nextID
	m.nextID++
	entity.RID = uuid.New()
	entity.CreatedAt = time.Now()
	entity.UpdatedAt = time.Now()
	stored := *entity
	m.entities[entity.ID] = &stored
	return nil
}

func (m *memDB) UpdateEntity(entity *model.Entity) error {
	if _, ok := m.entities[entity.ID]; !ok {
		return &model.NotFoundError{Kind: "entity", ID: entity.ID}
	}
	entity.UpdatedAt = time.Now()
	stored := *entity
	m.entities[entity.ID] = &stored
	return nil
}

func (m *memDB) DeleteEntity(id int64) error {
	delete(m.entities, id)
	delete(m.aliases, id)
	delete(m.linkRules, id)
	var kept []*model.Association
	for _, a := range m.associations {
		if a.EntityID != id {
			kept = append(kept, a)
		}
	}
	m.associations = kept
	return nil
}

func (m *memDB) SelectEntity(id int64) (*model.Entity, error) {
	entity, ok := m.entities[id]
	if !ok {
		return nil, nil
	}
	copied := *entity
	return &copied, nil
}

func (m *memDB) SelectEntityByRID(rid uuid.UUID) (*model.Entity, error) {
	for _, entity := range m.entities {
		if entity.RID == rid {
			copied := *entity
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memDB) SelectEntityByCanonical(canonical string, scope model.Scope) (*model.Entity, error) {
	for _, entity := range m.entities {
		if strings.EqualFold(entity.Canonical, canonical) && entity.Scope == scope && entity.Status == model.StatusActive {
			copied := *entity
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memDB) SelectEntityByAlias(alias string, includeBanned bool) (*model.Entity, error) {
	for entityID, aliases := range m.aliases {
		for _, a := range aliases {
			if strings.EqualFold(a.Alias, alias) && (includeBanned || !a.Banned) {
				return m.SelectEntity(entityID)
			}
		}
	}
	return nil, nil
}

func (m *memDB) SearchEntities(filter *model.SearchFilter) ([]*model.Entity, error) {
	var matched []*model.Entity
	for _, entity := range m.entities {
		if filter.Status != "" && entity.Status != filter.Status {
			continue
		}
		if filter.Type != "" && entity.Type != filter.Type {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(entity.Canonical), strings.ToLower(filter.Search)) {
			continue
		}
		copied := *entity
		matched = append(matched, &copied)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Canonical < matched[j].Canonical })

	if filter.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (m *memDB) CountEntities(filter *model.SearchFilter) (int64, error) {
	unlimited := *filter
	unlimited.Limit = len(m.entities) + 1
	unlimited.Offset = 0
	matched, err := m.SearchEntities(&unlimited)
	return int64(len(matched)), err
}

func (m *memDB) SelectLinkableEntities() ([]*model.Entity, error) {
	var linkable []*model.Entity
	for entityID, rule := range m.linkRules {
		entity := m.entities[entityID]
		if entity == nil || entity.Status != model.StatusActive {
			continue
		}
		if rule.Mode.AllowsAuto() && rule.TargetURL != "" {
			copied := *entity
			linkable = append(linkable, &copied)
		}
	}
	return linkable, nil
}

func (m *memDB) CanonicalExists(canonical string, scope model.Scope, excludeID *int64) (bool, error) {
	for _, entity := range m.entities {
		if excludeID != nil && entity.ID == *excludeID {
			continue
		}
		if strings.EqualFold(entity.Canonical, canonical) && entity.Scope == scope && entity.Status == model.StatusActive {
			return true, nil
		}
	}
	return false, nil
}

func (m *memDB) InsertAlias(alias *model.Alias) error {
	alias.ID = m.nextID
	m.nextID++
	alias.CreatedAt = time.Now()
	stored := *alias
	m.aliases[alias.EntityID] = append(m.aliases[alias.EntityID], &stored)
	return nil
}

func (m *memDB) DeleteAlias(entityID int64, alias string) (bool, error) {
	aliases := m.aliases[entityID]
	for i, a := range aliases {
		if strings.EqualFold(a.Alias, alias) {
			m.aliases[entityID] = append(aliases[:i], aliases[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memDB) DeleteAliasesByEntity(entityID int64) error {
	delete(m.aliases, entityID)
	return nil
}

func (m *memDB) SelectAliasesByEntity(entityID int64) ([]*model.Alias, error) {
	aliases := append([]*model.Alias{}, m.aliases[entityID]...)
	sort.Slice(aliases, func(i, j int) bool { return aliases[i].Alias < aliases[j].Alias })
	return aliases, nil
}

func (m *memDB) SelectAliasConflicts(alias string, excludeEntityID *int64) ([]int64, error) {
	var conflicts []int64
	for entityID, aliases := range m.aliases {
		if excludeEntityID != nil && entityID == *excludeEntityID {
			continue
		}
		for _, a := range aliases {
			if strings.EqualFold(a.Alias, alias) {
				conflicts = append(conflicts, entityID)
			}
		}
	}
	return conflicts, nil
}

func (m *memDB) UpsertLinkRule(rule *model.LinkRule) error {
	if rule.ID == 0 {
		rule.ID = m.nextID
		m.nextID++
	}
	stored := *rule
	m.linkRules[rule.EntityID] = &stored
	return nil
}

func (m *memDB) SelectLinkRule(entityID int64) (*model.LinkRule, error) {
	rule, ok := m.linkRules[entityID]
	if !ok {
		return nil, nil
	}
	copied := *rule
	return &copied, nil
}

func (m *memDB) DeleteLinkRule(entityID int64) error {
	delete(m.linkRules, entityID)
	return nil
}

func (m *memDB) UpsertAssociation(association *model.Association) error {
	for _, existing := range m.associations {
		if existing.DocumentID == association.DocumentID &&
			existing.EntityID == association.EntityID &&
			existing.Role == association.Role {
			if association.Confidence > existing.Confidence {
				existing.Confidence = association.Confidence
			}
			association.ID = existing.ID
			association.Confidence = existing.Confidence
			return nil
		}
	}
	association.ID = m.nextID
	m.nextID++
	stored := *association
	m.associations = append(m.associations, &stored)
	return nil
}

func (m *memDB) SelectAssociationsByDocument(documentID int64) ([]*model.Association, error) {
	var out []*model.Association
	for _, a := range m.associations {
		if a.DocumentID == documentID {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memDB) DeleteAssociationsByDocument(documentID int64) error {
	var kept []*model.Association
	for _, a := range m.associations {
		if a.DocumentID != documentID {
			kept = append(kept, a)
		}
	}
	m.associations = kept
	return nil
}

func (m *memDB) DeleteAssociation(documentID int64, entityID int64, role model.Role) (bool, error) {
	for i, a := range m.associations {
		if a.DocumentID == documentID && a.EntityID == entityID && a.Role == role {
			m.associations = append(m.associations[:i], m.associations[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memDB) CountAssociationsByEntity(entityID int64) (int, error) {
	count := 0
	for _, a := range m.associations {
		if a.EntityID == entityID {
			count++
		}
	}
	return count, nil
}

func (m *memDB) DocumentHasRole(documentID int64, role model.Role) (bool, error) {
	for _, a := range m.associations {
		if a.DocumentID == documentID && a.Role == role {
			return true, nil
		}
	}
	return false, nil
}

func newTestStore() (*EntityStore, *memDB) {
	db := newMemDB()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEntityStore(db, db, db, db, logger), db
}

func TestCreateEntity(t *testing.T) {
	entityStore, _ := newTestStore()

	t.Run("Create entity with defaults", func(t *testing.T) {
		entity := &model.Entity{Canonical: "Acme Corporation", Type: model.TypeOrganization}
		err := entityStore.CreateEntity(entity)
		assert.NoError(t, err, "Expected CreateEntity to not return an error")
		assert.NotZero(t, entity.ID)
		assert.Equal(t, model.ScopeSite, entity.Scope, "Expected scope to default to site")
		assert.Equal(t, model.StatusActive, entity.Status, "Expected status to default to active")
		assert.Equal(t, "acme-corporation", entity.Slug)
	})

	t.Run("Duplicate canonical in same scope is rejected", func(t *testing.T) {
		duplicate := &model.Entity{Canonical: "acme corporation", Type: model.TypeOrganization}
		err := entityStore.CreateEntity(duplicate)
		require.Error(t, err)
		var dupErr *model.DuplicateError
		assert.ErrorAs(t, err, &dupErr, "Expected DuplicateError")
	})

	t.Run("Same canonical in different scope is allowed", func(t *testing.T) {
		other := &model.Entity{Canonical: "Acme Corporation", Type: model.TypeOrganization, Scope: model.ScopeGlobal}
		err := entityStore.CreateEntity(other)
		assert.NoError(t, err, "Expected same canonical in different scope to be allowed")
	})

	t.Run("Empty canonical is rejected", func(t *testing.T) {
		err := entityStore.CreateEntity(&model.Entity{Canonical: "   ", Type: model.TypeTerm})
		require.Error(t, err)
		var valErr *model.ValidationError
		assert.ErrorAs(t, err, &valErr)
		assert.Equal(t, "canonical", valErr.Field)
	})

	t.Run("Overlong canonical is rejected", func(t *testing.T) {
		err := entityStore.CreateEntity(&model.Entity{Canonical: strings.Repeat("x", MaxCanonicalLength+1), Type: model.TypeTerm})
		require.Error(t, err)
		var valErr *model.ValidationError
		assert.ErrorAs(t, err, &valErr)
	})

	t.Run("Unknown type is rejected", func(t *testing.T) {
		err := entityStore.CreateEntity(&model.Entity{Canonical: "Typed", Type: "Gadget"})
		require.Error(t, err)
		var valErr *model.ValidationError
		assert.ErrorAs(t, err, &valErr)
		assert.Equal(t, "type", valErr.Field)
	})
}

func TestUpdateEntity(t *testing.T) {
	entityStore, _ := newTestStore()

	entity := &model.Entity{Canonical: "Original", Type: model.TypeTerm}
	require.NoError(t, entityStore.CreateEntity(entity))
	other := &model.Entity{Canonical: "Taken", Type: model.TypeTerm}
	require.NoError(t, entityStore.CreateEntity(other))

	t.Run("Patch updates only set fields", func(t *testing.T) {
		definition := "a term"
		updated, err := entityStore.UpdateEntity(entity.ID, &model.EntityPatch{Definition: &definition})
		assert.NoError(t, err)
		assert.Equal(t, "Original", updated.Canonical, "Expected canonical to stay unchanged")
		assert.Equal(t, "a term", updated.Definition)
	})

	t.Run("Canonical change re-derives slug", func(t *testing.T) {
		canonical := "Renamed Term"
		updated, err := entityStore.UpdateEntity(entity.ID, &model.EntityPatch{Canonical: &canonical})
		assert.NoError(t, err)
		assert.Equal(t, "renamed-term", updated.Slug)
	})

	t.Run("Canonical change to taken name is rejected", func(t *testing.T) {
		canonical := "Taken"
		_, err := entityStore.UpdateEntity(entity.ID, &model.EntityPatch{Canonical: &canonical})
		require.Error(t, err)
		var dupErr *model.DuplicateError
		assert.ErrorAs(t, err, &dupErr)
	})

	t.Run("Scope change into a taken pair is rejected", func(t *testing.T) {
		global := &model.Entity{Canonical: "Shared Name", Type: model.TypeTerm, Scope: model.ScopeGlobal}
		require.NoError(t, entityStore.CreateEntity(global))
		site := &model.Entity{Canonical: "Shared Name", Type: model.TypeTerm, Scope: model.ScopeSite}
		require.NoError(t, entityStore.CreateEntity(site))

		scope := model.ScopeSite
		_, err := entityStore.UpdateEntity(global.ID, &model.EntityPatch{Scope: &scope})
		require.Error(t, err)
		var dupErr *model.DuplicateError
		assert.ErrorAs(t, err, &dupErr)
		assert.Equal(t, model.ScopeSite, dupErr.Scope)
	})

	t.Run("Update of missing entity returns not found", func(t *testing.T) {
		definition := "ghost"
		_, err := entityStore.UpdateEntity(999999, &model.EntityPatch{Definition: &definition})
		require.Error(t, err)
		var notFound *model.NotFoundError
		assert.ErrorAs(t, err, &notFound)
	})
}

func TestDeprecateEntity(t *testing.T) {
	entityStore, _ := newTestStore()

	old := &model.Entity{Canonical: "Old Product", Type: model.TypeProduct}
	require.NoError(t, entityStore.CreateEntity(old))
	replacement := &model.Entity{Canonical: "New Product", Type: model.TypeProduct}
	require.NoError(t, entityStore.CreateEntity(replacement))

	t.Run("Deprecate with replacement", func(t *testing.T) {
		updated, err := entityStore.DeprecateEntity(old.ID, &replacement.ID)
		assert.NoError(t, err)
		assert.Equal(t, model.StatusDeprecated, updated.Status)
		require.NotNil(t, updated.ReplacementEntityID)
		assert.Equal(t, replacement.ID, *updated.ReplacementEntityID)
	})

	t.Run("Entity cannot replace itself", func(t *testing.T) {
		_, err := entityStore.DeprecateEntity(replacement.ID, &replacement.ID)
		require.Error(t, err)
		var valErr *model.ValidationError
		assert.ErrorAs(t, err, &valErr)
	})

	t.Run("Missing replacement is rejected", func(t *testing.T) {
		missing := int64(999999)
		_, err := entityStore.DeprecateEntity(replacement.ID, &missing)
		require.Error(t, err)
		var notFound *model.NotFoundError
		assert.ErrorAs(t, err, &notFound)
	})
}

func TestGetEntityByRID(t *testing.T) {
	entityStore, _ := newTestStore()

	entity := &model.Entity{Canonical: "RID Lookup", Type: model.TypeTerm}
	require.NoError(t, entityStore.CreateEntity(entity))

	t.Run("Known RID resolves", func(t *testing.T) {
		found, err := entityStore.GetEntityByRID(entity.RID)
		assert.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, entity.ID, found.ID)
	})

	t.Run("Unknown RID returns nil", func(t *testing.T) {
		found, err := entityStore.GetEntityByRID(uuid.New())
		assert.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestFindByTerm(t *testing.T) {
	entityStore, _ := newTestStore()

	entity := &model.Entity{Canonical: "PostgreSQL", Type: model.TypeTechnology}
	require.NoError(t, entityStore.CreateEntity(entity))
	_, err := entityStore.AddAlias(entity.ID, "Postgres", false, "")
	require.NoError(t, err)
	_, err = entityStore.AddAlias(entity.ID, "PSQL", true, "banned short form")
	require.NoError(t, err)

	t.Run("Canonical resolves", func(t *testing.T) {
		found, err := entityStore.FindByTerm("postgresql", model.ScopeSite)
		assert.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, entity.ID, found.ID)
	})

	t.Run("Alias resolves", func(t *testing.T) {
		found, err := entityStore.FindByTerm("Postgres", model.ScopeSite)
		assert.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, entity.ID, found.ID)
	})

	t.Run("Banned alias does not resolve", func(t *testing.T) {
		found, err := entityStore.FindByTerm("PSQL", model.ScopeSite)
		assert.NoError(t, err)
		assert.Nil(t, found, "Expected banned alias to never resolve")
	})
}

func TestAliasManagement(t *testing.T) {
	entityStore, _ := newTestStore()

	first := &model.Entity{Canonical: "First", Type: model.TypeTerm}
	require.NoError(t, entityStore.CreateEntity(first))
	second := &model.Entity{Canonical: "Second", Type: model.TypeTerm}
	require.NoError(t, entityStore.CreateEntity(second))

	t.Run("Alias claimed by another entity is rejected", func(t *testing.T) {
		_, err := entityStore.AddAlias(first.ID, "shared", false, "")
		require.NoError(t, err)

		_, err = entityStore.AddAlias(second.ID, "shared", false, "")
		require.Error(t, err)
		var valErr *model.ValidationError
		assert.ErrorAs(t, err, &valErr)
	})

	t.Run("Empty alias is rejected", func(t *testing.T) {
		_, err := entityStore.AddAlias(first.ID, "  ", false, "")
		require.Error(t, err)
	})

	t.Run("SetAliases replaces the full set", func(t *testing.T) {
		err := entityStore.SetAliases(first.ID, []*model.Alias{
			{Alias: "one"},
			{Alias: "two", Banned: true},
		})
		assert.NoError(t, err)

		aliases, err := entityStore.GetAliases(first.ID)
		assert.NoError(t, err)
		require.Len(t, aliases, 2)
		assert.Equal(t, "one", aliases[0].Alias)
		assert.True(t, aliases[1].Banned)
	})

	t.Run("Rejected replacement set leaves the current aliases intact", func(t *testing.T) {
		err := entityStore.SetAliases(first.ID, []*model.Alias{
			{Alias: "three"},
			{Alias: "  "},
		})
		require.Error(t, err)
		var valErr *model.ValidationError
		assert.ErrorAs(t, err, &valErr)

		aliases, err := entityStore.GetAliases(first.ID)
		assert.NoError(t, err)
		require.Len(t, aliases, 2, "Expected the previous set to survive the failed replacement")
		assert.Equal(t, "one", aliases[0].Alias)
		assert.Equal(t, "two", aliases[1].Alias)
	})

	t.Run("Duplicate within the replacement set is rejected up front", func(t *testing.T) {
		err := entityStore.SetAliases(first.ID, []*model.Alias{
			{Alias: "same"},
			{Alias: "Same"},
		})
		require.Error(t, err)

		aliases, err := entityStore.GetAliases(first.ID)
		assert.NoError(t, err)
		assert.Len(t, aliases, 2)
	})

	t.Run("Replacement conflicting with another entity is rejected up front", func(t *testing.T) {
		err := entityStore.SetAliases(second.ID, []*model.Alias{
			{Alias: "fresh"},
			{Alias: "one"},
		})
		require.Error(t, err)

		aliases, err := entityStore.GetAliases(second.ID)
		assert.NoError(t, err)
		assert.Empty(t, aliases, "Expected no partial insert after the rejected replacement")
	})

	t.Run("RemoveAlias reports existence", func(t *testing.T) {
		removed, err := entityStore.RemoveAlias(first.ID, "one")
		assert.NoError(t, err)
		assert.True(t, removed)

		removed, err = entityStore.RemoveAlias(first.ID, "one")
		assert.NoError(t, err)
		assert.False(t, removed)
	})
}

func TestResolveLinkRule(t *testing.T) {
	entityStore, _ := newTestStore()

	entity := &model.Entity{Canonical: "Ruled", Type: model.TypeProduct}
	require.NoError(t, entityStore.CreateEntity(entity))

	t.Run("Missing rule resolves to defaults", func(t *testing.T) {
		rule, err := entityStore.ResolveLinkRule(entity.ID)
		assert.NoError(t, err)
		require.NotNil(t, rule)
		assert.Equal(t, model.LinkModeFirstOnly, rule.Mode)
		assert.True(t, rule.SkipHeadings)
		assert.True(t, rule.SkipQuotes)
		assert.True(t, rule.SkipCode)
		assert.False(t, rule.Nofollow)
	})

	t.Run("Stored rule wins", func(t *testing.T) {
		stored := model.DefaultLinkRule(entity.ID)
		stored.Mode = model.LinkModeAll
		stored.TargetURL = "https://example.com/ruled"
		require.NoError(t, entityStore.SetLinkRule(stored))

		rule, err := entityStore.ResolveLinkRule(entity.ID)
		assert.NoError(t, err)
		assert.Equal(t, model.LinkModeAll, rule.Mode)
		assert.Equal(t, "https://example.com/ruled", rule.TargetURL)
	})

	t.Run("Invalid mode is rejected", func(t *testing.T) {
		bad := model.DefaultLinkRule(entity.ID)
		bad.Mode = "sometimes"
		err := entityStore.SetLinkRule(bad)
		require.Error(t, err)
		var valErr *model.ValidationError
		assert.ErrorAs(t, err, &valErr)
	})
}

func TestRecordAssociation(t *testing.T) {
	entityStore, _ := newTestStore()

	entity := &model.Entity{Canonical: "Mentioned", Type: model.TypeTerm}
	require.NoError(t, entityStore.CreateEntity(entity))

	t.Run("Confidence is clamped", func(t *testing.T) {
		association := &model.Association{
			DocumentID: 1, EntityID: entity.ID, Role: model.RoleMentions, Confidence: 1.7,
		}
		err := entityStore.RecordAssociation(association)
		assert.NoError(t, err)
		assert.Equal(t, float64(1), association.Confidence)
		assert.Equal(t, model.DetectedManual, association.DetectedBy, "Expected detection method to default to manual")
	})

	t.Run("Unknown role is rejected", func(t *testing.T) {
		err := entityStore.RecordAssociation(&model.Association{
			DocumentID: 1, EntityID: entity.ID, Role: "sidekick", Confidence: 0.5,
		})
		require.Error(t, err)
	})

	t.Run("Usage count reflects associations", func(t *testing.T) {
		count, err := entityStore.UsageCount(entity.ID)
		assert.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestDictionary(t *testing.T) {
	entityStore, db := newTestStore()

	active := &model.Entity{Canonical: "Active Entity", Type: model.TypeTerm}
	require.NoError(t, entityStore.CreateEntity(active))
	_, err := entityStore.AddAlias(active.ID, "AE", false, "")
	require.NoError(t, err)

	deprecated := &model.Entity{Canonical: "Deprecated Entity", Type: model.TypeTerm}
	require.NoError(t, entityStore.CreateEntity(deprecated))
	_, err = entityStore.DeprecateEntity(deprecated.ID, nil)
	require.NoError(t, err)

	t.Run("Dictionary contains only active entities", func(t *testing.T) {
		entries, err := entityStore.Dictionary()
		assert.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, active.ID, entries[0].Entity.ID)
		require.Len(t, entries[0].Aliases, 1)
	})

	t.Run("Deprecated entities are listed separately", func(t *testing.T) {
		entities, err := entityStore.DeprecatedEntities()
		assert.NoError(t, err)
		require.Len(t, entities, 1)
		assert.Equal(t, deprecated.ID, entities[0].ID)
	})

	t.Run("Dictionary is cached until a mutation", func(t *testing.T) {
		_, err := entityStore.Dictionary()
		require.NoError(t, err)

		// mutate underneath the cache, then through the store
		extra := &model.Entity{Canonical: "Extra", Type: model.TypeTerm}
		require.NoError(t, db.InsertEntity(extra))

		entries, err := entityStore.Dictionary()
		require.NoError(t, err)
		assert.Len(t, entries, 1, "Expected cached dictionary before store mutation")

		another := &model.Entity{Canonical: "Another", Type: model.TypeTerm}
		require.NoError(t, entityStore.CreateEntity(another))

		entries, err = entityStore.Dictionary()
		require.NoError(t, err)
		assert.Len(t, entries, 3, "Expected fresh dictionary after store mutation")
	})
}

func TestLinkableEntries(t *testing.T) {
	entityStore, _ := newTestStore()

	linkable := &model.Entity{Canonical: "Linkable", Type: model.TypeProduct}
	require.NoError(t, entityStore.CreateEntity(linkable))
	rule := model.DefaultLinkRule(linkable.ID)
	rule.TargetURL = "https://example.com/linkable"
	require.NoError(t, entityStore.SetLinkRule(rule))

	plain := &model.Entity{Canonical: "Plain", Type: model.TypeProduct}
	require.NoError(t, entityStore.CreateEntity(plain))

	entries, err := entityStore.LinkableEntries()
	assert.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, linkable.ID, entries[0].Entry.Entity.ID)
	require.NotNil(t, entries[0].Rule)
	assert.Equal(t, "https://example.com/linkable", entries[0].Rule.TargetURL)
}

func TestDeleteEntityCascades(t *testing.T) {
	entityStore, db := newTestStore()

	entity := &model.Entity{Canonical: "Cascade Target", Type: model.TypeTerm}
	require.NoError(t, entityStore.CreateEntity(entity))
	_, err := entityStore.AddAlias(entity.ID, "cascade", false, "")
	require.NoError(t, err)
	require.NoError(t, entityStore.RecordAssociation(&model.Association{
		DocumentID: 5, EntityID: entity.ID, Role: model.RoleMentions, Confidence: 0.5,
	}))

	require.NoError(t, entityStore.DeleteEntity(entity.ID))

	found, err := entityStore.GetEntity(entity.ID)
	assert.NoError(t, err)
	assert.Nil(t, found)
	assert.Empty(t, db.aliases[entity.ID])
	assert.Empty(t, db.associations)

	err = entityStore.DeleteEntity(entity.ID)
	require.Error(t, err, "Expected second delete to return not found")
}
