package store

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/siherrmann/canon/database"
	"github.com/siherrmann/canon/helper"
	"github.com/siherrmann/canon/model"
)

// MaxCanonicalLength is the maximum accepted length of a canonical name.
const MaxCanonicalLength = 100

// dictionaryPageSize is how many entities one dictionary page loads.
const dictionaryPageSize = 200

// EntityStore is the dictionary service. It validates writes, enforces
// the active (canonical, scope) uniqueness rule and serves reads through
// a short-lived cache that any mutation invalidates.
type EntityStore struct {
	entities     database.EntitiesDBHandlerFunctions
	aliases      database.AliasesDBHandlerFunctions
	linkRules    database.LinkRulesDBHandlerFunctions
	associations database.AssociationsDBHandlerFunctions
	cache        *gocache.Cache
	logger       *slog.Logger
}

// NewEntityStore creates an entity store on top of the database handlers.
func NewEntityStore(
	entities database.EntitiesDBHandlerFunctions,
	aliases database.AliasesDBHandlerFunctions,
	linkRules database.LinkRulesDBHandlerFunctions,
	associations database.AssociationsDBHandlerFunctions,
	logger *slog.Logger,
) *EntityStore {
	return &EntityStore{
		entities:     entities,
		aliases:      aliases,
		linkRules:    linkRules,
		associations: associations,
		cache:        gocache.New(5*time.Minute, 10*time.Minute),
		logger:       logger,
	}
}

// CreateEntity validates and persists a new entity. Scope defaults to
// site and status to active; the slug is derived from the canonical name.
func (s *EntityStore) CreateEntity(entity *model.Entity) error {
	if entity.Scope == "" {
		entity.Scope = model.ScopeSite
	}
	if entity.Status == "" {
		entity.Status = model.StatusActive
	}

	err := validateEntity(entity)
	if err != nil {
		return err
	}

	exists, err := s.entities.CanonicalExists(entity.Canonical, entity.Scope, nil)
	if err != nil {
		return helper.NewError("checking canonical uniqueness", err)
	}
	if exists {
		return &model.DuplicateError{Canonical: entity.Canonical, Scope: entity.Scope}
	}

	entity.Slug = model.Slugify(entity.Canonical)

	err = s.entities.InsertEntity(entity)
	if err != nil {
		return helper.NewError("inserting entity", err)
	}

	s.cache.Flush()
	s.logger.Info("Created entity", slog.Int64("id", entity.ID), slog.String("canonical", entity.Canonical))

	return nil
}

// GetEntity retrieves an entity by ID, nil when it does not exist.
func (s *EntityStore) GetEntity(id int64) (*model.Entity, error) {
	key := fmt.Sprintf("entity:%d", id)
	if cached, found := s.cache.Get(key); found {
		return cached.(*model.Entity), nil
	}

	entity, err := s.entities.SelectEntity(id)
	if err != nil {
		return nil, helper.NewError("selecting entity", err)
	}
	if entity != nil {
		s.cache.Set(key, entity, gocache.DefaultExpiration)
	}

	return entity, nil
}

// GetEntityByRID retrieves an entity by its public record ID.
// Returns nil when absent.
func (s *EntityStore) GetEntityByRID(rid uuid.UUID) (*model.Entity, error) {
	key := fmt.Sprintf("entity_rid:%s", rid)
	if cached, found := s.cache.Get(key); found {
		return cached.(*model.Entity), nil
	}

	entity, err := s.entities.SelectEntityByRID(rid)
	if err != nil {
		return nil, helper.NewError("selecting entity by rid", err)
	}
	if entity != nil {
		s.cache.Set(key, entity, gocache.DefaultExpiration)
	}

	return entity, nil
}

// GetEntityByCanonical retrieves an active entity by its exact canonical
// name within a scope, case-insensitively. Returns nil when absent.
func (s *EntityStore) GetEntityByCanonical(canonical string, scope model.Scope) (*model.Entity, error) {
	entity, err := s.entities.SelectEntityByCanonical(canonical, scope)
	if err != nil {
		return nil, helper.NewError("selecting entity by canonical", err)
	}
	return entity, nil
}

// FindByTerm resolves a free-text term to an entity: exact canonical
// match wins, otherwise a non-banned alias match. Returns nil when the
// term resolves to nothing linkable.
func (s *EntityStore) FindByTerm(term string, scope model.Scope) (*model.Entity, error) {
	entity, err := s.entities.SelectEntityByCanonical(term, scope)
	if err != nil {
		return nil, helper.NewError("selecting entity by canonical", err)
	}
	if entity != nil {
		return entity, nil
	}

	entity, err = s.entities.SelectEntityByAlias(term, false)
	if err != nil {
		return nil, helper.NewError("selecting entity by alias", err)
	}
	return entity, nil
}

// UpdateEntity applies a partial update. A canonical change re-checks
// uniqueness and re-derives the slug.
func (s *EntityStore) UpdateEntity(id int64, patch *model.EntityPatch) (*model.Entity, error) {
	entity, err := s.entities.SelectEntity(id)
	if err != nil {
		return nil, helper.NewError("selecting entity", err)
	}
	if entity == nil {
		return nil, &model.NotFoundError{Kind: "entity", ID: id}
	}

	applyPatch(entity, patch)

	err = validateEntity(entity)
	if err != nil {
		return nil, err
	}

	if patch.Canonical != nil || patch.Scope != nil {
		exists, err := s.entities.CanonicalExists(entity.Canonical, entity.Scope, &id)
		if err != nil {
			return nil, helper.NewError("checking canonical uniqueness", err)
		}
		if exists {
			return nil, &model.DuplicateError{Canonical: entity.Canonical, Scope: entity.Scope}
		}
	}
	if patch.Canonical != nil {
		entity.Slug = model.Slugify(entity.Canonical)
	}

	err = s.entities.UpdateEntity(entity)
	if err != nil {
		return nil, helper.NewError("updating entity", err)
	}

	s.cache.Flush()
	s.logger.Info("Updated entity", slog.Int64("id", entity.ID))

	return entity, nil
}

// DeprecateEntity marks an entity deprecated, optionally pointing at a
// replacement. The replacement must exist and must not be the entity itself.
func (s *EntityStore) DeprecateEntity(id int64, replacementID *int64) (*model.Entity, error) {
	if replacementID != nil {
		if *replacementID == id {
			return nil, &model.ValidationError{Field: "replacement_entity_id", Reason: "entity cannot replace itself"}
		}
		replacement, err := s.GetEntity(*replacementID)
		if err != nil {
			return nil, err
		}
		if replacement == nil {
			return nil, &model.NotFoundError{Kind: "entity", ID: *replacementID}
		}
	}

	status := model.StatusDeprecated
	return s.UpdateEntity(id, &model.EntityPatch{
		Status:              &status,
		ReplacementEntityID: replacementID,
	})
}

// DeleteEntity removes an entity and cascades to its aliases, link rule
// and document associations.
func (s *EntityStore) DeleteEntity(id int64) error {
	entity, err := s.entities.SelectEntity(id)
	if err != nil {
		return helper.NewError("selecting entity", err)
	}
	if entity == nil {
		return &model.NotFoundError{Kind: "entity", ID: id}
	}

	err = s.entities.DeleteEntity(id)
	if err != nil {
		return helper.NewError("deleting entity", err)
	}

	s.cache.Flush()
	s.logger.Info("Deleted entity", slog.Int64("id", id))

	return nil
}

// SearchEntities runs a filtered, paginated search and returns the page
// together with the total match count.
func (s *EntityStore) SearchEntities(filter *model.SearchFilter) ([]*model.Entity, int64, error) {
	filter.Normalize()

	entities, err := s.entities.SearchEntities(filter)
	if err != nil {
		return nil, 0, helper.NewError("searching entities", err)
	}

	total, err := s.entities.CountEntities(filter)
	if err != nil {
		return nil, 0, helper.NewError("counting entities", err)
	}

	return entities, total, nil
}

// AddAlias attaches an alias to an entity. The alias text must be
// non-empty and must not already belong to a different entity.
func (s *EntityStore) AddAlias(entityID int64, text string, banned bool, notes string) (*model.Alias, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &model.ValidationError{Field: "alias", Reason: "must not be empty"}
	}

	entity, err := s.GetEntity(entityID)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, &model.NotFoundError{Kind: "entity", ID: entityID}
	}

	conflicts, err := s.aliases.SelectAliasConflicts(text, &entityID)
	if err != nil {
		return nil, helper.NewError("checking alias conflicts", err)
	}
	if len(conflicts) > 0 {
		return nil, &model.ValidationError{
			Field:  "alias",
			Reason: fmt.Sprintf("%q already belongs to entity %d", text, conflicts[0]),
		}
	}

	alias := &model.Alias{
		EntityID: entityID,
		Alias:    text,
		Banned:   banned,
		Notes:    notes,
	}
	err = s.aliases.InsertAlias(alias)
	if err != nil {
		return nil, helper.NewError("inserting alias", err)
	}

	s.cache.Flush()

	return alias, nil
}

// RemoveAlias detaches one alias from an entity. Returns whether the
// alias existed.
func (s *EntityStore) RemoveAlias(entityID int64, text string) (bool, error) {
	removed, err := s.aliases.DeleteAlias(entityID, text)
	if err != nil {
		return false, helper.NewError("deleting alias", err)
	}
	if removed {
		s.cache.Flush()
	}
	return removed, nil
}

// SetAliases replaces the full alias set of an entity. The whole
// replacement set is validated up front so a bad alias leaves the
// existing set untouched.
func (s *EntityStore) SetAliases(entityID int64, aliases []*model.Alias) error {
	entity, err := s.GetEntity(entityID)
	if err != nil {
		return err
	}
	if entity == nil {
		return &model.NotFoundError{Kind: "entity", ID: entityID}
	}

	seen := map[string]bool{}
	for _, alias := range aliases {
		alias.Alias = strings.TrimSpace(alias.Alias)
		if alias.Alias == "" {
			return &model.ValidationError{Field: "alias", Reason: "must not be empty"}
		}

		lowered := strings.ToLower(alias.Alias)
		if seen[lowered] {
			return &model.ValidationError{
				Field:  "alias",
				Reason: fmt.Sprintf("%q appears twice in the replacement set", alias.Alias),
			}
		}
		seen[lowered] = true

		conflicts, err := s.aliases.SelectAliasConflicts(alias.Alias, &entityID)
		if err != nil {
			return helper.NewError("checking alias conflicts", err)
		}
		if len(conflicts) > 0 {
			return &model.ValidationError{
				Field:  "alias",
				Reason: fmt.Sprintf("%q already belongs to entity %d", alias.Alias, conflicts[0]),
			}
		}
	}

	err = s.aliases.DeleteAliasesByEntity(entityID)
	if err != nil {
		return helper.NewError("deleting aliases", err)
	}

	for _, alias := range aliases {
		alias.EntityID = entityID
		err = s.aliases.InsertAlias(alias)
		if err != nil {
			return helper.NewError("inserting alias", err)
		}
	}

	s.cache.Flush()

	return nil
}

// GetAliases retrieves all aliases of an entity.
func (s *EntityStore) GetAliases(entityID int64) ([]*model.Alias, error) {
	aliases, err := s.aliases.SelectAliasesByEntity(entityID)
	if err != nil {
		return nil, helper.NewError("selecting aliases", err)
	}
	return aliases, nil
}

// SetLinkRule stores the linking policy of an entity, creating or
// replacing the existing rule.
func (s *EntityStore) SetLinkRule(rule *model.LinkRule) error {
	if rule.Mode == "" {
		rule.Mode = model.LinkModeFirstOnly
	}
	if !rule.Mode.Valid() {
		return &model.ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown link mode %q", rule.Mode)}
	}

	entity, err := s.GetEntity(rule.EntityID)
	if err != nil {
		return err
	}
	if entity == nil {
		return &model.NotFoundError{Kind: "entity", ID: rule.EntityID}
	}

	err = s.linkRules.UpsertLinkRule(rule)
	if err != nil {
		return helper.NewError("upserting link rule", err)
	}

	s.cache.Flush()

	return nil
}

// ResolveLinkRule returns the effective linking policy of an entity:
// the stored rule when present, the fully-defaulted rule otherwise.
// The returned rule never has empty fields.
func (s *EntityStore) ResolveLinkRule(entityID int64) (*model.LinkRule, error) {
	rule, err := s.linkRules.SelectLinkRule(entityID)
	if err != nil {
		return nil, helper.NewError("selecting link rule", err)
	}
	if rule == nil {
		return model.DefaultLinkRule(entityID), nil
	}
	if rule.Mode == "" {
		rule.Mode = model.LinkModeFirstOnly
	}
	return rule, nil
}

// RemoveLinkRule drops the stored rule, reverting the entity to defaults.
func (s *EntityStore) RemoveLinkRule(entityID int64) error {
	err := s.linkRules.DeleteLinkRule(entityID)
	if err != nil {
		return helper.NewError("deleting link rule", err)
	}
	s.cache.Flush()
	return nil
}

// RecordAssociation persists a document-entity association. Confidence
// is clamped to [0, 1]; re-recording keeps the higher confidence.
func (s *EntityStore) RecordAssociation(association *model.Association) error {
	if !association.Role.Valid() {
		return &model.ValidationError{Field: "role", Reason: fmt.Sprintf("unknown role %q", association.Role)}
	}
	if association.DetectedBy == "" {
		association.DetectedBy = model.DetectedManual
	}
	if association.Confidence < 0 {
		association.Confidence = 0
	}
	if association.Confidence > 1 {
		association.Confidence = 1
	}

	err := s.associations.UpsertAssociation(association)
	if err != nil {
		return helper.NewError("upserting association", err)
	}

	return nil
}

// AssociationsForDocument retrieves all associations of a document,
// ordered by role then descending confidence.
func (s *EntityStore) AssociationsForDocument(documentID int64) ([]*model.Association, error) {
	associations, err := s.associations.SelectAssociationsByDocument(documentID)
	if err != nil {
		return nil, helper.NewError("selecting associations", err)
	}
	return associations, nil
}

// ClearDocumentAssociations removes all associations of a document,
// typically before a full re-detection.
func (s *EntityStore) ClearDocumentAssociations(documentID int64) error {
	err := s.associations.DeleteAssociationsByDocument(documentID)
	if err != nil {
		return helper.NewError("deleting associations", err)
	}
	return nil
}

// RemoveAssociation removes one association. Returns whether it existed.
func (s *EntityStore) RemoveAssociation(documentID int64, entityID int64, role model.Role) (bool, error) {
	removed, err := s.associations.DeleteAssociation(documentID, entityID, role)
	if err != nil {
		return false, helper.NewError("deleting association", err)
	}
	return removed, nil
}

// UsageCount returns the number of document associations of an entity.
func (s *EntityStore) UsageCount(entityID int64) (int, error) {
	count, err := s.associations.CountAssociationsByEntity(entityID)
	if err != nil {
		return 0, helper.NewError("counting associations", err)
	}
	return count, nil
}

// DocumentHasRole reports whether a document carries any association
// with the given role.
func (s *EntityStore) DocumentHasRole(documentID int64, role model.Role) (bool, error) {
	has, err := s.associations.DocumentHasRole(documentID, role)
	if err != nil {
		return false, helper.NewError("checking document role", err)
	}
	return has, nil
}

// Dictionary loads all active entities with their aliases, paging
// through the full dictionary. The result feeds detection and validation.
func (s *EntityStore) Dictionary() ([]*model.DictionaryEntry, error) {
	key := "dictionary"
	if cached, found := s.cache.Get(key); found {
		return cached.([]*model.DictionaryEntry), nil
	}

	var entries []*model.DictionaryEntry
	offset := 0
	for {
		filter := &model.SearchFilter{
			Status: model.StatusActive,
			Limit:  dictionaryPageSize,
			Offset: offset,
		}
		filter.Normalize()

		page, err := s.entities.SearchEntities(filter)
		if err != nil {
			return nil, helper.NewError("searching entities", err)
		}

		for _, entity := range page {
			aliases, err := s.aliases.SelectAliasesByEntity(entity.ID)
			if err != nil {
				return nil, helper.NewError("selecting aliases", err)
			}
			entries = append(entries, &model.DictionaryEntry{Entity: entity, Aliases: aliases})
		}

		if len(page) < dictionaryPageSize {
			break
		}
		offset += dictionaryPageSize
	}

	s.cache.Set(key, entries, gocache.DefaultExpiration)

	return entries, nil
}

// DeprecatedEntities loads all deprecated entities, paged like Dictionary.
// Validation uses them to flag terms that should no longer appear.
func (s *EntityStore) DeprecatedEntities() ([]*model.Entity, error) {
	key := "deprecated"
	if cached, found := s.cache.Get(key); found {
		return cached.([]*model.Entity), nil
	}

	var entities []*model.Entity
	offset := 0
	for {
		filter := &model.SearchFilter{
			Status: model.StatusDeprecated,
			Limit:  dictionaryPageSize,
			Offset: offset,
		}
		filter.Normalize()

		page, err := s.entities.SearchEntities(filter)
		if err != nil {
			return nil, helper.NewError("searching entities", err)
		}
		entities = append(entities, page...)

		if len(page) < dictionaryPageSize {
			break
		}
		offset += dictionaryPageSize
	}

	s.cache.Set(key, entities, gocache.DefaultExpiration)

	return entities, nil
}

// LinkableEntries loads the entities eligible for auto-linking (active,
// auto mode, non-empty target URL) with their aliases and resolved rules.
func (s *EntityStore) LinkableEntries() ([]*LinkableEntry, error) {
	entities, err := s.entities.SelectLinkableEntities()
	if err != nil {
		return nil, helper.NewError("selecting linkable entities", err)
	}

	var entries []*LinkableEntry
	for _, entity := range entities {
		aliases, err := s.aliases.SelectAliasesByEntity(entity.ID)
		if err != nil {
			return nil, helper.NewError("selecting aliases", err)
		}
		rule, err := s.ResolveLinkRule(entity.ID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, &LinkableEntry{
			Entry: model.DictionaryEntry{Entity: entity, Aliases: aliases},
			Rule:  rule,
		})
	}

	return entries, nil
}

// LinkableEntry pairs a dictionary entry with its effective link rule.
type LinkableEntry struct {
	Entry model.DictionaryEntry
	Rule  *model.LinkRule
}

func validateEntity(entity *model.Entity) error {
	canonical := strings.TrimSpace(entity.Canonical)
	if canonical == "" {
		return &model.ValidationError{Field: "canonical", Reason: "must not be empty"}
	}
	if len(canonical) > MaxCanonicalLength {
		return &model.ValidationError{Field: "canonical", Reason: fmt.Sprintf("must not exceed %d characters", MaxCanonicalLength)}
	}
	entity.Canonical = canonical

	if !entity.Type.Valid() {
		return &model.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown entity type %q", entity.Type)}
	}
	if !entity.Scope.Valid() {
		return &model.ValidationError{Field: "scope", Reason: fmt.Sprintf("unknown scope %q", entity.Scope)}
	}
	if !entity.Status.Valid() {
		return &model.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", entity.Status)}
	}
	if entity.ReviewCadenceDays < 0 {
		return &model.ValidationError{Field: "review_cadence_days", Reason: "must not be negative"}
	}
	return nil
}

func applyPatch(entity *model.Entity, patch *model.EntityPatch) {
	if patch.Canonical != nil {
		entity.Canonical = *patch.Canonical
	}
	if patch.Type != nil {
		entity.Type = *patch.Type
	}
	if patch.Scope != nil {
		entity.Scope = *patch.Scope
	}
	if patch.Status != nil {
		entity.Status = *patch.Status
	}
	if patch.Definition != nil {
		entity.Definition = *patch.Definition
	}
	if patch.PreferredCapitalization != nil {
		entity.PreferredCapitalization = *patch.PreferredCapitalization
	}
	if patch.SameAs != nil {
		entity.SameAs = patch.SameAs
	}
	if patch.ReplacementEntityID != nil {
		entity.ReplacementEntityID = patch.ReplacementEntityID
	}
	if patch.OwnerID != nil {
		entity.OwnerID = patch.OwnerID
	}
	if patch.ReviewCadenceDays != nil {
		entity.ReviewCadenceDays = *patch.ReviewCadenceDays
	}
	if patch.LastReviewedAt != nil {
		entity.LastReviewedAt = patch.LastReviewedAt
	}
}
