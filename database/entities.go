package database

import (
	"context"
	dbsql "database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/canon/helper"
	"github.com/siherrmann/canon/model"
	"github.com/siherrmann/canon/sql"
)

// EntitiesDBHandlerFunctions defines the interface for entity database operations.
type EntitiesDBHandlerFunctions interface {
	InsertEntity(entity *model.Entity) error
	UpdateEntity(entity *model.Entity) error
	DeleteEntity(id int64) error
	SelectEntity(id int64) (*model.Entity, error)
	SelectEntityByRID(rid uuid.UUID) (*model.Entity, error)
	SelectEntityByCanonical(canonical string, scope model.Scope) (*model.Entity, error)
	SelectEntityByAlias(alias string, includeBanned bool) (*model.Entity, error)
	SearchEntities(filter *model.SearchFilter) ([]*model.Entity, error)
	CountEntities(filter *model.SearchFilter) (int64, error)
	SelectLinkableEntities() ([]*model.Entity, error)
	CanonicalExists(canonical string, scope model.Scope, excludeID *int64) (bool, error)
}

// EntitiesDBHandler handles entity-related database operations
type EntitiesDBHandler struct {
	db *helper.Database
}

// NewEntitiesDBHandler creates a new entities database handler.
// It loads the entity-related SQL functions and creates the table.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEntitiesDBHandler(db *helper.Database, force bool) (*EntitiesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	entitiesDbHandler := &EntitiesDBHandler{
		db: db,
	}

	err := sql.LoadEntitiesSql(entitiesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load entities sql", err)
	}

	err = entitiesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EntitiesDBHandler")

	return entitiesDbHandler, nil
}

// CreateTable creates the 'entities' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary indexes.
func (h *EntitiesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_entities();`)
	if err != nil {
		log.Panicf("error initializing entities table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table entities")

	return nil
}

// InsertEntity inserts a new entity
func (h *EntitiesDBHandler) InsertEntity(entity *model.Entity) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_entity($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		entity.Canonical,
		entity.Slug,
		entity.Type,
		entity.Scope,
		entity.Status,
		entity.Definition,
		entity.PreferredCapitalization,
		entity.SameAs,
		entity.ReplacementEntityID,
		entity.OwnerID,
		entity.ReviewCadenceDays,
		entity.LastReviewedAt,
	)

	err := scanEntity(row, entity)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// UpdateEntity updates all mutable fields of an entity
func (h *EntitiesDBHandler) UpdateEntity(entity *model.Entity) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM update_entity($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		entity.ID,
		entity.Canonical,
		entity.Slug,
		entity.Type,
		entity.Scope,
		entity.Status,
		entity.Definition,
		entity.PreferredCapitalization,
		entity.SameAs,
		entity.ReplacementEntityID,
		entity.OwnerID,
		entity.ReviewCadenceDays,
		entity.LastReviewedAt,
	)

	err := scanEntity(row, entity)
	if errors.Is(err, dbsql.ErrNoRows) {
		return &model.NotFoundError{Kind: "entity", ID: entity.ID}
	} else if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// DeleteEntity deletes an entity and cascades to aliases, link rules
// and document associations
func (h *EntitiesDBHandler) DeleteEntity(id int64) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_entity($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectEntity retrieves an entity by ID. Returns nil when not found.
func (h *EntitiesDBHandler) SelectEntity(id int64) (*model.Entity, error) {
	entity := &model.Entity{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_entity($1)`,
		id,
	)

	err := scanEntity(row, entity)
	if errors.Is(err, dbsql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return entity, nil
}

// SelectEntityByRID retrieves an entity by its public record ID.
// Returns nil when not found.
func (h *EntitiesDBHandler) SelectEntityByRID(rid uuid.UUID) (*model.Entity, error) {
	entity := &model.Entity{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_entity_by_rid($1)`,
		rid,
	)

	err := scanEntity(row, entity)
	if errors.Is(err, dbsql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return entity, nil
}

// SelectEntityByCanonical retrieves an active entity by canonical name
// and scope. The lookup is case-insensitive. Returns nil when not found.
func (h *EntitiesDBHandler) SelectEntityByCanonical(canonical string, scope model.Scope) (*model.Entity, error) {
	entity := &model.Entity{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_entity_by_canonical($1, $2)`,
		canonical,
		scope,
	)

	err := scanEntity(row, entity)
	if errors.Is(err, dbsql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return entity, nil
}

// SelectEntityByAlias retrieves the active entity owning an alias.
// Banned aliases only resolve when includeBanned is true.
// Returns nil when not found.
func (h *EntitiesDBHandler) SelectEntityByAlias(alias string, includeBanned bool) (*model.Entity, error) {
	entity := &model.Entity{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_entity_by_alias($1, $2)`,
		alias,
		includeBanned,
	)

	err := scanEntity(row, entity)
	if errors.Is(err, dbsql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return entity, nil
}

// SearchEntities searches entities with filters, pagination and ordering.
// Results include alias and usage counts.
func (h *EntitiesDBHandler) SearchEntities(filter *model.SearchFilter) ([]*model.Entity, error) {
	filter.Normalize()

	rows, err := h.db.Instance.Query(
		`SELECT * FROM search_entities($1, $2, $3, $4, $5, $6, $7, $8)`,
		filter.Search,
		filter.Type,
		filter.Scope,
		filter.Status,
		filter.Limit,
		filter.Offset,
		filter.OrderBy,
		filter.Order,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var entities []*model.Entity
	for rows.Next() {
		entity := &model.Entity{}
		err := rows.Scan(
			&entity.ID,
			&entity.RID,
			&entity.Canonical,
			&entity.Slug,
			&entity.Type,
			&entity.Scope,
			&entity.Status,
			&entity.Definition,
			&entity.PreferredCapitalization,
			&entity.SameAs,
			&entity.ReplacementEntityID,
			&entity.OwnerID,
			&entity.ReviewCadenceDays,
			&entity.LastReviewedAt,
			&entity.CreatedAt,
			&entity.UpdatedAt,
			&entity.AliasCount,
			&entity.UsageCount,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		entities = append(entities, entity)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return entities, nil
}

// CountEntities returns the total count matching the filter.
func (h *EntitiesDBHandler) CountEntities(filter *model.SearchFilter) (int64, error) {
	var total int64
	err := h.db.Instance.QueryRow(
		`SELECT * FROM count_entities($1, $2, $3, $4)`,
		filter.Search,
		filter.Type,
		filter.Scope,
		filter.Status,
	).Scan(&total)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}
	return total, nil
}

// SelectLinkableEntities retrieves active entities whose link rule
// allows auto-linking and carries a target URL.
func (h *EntitiesDBHandler) SelectLinkableEntities() ([]*model.Entity, error) {
	rows, err := h.db.Instance.Query(`SELECT * FROM select_linkable_entities()`)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var entities []*model.Entity
	for rows.Next() {
		entity := &model.Entity{}
		err := scanEntityRows(rows, entity)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		entities = append(entities, entity)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return entities, nil
}

// CanonicalExists checks for a canonical+scope collision among active
// entities, optionally excluding one entity ID (for updates).
func (h *EntitiesDBHandler) CanonicalExists(canonical string, scope model.Scope, excludeID *int64) (bool, error) {
	var exists bool
	err := h.db.Instance.QueryRow(
		`SELECT * FROM canonical_exists($1, $2, $3)`,
		canonical,
		scope,
		excludeID,
	).Scan(&exists)
	if err != nil {
		return false, helper.NewError("scan", err)
	}
	return exists, nil
}

// scanEntity scans a single entity row in table column order.
func scanEntity(row *dbsql.Row, entity *model.Entity) error {
	return row.Scan(
		&entity.ID,
		&entity.RID,
		&entity.Canonical,
		&entity.Slug,
		&entity.Type,
		&entity.Scope,
		&entity.Status,
		&entity.Definition,
		&entity.PreferredCapitalization,
		&entity.SameAs,
		&entity.ReplacementEntityID,
		&entity.OwnerID,
		&entity.ReviewCadenceDays,
		&entity.LastReviewedAt,
		&entity.CreatedAt,
		&entity.UpdatedAt,
	)
}

// scanEntityRows scans the current row of a multi-row result.
func scanEntityRows(rows *dbsql.Rows, entity *model.Entity) error {
	return rows.Scan(
		&entity.ID,
		&entity.RID,
		&entity.Canonical,
		&entity.Slug,
		&entity.Type,
		&entity.Scope,
		&entity.Status,
		&entity.Definition,
		&entity.PreferredCapitalization,
		&entity.SameAs,
		&entity.ReplacementEntityID,
		&entity.OwnerID,
		&entity.ReviewCadenceDays,
		&entity.LastReviewedAt,
		&entity.CreatedAt,
		&entity.UpdatedAt,
	)
}
