package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/siherrmann/canon/helper"
	"github.com/siherrmann/canon/model"
	"github.com/siherrmann/canon/sql"
)

// AliasesDBHandlerFunctions defines the interface for alias database operations.
type AliasesDBHandlerFunctions interface {
	InsertAlias(alias *model.Alias) error
	DeleteAlias(entityID int64, alias string) (bool, error)
	DeleteAliasesByEntity(entityID int64) error
	SelectAliasesByEntity(entityID int64) ([]*model.Alias, error)
	SelectAliasConflicts(alias string, excludeEntityID *int64) ([]int64, error)
}

// AliasesDBHandler handles alias-related database operations
type AliasesDBHandler struct {
	db *helper.Database
}

// NewAliasesDBHandler creates a new aliases database handler.
// If force is true, it will reload the SQL functions even if they already exist.
func NewAliasesDBHandler(db *helper.Database, force bool) (*AliasesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	aliasesDbHandler := &AliasesDBHandler{
		db: db,
	}

	err := sql.LoadAliasesSql(aliasesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load aliases sql", err)
	}

	err = aliasesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized AliasesDBHandler")

	return aliasesDbHandler, nil
}

// CreateTable creates the 'aliases' table in the database.
func (h *AliasesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_aliases();`)
	if err != nil {
		log.Panicf("error initializing aliases table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table aliases")

	return nil
}

// InsertAlias inserts a new alias for an entity
func (h *AliasesDBHandler) InsertAlias(alias *model.Alias) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_alias($1, $2, $3, $4)`,
		alias.EntityID,
		alias.Alias,
		alias.Banned,
		alias.Notes,
	)

	err := row.Scan(
		&alias.ID,
		&alias.EntityID,
		&alias.Alias,
		&alias.Banned,
		&alias.Notes,
		&alias.CreatedAt,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// DeleteAlias removes one alias by entity and text.
// Returns whether a row was removed.
func (h *AliasesDBHandler) DeleteAlias(entityID int64, alias string) (bool, error) {
	var removed bool
	err := h.db.Instance.QueryRow(
		`SELECT * FROM delete_alias($1, $2)`,
		entityID,
		alias,
	).Scan(&removed)
	if err != nil {
		return false, helper.NewError("scan", err)
	}
	return removed, nil
}

// DeleteAliasesByEntity removes all aliases of an entity
func (h *AliasesDBHandler) DeleteAliasesByEntity(entityID int64) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_aliases_by_entity($1)`,
		entityID,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectAliasesByEntity retrieves all aliases of an entity ordered by text
func (h *AliasesDBHandler) SelectAliasesByEntity(entityID int64) ([]*model.Alias, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_aliases_by_entity($1)`,
		entityID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var aliases []*model.Alias
	for rows.Next() {
		alias := &model.Alias{}
		err := rows.Scan(
			&alias.ID,
			&alias.EntityID,
			&alias.Alias,
			&alias.Banned,
			&alias.Notes,
			&alias.CreatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		aliases = append(aliases, alias)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return aliases, nil
}

// SelectAliasConflicts returns the IDs of other entities already
// claiming the given alias text.
func (h *AliasesDBHandler) SelectAliasConflicts(alias string, excludeEntityID *int64) ([]int64, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_alias_conflicts($1, $2)`,
		alias,
		excludeEntityID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var entityIDs []int64
	for rows.Next() {
		var id int64
		err := rows.Scan(&id)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		entityIDs = append(entityIDs, id)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return entityIDs, nil
}
