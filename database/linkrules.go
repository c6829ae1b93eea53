package database

import (
	"context"
	dbsql "database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/siherrmann/canon/helper"
	"github.com/siherrmann/canon/model"
	"github.com/siherrmann/canon/sql"
)

// LinkRulesDBHandlerFunctions defines the interface for link rule database operations.
type LinkRulesDBHandlerFunctions interface {
	UpsertLinkRule(rule *model.LinkRule) error
	SelectLinkRule(entityID int64) (*model.LinkRule, error)
	DeleteLinkRule(entityID int64) error
}

// LinkRulesDBHandler handles link rule database operations
type LinkRulesDBHandler struct {
	db *helper.Database
}

// NewLinkRulesDBHandler creates a new link rules database handler.
// If force is true, it will reload the SQL functions even if they already exist.
func NewLinkRulesDBHandler(db *helper.Database, force bool) (*LinkRulesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	linkRulesDbHandler := &LinkRulesDBHandler{
		db: db,
	}

	err := sql.LoadLinkRulesSql(linkRulesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load link rules sql", err)
	}

	err = linkRulesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized LinkRulesDBHandler")

	return linkRulesDbHandler, nil
}

// CreateTable creates the 'link_rules' table in the database.
func (h *LinkRulesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_link_rules();`)
	if err != nil {
		log.Panicf("error initializing link_rules table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table link_rules")

	return nil
}

// UpsertLinkRule inserts or updates the link rule of an entity
func (h *LinkRulesDBHandler) UpsertLinkRule(rule *model.LinkRule) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM upsert_link_rule($1, $2, $3, $4, $5, $6, $7, $8)`,
		rule.EntityID,
		rule.Mode,
		rule.Nofollow,
		rule.NewTab,
		rule.SkipHeadings,
		rule.SkipQuotes,
		rule.SkipCode,
		rule.TargetURL,
	)

	err := scanLinkRule(row, rule)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectLinkRule retrieves the link rule of an entity.
// Returns nil without error when the entity has no stored rule.
func (h *LinkRulesDBHandler) SelectLinkRule(entityID int64) (*model.LinkRule, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_link_rule($1)`,
		entityID,
	)

	rule := &model.LinkRule{}
	err := scanLinkRule(row, rule)
	if errors.Is(err, dbsql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return rule, nil
}

// DeleteLinkRule removes the link rule of an entity
func (h *LinkRulesDBHandler) DeleteLinkRule(entityID int64) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_link_rule($1)`,
		entityID,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

func scanLinkRule(row *dbsql.Row, rule *model.LinkRule) error {
	return row.Scan(
		&rule.ID,
		&rule.EntityID,
		&rule.Mode,
		&rule.Nofollow,
		&rule.NewTab,
		&rule.SkipHeadings,
		&rule.SkipQuotes,
		&rule.SkipCode,
		&rule.TargetURL,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
}
