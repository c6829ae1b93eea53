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

// AssociationsDBHandlerFunctions defines the interface for document-entity association database operations.
type AssociationsDBHandlerFunctions interface {
	UpsertAssociation(association *model.Association) error
	SelectAssociationsByDocument(documentID int64) ([]*model.Association, error)
	DeleteAssociationsByDocument(documentID int64) error
	DeleteAssociation(documentID int64, entityID int64, role model.Role) (bool, error)
	CountAssociationsByEntity(entityID int64) (int, error)
	DocumentHasRole(documentID int64, role model.Role) (bool, error)
}

// AssociationsDBHandler handles document-entity association database operations
type AssociationsDBHandler struct {
	db *helper.Database
}

// NewAssociationsDBHandler creates a new associations database handler.
// If force is true, it will reload the SQL functions even if they already exist.
func NewAssociationsDBHandler(db *helper.Database, force bool) (*AssociationsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	associationsDbHandler := &AssociationsDBHandler{
		db: db,
	}

	err := sql.LoadDocumentEntitiesSql(associationsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load document entities sql", err)
	}

	err = associationsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized AssociationsDBHandler")

	return associationsDbHandler, nil
}

// CreateTable creates the 'document_entities' table in the database.
func (h *AssociationsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_document_entities();`)
	if err != nil {
		log.Panicf("error initializing document_entities table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table document_entities")

	return nil
}

// UpsertAssociation inserts a document-entity association or, on conflict,
// keeps the higher confidence of the stored and the incoming value.
func (h *AssociationsDBHandler) UpsertAssociation(association *model.Association) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM upsert_document_entity($1, $2, $3, $4, $5)`,
		association.DocumentID,
		association.EntityID,
		association.Role,
		association.Confidence,
		association.DetectedBy,
	)

	err := row.Scan(
		&association.ID,
		&association.DocumentID,
		&association.EntityID,
		&association.Role,
		&association.Confidence,
		&association.DetectedBy,
		&association.CreatedAt,
		&association.UpdatedAt,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectAssociationsByDocument retrieves all associations of a document
// ordered by role and descending confidence.
func (h *AssociationsDBHandler) SelectAssociationsByDocument(documentID int64) ([]*model.Association, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_document_entities($1)`,
		documentID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var associations []*model.Association
	for rows.Next() {
		association := &model.Association{}
		err := rows.Scan(
			&association.ID,
			&association.DocumentID,
			&association.EntityID,
			&association.Role,
			&association.Confidence,
			&association.DetectedBy,
			&association.CreatedAt,
			&association.UpdatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		associations = append(associations, association)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return associations, nil
}

// DeleteAssociationsByDocument removes all associations of a document
func (h *AssociationsDBHandler) DeleteAssociationsByDocument(documentID int64) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_document_entities($1)`,
		documentID,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// DeleteAssociation removes one association by document, entity and role.
// Returns whether a row was removed.
func (h *AssociationsDBHandler) DeleteAssociation(documentID int64, entityID int64, role model.Role) (bool, error) {
	var removed bool
	err := h.db.Instance.QueryRow(
		`SELECT * FROM delete_document_entity($1, $2, $3)`,
		documentID,
		entityID,
		role,
	).Scan(&removed)
	if err != nil {
		return false, helper.NewError("scan", err)
	}
	return removed, nil
}

// CountAssociationsByEntity returns the number of documents referencing an entity
func (h *AssociationsDBHandler) CountAssociationsByEntity(entityID int64) (int, error) {
	var count int
	err := h.db.Instance.QueryRow(
		`SELECT * FROM count_document_entities_by_entity($1)`,
		entityID,
	).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}
	return count, nil
}

// DocumentHasRole reports whether a document has at least one association with the given role
func (h *AssociationsDBHandler) DocumentHasRole(documentID int64, role model.Role) (bool, error) {
	var has bool
	err := h.db.Instance.QueryRow(
		`SELECT * FROM document_has_role($1, $2)`,
		documentID,
		role,
	).Scan(&has)
	if err != nil {
		return false, helper.NewError("scan", err)
	}
	return has, nil
}
