package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed init.sql
var initSQL string

//go:embed entities.sql
var entitiesSQL string

//go:embed aliases.sql
var aliasesSQL string

//go:embed link_rules.sql
var linkRulesSQL string

//go:embed document_entities.sql
var documentEntitiesSQL string

// Function lists for verification
var EntitiesFunctions = []string{
	"init_entities",
	"insert_entity",
	"update_entity",
	"delete_entity",
	"select_entity",
	"select_entity_by_rid",
	"select_entity_by_canonical",
	"select_entity_by_alias",
	"search_entities",
	"count_entities",
	"select_linkable_entities",
	"canonical_exists",
}

var AliasesFunctions = []string{
	"init_aliases",
	"insert_alias",
	"delete_alias",
	"delete_aliases_by_entity",
	"select_aliases_by_entity",
	"select_alias_conflicts",
}

var LinkRulesFunctions = []string{
	"init_link_rules",
	"upsert_link_rule",
	"select_link_rule",
	"delete_link_rule",
}

var DocumentEntitiesFunctions = []string{
	"init_document_entities",
	"upsert_document_entity",
	"select_document_entities",
	"delete_document_entities",
	"delete_document_entity",
	"count_document_entities_by_entity",
	"document_has_role",
}

// Init intializes db extensions and shared trigger functions
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	log.Println("Database extensions initialized successfully")
	return nil
}

// LoadEntitiesSql loads entity-related SQL functions
func LoadEntitiesSql(db *sql.DB, force bool) error {
	return loadSql(db, force, entitiesSQL, EntitiesFunctions, "entities")
}

// LoadAliasesSql loads alias-related SQL functions
func LoadAliasesSql(db *sql.DB, force bool) error {
	return loadSql(db, force, aliasesSQL, AliasesFunctions, "aliases")
}

// LoadLinkRulesSql loads link-rule-related SQL functions
func LoadLinkRulesSql(db *sql.DB, force bool) error {
	return loadSql(db, force, linkRulesSQL, LinkRulesFunctions, "link rules")
}

// LoadDocumentEntitiesSql loads association-related SQL functions
func LoadDocumentEntitiesSql(db *sql.DB, force bool) error {
	return loadSql(db, force, documentEntitiesSQL, DocumentEntitiesFunctions, "document entities")
}

// LoadAllSql loads all SQL functions
func LoadAllSql(db *sql.DB, force bool) error {
	if err := LoadEntitiesSql(db, force); err != nil {
		return err
	}

	if err := LoadAliasesSql(db, force); err != nil {
		return err
	}

	if err := LoadLinkRulesSql(db, force); err != nil {
		return err
	}

	if err := LoadDocumentEntitiesSql(db, force); err != nil {
		return err
	}

	return nil
}

// loadSql executes a SQL function file and verifies all functions exist.
// If force is false and all functions already exist, nothing is reloaded.
func loadSql(db *sql.DB, force bool, sqlContent string, functions []string, name string) error {
	if !force {
		exist, err := checkFunctions(db, functions)
		if err != nil {
			return fmt.Errorf("error checking existing %s functions: %w", name, err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(sqlContent)
	if err != nil {
		return fmt.Errorf("error executing %s SQL: %w", name, err)
	}

	exist, err := checkFunctions(db, functions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Printf("SQL %s functions loaded successfully", name)
	return nil
}

// checkFunctions verifies that all required functions exist in the database
func checkFunctions(db *sql.DB, sqlFunctions []string) (bool, error) {
	var allExist bool
	for _, f := range sqlFunctions {
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			f,
		).Scan(&allExist)
		if err != nil {
			return false, fmt.Errorf("error checking existence of function %s: %w", f, err)
		}
		if !allExist {
			log.Printf("Function %s does not exist", f)
			break
		}
	}
	return allExist, nil
}
