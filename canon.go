package canon

import (
	"log/slog"
	"os"

	"github.com/siherrmann/canon/core/autolink"
	"github.com/siherrmann/canon/core/detect"
	"github.com/siherrmann/canon/core/render"
	"github.com/siherrmann/canon/core/store"
	"github.com/siherrmann/canon/core/validate"
	"github.com/siherrmann/canon/database"
	"github.com/siherrmann/canon/helper"
	"github.com/siherrmann/canon/model"
	loadSql "github.com/siherrmann/canon/sql"
)

// Canon provides a unified interface to the entity dictionary, the
// detection and linking services and the render pipeline.
type Canon struct {
	DB           *helper.Database
	Entities     *database.EntitiesDBHandler
	Aliases      *database.AliasesDBHandler
	LinkRules    *database.LinkRulesDBHandler
	Associations *database.AssociationsDBHandler
	Store        *store.EntityStore
	Detector     *detect.Detector
	Linker       *autolink.Linker
	Validator    *validate.Validator

	options Options
	// Logging
	log *slog.Logger
}

// Options tunes the linking and deduplication behavior. The zero value
// is replaced with the defaults.
type Options struct {
	Link  model.LinkConfig
	Dedup model.DedupConfig
}

// DefaultOptions returns the default linking and dedup configuration.
func DefaultOptions() Options {
	return Options{
		Link:  model.DefaultLinkConfig(),
		Dedup: model.DefaultDedupConfig(),
	}
}

// NewCanon creates a new Canon instance with all handlers initialized
// using the default options.
func NewCanon(config *helper.DatabaseConfiguration) (*Canon, error) {
	return NewCanonWithOptions(config, DefaultOptions())
}

// NewCanonWithOptions creates a new Canon instance with explicit
// linking and dedup configuration.
func NewCanonWithOptions(config *helper.DatabaseConfiguration, options Options) (*Canon, error) {
	// Logger
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, opts))

	if options.Link.MaxLinksPerDocument == 0 && options.Link.DefaultMode == "" {
		options.Link = model.DefaultLinkConfig()
	}
	if options.Dedup.Rules == nil {
		options.Dedup = model.DefaultDedupConfig()
	}

	err := options.Dedup.Validate()
	if err != nil {
		return nil, helper.NewError("validate dedup config", err)
	}

	// Initialize database
	db := helper.NewDatabase("canon", config, logger)
	err = loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// Create all handlers, force=false to not reload if functions already exist
	entities, err := database.NewEntitiesDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create entities handler", err)
	}

	aliases, err := database.NewAliasesDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create aliases handler", err)
	}

	linkRules, err := database.NewLinkRulesDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create link rules handler", err)
	}

	associations, err := database.NewAssociationsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create associations handler", err)
	}

	entityStore := store.NewEntityStore(entities, aliases, linkRules, associations, logger)
	detector := detect.NewDetector(entityStore, logger)
	linker, err := autolink.NewLinker(entityStore, options.Link, logger)
	if err != nil {
		return nil, helper.NewError("create linker", err)
	}
	validator := validate.NewValidator(entityStore, logger)

	return &Canon{
		DB:           db,
		Entities:     entities,
		Aliases:      aliases,
		LinkRules:    linkRules,
		Associations: associations,
		Store:        entityStore,
		Detector:     detector,
		Linker:       linker,
		Validator:    validator,
		options:      options,
		log:          logger,
	}, nil
}

// NewRender creates a render pipeline over the wired services. Each
// pipeline hands out per-render collectors; the pipeline itself can be
// shared across renders.
func (c *Canon) NewRender() (*render.Pipeline, error) {
	return render.NewPipeline(c.Store, c.Detector, c.Linker, c.Validator, c.options.Dedup, c.log)
}

// Close closes the database connection
func (c *Canon) Close() error {
	if c.DB != nil && c.DB.Instance != nil {
		return c.DB.Instance.Close()
	}
	return nil
}
