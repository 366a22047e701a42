package commands

import (
	"database/sql"

	"github.com/teranos/relset/am"
	"github.com/teranos/relset/db"
	"github.com/teranos/relset/engine"
	"github.com/teranos/relset/entity"
	"github.com/teranos/relset/errors"
	"github.com/teranos/relset/logger"
	"github.com/teranos/relset/schema"
	"github.com/teranos/relset/sym"
)

// openDatabase opens and migrates the configured database.
func openDatabase(cfg *am.Config) (*sql.DB, error) {
	path := cfg.GetDatabasePath()
	database, err := db.OpenWithMigrations(path, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", path)
	}
	return database, nil
}

// openRegistry loads the field catalog named by schema.path. Without one,
// the registry is empty and every rule or filter is rejected.
func openRegistry(cfg *am.Config) (schema.Registry, func(), error) {
	if cfg.Schema.Path == "" {
		logger.Warnw("No schema.path configured; rules and filters will be rejected")
		return schema.NewStatic(nil), func() {}, nil
	}

	reg, err := schema.LoadFile(cfg.Schema.Path, logger.ComponentLogger("schema"))
	if err != nil {
		return nil, nil, errors.WithHint(err, "set schema.path in relset.toml to a YAML field catalog")
	}
	if !cfg.Schema.Watch {
		return reg, func() {}, nil
	}
	reg.OnReload(func() {
		logger.Infow(sym.Schema+" schema catalog reloaded; existing rules keep their checks", "path", reg.Path())
	})
	if err := reg.Watch(); err != nil {
		return nil, nil, err
	}
	return reg, func() { _ = reg.Stop() }, nil
}

// session bundles what most commands need.
type session struct {
	cfg    *am.Config
	db     *sql.DB
	engine *engine.Engine
	close  func()
}

// openSession loads config, opens the database and the field catalog and
// builds an engine over the local entity store.
func openSession() (*session, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}

	reg, stop, err := openRegistry(cfg)
	if err != nil {
		database.Close()
		return nil, err
	}

	eng := engine.New(database, reg, entity.NewSQLStore(database), cfg.SyncOptions(), logger.Logger)
	return &session{
		cfg:    cfg,
		db:     database,
		engine: eng,
		close: func() {
			stop()
			database.Close()
		},
	}, nil
}
