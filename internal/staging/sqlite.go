package staging

import (
	"context"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/trialgraph/internal/errors"
)

// SQLiteStore stages results in a local SQLite file
type SQLiteStore struct {
	*sqlStore
	path string
}

// NewSQLiteStore opens (creating if needed) the database at path
func NewSQLiteStore(path string, logger logrus.FieldLogger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.FileSystemErrorf(err, "create staging directory")
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, errors.DatabaseErrorf(err, "connect to sqlite at %s", path)
	}

	// one writer; WAL keeps readers unblocked during a save
	db.SetMaxOpenConns(1)
	db.Exec("PRAGMA journal_mode = WAL")
	db.Exec("PRAGMA synchronous = NORMAL")

	store := &SQLiteStore{
		sqlStore: &sqlStore{db: db, logger: logger.WithField("staging", "sqlite")},
		path:     path,
	}
	if err := store.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location
func (s *SQLiteStore) Path() string {
	return s.path
}
