package staging

import (
	"context"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/trialgraph/internal/errors"
)

// PostgresStore stages results in a shared PostgreSQL database
type PostgresStore struct {
	*sqlStore
}

// NewPostgresStore connects through the pgx stdlib driver
func NewPostgresStore(dsn string, logger logrus.FieldLogger) (*PostgresStore, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, errors.DatabaseErrorf(err, "connect to postgres")
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := &PostgresStore{
		sqlStore: &sqlStore{db: db, logger: logger.WithField("staging", "postgres")},
	}
	if err := store.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}
