package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gitter-badger/pithos/pkg/util/config"
	"github.com/gitter-badger/pithos/pkg/util/mlog"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	_ "github.com/go-sql-driver/mysql"
)

var logger *logrus.Entry

const maxPool = 8

// Store is a mysql catalog store, which holds the gateway's users,
// buckets, the object index and the multipart upload bookkeeping.
// Blob payloads live in the blob store; the catalog only points at
// them.
type Store struct {
	cfg *config.Gw
	db  *sql.DB
}

// New creates a Store object with the opened db.
func New(cfg *config.Gw) (*Store, error) {
	logger = mlog.GetPackageLogger("app/gw/infrastructure/repository/mysql")

	// parseTime lets datetime columns scan into time.Time.
	db, err := sql.Open(
		"mysql",
		fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
			cfg.MySQLUser,
			cfg.MySQLPassword,
			cfg.MySQLHost,
			cfg.MySQLPort,
			cfg.MySQLDatabase,
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open mysql")
	}
	db.SetMaxOpenConns(maxPool)

	s := &Store{
		cfg: cfg,
		db:  db,
	}
	if err = s.init(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to generate base tables")
	}

	return s, nil
}

func (s *Store) init() error {
	// Generates base tables.
	for _, q := range generateSQLBase {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}

	return nil
}

// Close closes the mysql database.
func (s *Store) Close() {
	s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// QueryRow executes a query that is expected to return at most one row.
func (s *Store) QueryRow(query string, args ...interface{}) *sql.Row {
	return s.db.QueryRow(query, args...)
}

// Query executes a query that returns rows.
func (s *Store) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.Query(query, args...)
}

// Execute executes a query without returning any rows.
func (s *Store) Execute(query string, args ...interface{}) (sql.Result, error) {
	return s.db.Exec(query, args...)
}

// Begin starts a transaction.
func (s *Store) Begin() (*sql.Tx, error) {
	return s.db.Begin()
}
