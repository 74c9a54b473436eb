// Package sqlite implements the entity store on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/NFTIndexor/internal/db"
	"github.com/goran-ethernal/NFTIndexor/internal/entity"
	"github.com/goran-ethernal/NFTIndexor/internal/logger"
	"github.com/goran-ethernal/NFTIndexor/internal/metrics"
	"github.com/goran-ethernal/NFTIndexor/internal/store"
	"github.com/goran-ethernal/NFTIndexor/internal/store/sqlite/migrations"
	"github.com/goran-ethernal/NFTIndexor/pkg/config"
	"github.com/russross/meddler"
)

const metricsDB = "entities"

// Compile-time check that Tx satisfies the store façade.
var _ store.Store = (*Tx)(nil)

// Store owns the entity database.
type Store struct {
	db  *sql.DB
	log *logger.Logger
}

// Open opens the database described by cfg and applies the entity migrations.
func Open(cfg config.DatabaseConfig, log *logger.Logger) (*Store, error) {
	database, err := db.NewSQLiteDBFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	s, err := New(database, log)
	if err != nil {
		database.Close()
		return nil, err
	}

	return s, nil
}

// New wraps an open database and applies the entity migrations.
func New(database *sql.DB, log *logger.Logger) (*Store, error) {
	if err := migrations.RunMigrations(log, database); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: database, log: log}, nil
}

// DB exposes the underlying database for read queries and maintenance.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Begin starts a unit of work. All writes through the returned Tx become
// visible to other readers only after Commit.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &Tx{tx: tx, log: s.log}, nil
}

// Collections returns every persisted collection.
func (s *Store) Collections(ctx context.Context) ([]*entity.Collection, error) {
	var collections []*entity.Collection

	//nolint:gosec // table name is a package constant
	query := "SELECT * FROM " + entity.TableCollections + " ORDER BY contract_created_at, id"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query collections: %w", err)
	}
	defer rows.Close()

	if err := meddler.ScanAll(rows, &collections); err != nil {
		return nil, fmt.Errorf("failed to scan collections: %w", err)
	}

	return collections, nil
}

// Tx is a store.Store bound to one database transaction.
type Tx struct {
	tx  *sql.Tx
	log *logger.Logger
}

// Load implements store.Store.
func (t *Tx) Load(table, id string, dst any) (bool, error) {
	defer observe("load", time.Now())

	//nolint:gosec // table names are package constants
	err := meddler.QueryRow(t.tx, dst, "SELECT * FROM "+table+" WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		metrics.DBErrorsInc(metricsDB, "load")
		return false, err
	}

	return true, nil
}

// Save implements store.Store with INSERT OR REPLACE keyed by the id column.
func (t *Tx) Save(table string, entity any) error {
	defer observe("save", time.Now())

	cols, err := meddler.ColumnsQuoted(entity, true)
	if err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	placeholders, err := meddler.PlaceholdersString(entity, true)
	if err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	values, err := meddler.Values(entity, true)
	if err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	//nolint:gosec // table names are package constants
	query := fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)", table, cols, placeholders)

	if _, err := t.tx.Exec(query, values...); err != nil {
		metrics.DBErrorsInc(metricsDB, "save")
		return fmt.Errorf("failed to save into %s: %w", table, err)
	}

	return nil
}

// Remove implements store.Store.
func (t *Tx) Remove(table, id string) error {
	defer observe("remove", time.Now())

	//nolint:gosec // table names are package constants
	if _, err := t.tx.Exec("DELETE FROM "+table+" WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to remove from %s: %w", table, err)
	}

	return nil
}

// PendingTransfers returns the breadcrumbs recorded for txHash.
func (t *Tx) PendingTransfers(txHash common.Hash) ([]*entity.PendingTransfer, error) {
	var pending []*entity.PendingTransfer

	//nolint:gosec // table name is a package constant
	query := "SELECT * FROM " + entity.TablePendingTransfers + " WHERE transaction_hash = ? ORDER BY id"

	if err := meddler.QueryAll(t.tx, &pending, query, txHash.Hex()); err != nil {
		return nil, fmt.Errorf("failed to query pending transfers: %w", err)
	}

	return pending, nil
}

// Commit commits the unit of work.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Rollback discards the unit of work. Rolling back a finished transaction is
// a no-op.
func (t *Tx) Rollback() {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		t.log.Errorf("failed to rollback transaction: %v", err)
	}
}

func observe(operation string, start time.Time) {
	metrics.DBQueryInc(metricsDB, operation)
	metrics.DBQueryDuration(metricsDB, operation, time.Since(start))
}
