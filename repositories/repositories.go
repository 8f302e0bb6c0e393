package repositories

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX is the subset of *sql.DB and *sql.Tx the repositories need, so the same
// repository code runs inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repositories struct holds all repository interfaces
type Repositories struct {
	Records RecordRepository
	Audit   AuditRepository
	Users   UserRepository
}

// NewRepositories creates and initializes all repositories over db
func NewRepositories(db DBTX) *Repositories {
	return &Repositories{
		Records: NewRecordRepository(db),
		Audit:   NewAuditRepository(db),
		Users:   NewUserRepository(db),
	}
}

// Transactor runs fn with repositories bound to a single transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	WithTx(ctx context.Context, fn func(tx *Repositories) error) error
}

// Store owns the database handle and hands out repositories
type Store struct {
	db *sql.DB
	*Repositories
}

// NewStore creates a store over db
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, Repositories: NewRepositories(db)}
}

// WithTx implements Transactor
func (s *Store) WithTx(ctx context.Context, fn func(tx *Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(NewRepositories(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
