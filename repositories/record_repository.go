package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/blogem/memorial-registry/apperr"
	"github.com/blogem/memorial-registry/models"
	"github.com/blogem/memorial-registry/userctx"
)

// RecordRepository interface defines memorial record database operations
type RecordRepository interface {
	GetAll(ctx context.Context) ([]models.Memorial, error)
	GetByID(ctx context.Context, id int64) (*models.Memorial, error)
	FindByName(ctx context.Context, name string) ([]models.Memorial, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	DistinctNames(ctx context.Context, prefix string) ([]string, error)
	Create(ctx context.Context, record *models.Memorial) error
	Update(ctx context.Context, record *models.Memorial) error
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int, error)
}

// recordRepository implements RecordRepository interface
type recordRepository struct {
	db DBTX
}

// NewRecordRepository creates a new record repository
func NewRecordRepository(db DBTX) RecordRepository {
	return &recordRepository{db: db}
}

const recordColumns = `id, name, side, area, row_num, column_num,
		       created_by, created_at, modified_by, modified_at`

// GetAll retrieves every record in insertion order
func (r *recordRepository) GetAll(ctx context.Context) ([]models.Memorial, error) {
	query := `SELECT ` + recordColumns + ` FROM memorials ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperr.Storage("failed to query memorials", err)
	}
	return scanRecords(rows)
}

// GetByID retrieves a record by ID
func (r *recordRepository) GetByID(ctx context.Context, id int64) (*models.Memorial, error) {
	query := `SELECT ` + recordColumns + ` FROM memorials WHERE id = ?`

	record, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("memorial with ID %d not found", id)
	}
	if err != nil {
		return nil, apperr.Storage("failed to get memorial", err)
	}
	return record, nil
}

// FindByName retrieves all records whose name equals name exactly
func (r *recordRepository) FindByName(ctx context.Context, name string) ([]models.Memorial, error) {
	query := `SELECT ` + recordColumns + ` FROM memorials WHERE name = ? ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, name)
	if err != nil {
		return nil, apperr.Storage("failed to query memorials by name", err)
	}
	return scanRecords(rows)
}

// ExistsByName reports whether at least one record carries name
func (r *recordRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM memorials WHERE name = ?)`, name).Scan(&exists)
	if err != nil {
		return false, apperr.Storage("failed to check memorial name", err)
	}
	return exists, nil
}

// DistinctNames returns distinct names starting with prefix, sorted by name
func (r *recordRepository) DistinctNames(ctx context.Context, prefix string) ([]string, error) {
	query := `SELECT DISTINCT name FROM memorials WHERE substr(name, 1, length(?)) = ? ORDER BY name ASC`

	rows, err := r.db.QueryContext(ctx, query, prefix, prefix)
	if err != nil {
		return nil, apperr.Storage("failed to query memorial names", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, apperr.Storage("failed to scan memorial name", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("error iterating memorial names", err)
	}
	return names, nil
}

// Create inserts a new record and assigns its ID
func (r *recordRepository) Create(ctx context.Context, record *models.Memorial) error {
	query := `
		INSERT INTO memorials (name, side, area, row_num, column_num, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	userName := userctx.GetActorName(ctx)
	now := time.Now().UTC()

	result, err := r.db.ExecContext(ctx, query,
		record.Name,
		string(record.Side),
		record.Area,
		record.Row,
		record.Column,
		userName,
		now,
	)
	if err != nil {
		return apperr.Storage("failed to create memorial", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return apperr.Storage("failed to get inserted ID", err)
	}

	record.ID = id
	record.CreatedBy = userName
	record.CreatedAt = now
	return nil
}

// Update writes every field of record in a single statement
func (r *recordRepository) Update(ctx context.Context, record *models.Memorial) error {
	query := `
		UPDATE memorials
		SET name = ?, side = ?, area = ?, row_num = ?, column_num = ?,
		    modified_by = ?, modified_at = ?
		WHERE id = ?
	`

	userName := userctx.GetActorName(ctx)
	now := time.Now().UTC()

	result, err := r.db.ExecContext(ctx, query,
		record.Name,
		string(record.Side),
		record.Area,
		record.Row,
		record.Column,
		userName,
		now,
		record.ID,
	)
	if err != nil {
		return apperr.Storage("failed to update memorial", err)
	}

	if err := expectOneRow(result, record.ID); err != nil {
		return err
	}

	record.ModifiedBy = userName
	record.ModifiedAt = &now
	return nil
}

// Delete permanently removes a record by ID
func (r *recordRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM memorials WHERE id = ?`, id)
	if err != nil {
		return apperr.Storage("failed to delete memorial", err)
	}
	return expectOneRow(result, id)
}

// DeleteAll removes every record and returns how many were removed
func (r *recordRepository) DeleteAll(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM memorials`)
	if err != nil {
		return 0, apperr.Storage("failed to clear memorials", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, apperr.Storage("failed to get rows affected", err)
	}
	return n, nil
}

// Count returns the total number of records
func (r *recordRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memorials`).Scan(&count); err != nil {
		return 0, apperr.Storage("failed to count memorials", err)
	}
	return count, nil
}

func expectOneRow(result sql.Result, id int64) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperr.Storage("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperr.NotFound("memorial with ID %d not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Memorial, error) {
	var record models.Memorial
	var side string
	var modifiedBy sql.NullString
	var modifiedAt sql.NullTime

	err := row.Scan(
		&record.ID,
		&record.Name,
		&side,
		&record.Area,
		&record.Row,
		&record.Column,
		&record.CreatedBy,
		&record.CreatedAt,
		&modifiedBy,
		&modifiedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Side = models.Side(side)
	// Convert NULL values to empty string/nil
	if modifiedBy.Valid {
		record.ModifiedBy = modifiedBy.String
	}
	if modifiedAt.Valid {
		record.ModifiedAt = &modifiedAt.Time
	}
	return &record, nil
}

func scanRecords(rows *sql.Rows) ([]models.Memorial, error) {
	defer rows.Close()

	records := []models.Memorial{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, apperr.Storage("failed to scan memorial", err)
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("error iterating memorials", err)
	}
	return records, nil
}

