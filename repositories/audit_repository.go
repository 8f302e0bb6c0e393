package repositories

import (
	"context"
	"time"

	"github.com/blogem/memorial-registry/apperr"
	"github.com/blogem/memorial-registry/models"
)

// AuditRepository handles audit log persistence. Entries are never updated or deleted.
type AuditRepository interface {
	Append(ctx context.Context, actor, action string) (*models.AuditLogEntry, error)
	ListRecent(ctx context.Context, limit int) ([]models.AuditLogEntry, error)
}

type sqliteAuditRepository struct {
	db  DBTX
	now func() time.Time
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db DBTX) AuditRepository {
	return &sqliteAuditRepository{db: db, now: time.Now}
}

// Append inserts a new audit log entry stamped with the current UTC time
func (r *sqliteAuditRepository) Append(ctx context.Context, actor, action string) (*models.AuditLogEntry, error) {
	entry := &models.AuditLogEntry{
		Timestamp: r.now().UTC(),
		Actor:     actor,
		Action:    action,
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (timestamp, actor, action) VALUES (?, ?, ?)`,
		entry.Timestamp,
		entry.Actor,
		entry.Action,
	)
	if err != nil {
		return nil, apperr.Storage("failed to append audit entry", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, apperr.Storage("failed to get audit entry ID", err)
	}
	entry.ID = id

	return entry, nil
}

// ListRecent returns entries most recent first; limit <= 0 returns all of them
func (r *sqliteAuditRepository) ListRecent(ctx context.Context, limit int) ([]models.AuditLogEntry, error) {
	// SQLite treats a negative LIMIT as no limit
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, timestamp, actor, action
		FROM audit_log
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, apperr.Storage("failed to query audit log", err)
	}
	defer rows.Close()

	entries := []models.AuditLogEntry{}
	for rows.Next() {
		var entry models.AuditLogEntry
		if err := rows.Scan(&entry.ID, &entry.Timestamp, &entry.Actor, &entry.Action); err != nil {
			return nil, apperr.Storage("failed to scan audit entry", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("error iterating audit log", err)
	}

	return entries, nil
}
