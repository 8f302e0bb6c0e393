package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/blogem/memorial-registry/access"
	"github.com/blogem/memorial-registry/apperr"
	"github.com/blogem/memorial-registry/logging"
	"github.com/blogem/memorial-registry/repositories"
	"github.com/blogem/memorial-registry/storage"
	"github.com/blogem/memorial-registry/tabular"
)

const backupTimeLayout = "20060102-150405"

var backupNamePattern = regexp.MustCompile(`^memorials-(\d{8}-\d{6})-[0-9a-f]{8}\.xlsx$`)

// Backup describes one stored snapshot
type Backup struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"sha256"`
	CreatedAt time.Time `json:"createdAt"`
}

// BackupService interface defines snapshot and restore of the record store
type BackupService interface {
	Create(ctx context.Context) (*Backup, error)
	List(ctx context.Context) ([]Backup, error)
	Restore(ctx context.Context, name string) (int, error)
}

type backupService struct {
	store   *repositories.Store
	gate    access.Gate
	backups storage.Storage
	now     func() time.Time
}

// NewBackupService creates a backup service writing snapshots to backups
func NewBackupService(store *repositories.Store, gate access.Gate, backups storage.Storage) BackupService {
	return &backupService{
		store:   store,
		gate:    gate,
		backups: backups,
		now:     time.Now,
	}
}

// Create writes an xlsx snapshot of every record. The snapshot is removed
// again if the audit entry cannot be committed.
func (s *backupService) Create(ctx context.Context) (*Backup, error) {
	actor, err := access.RequireAdmin(ctx, s.gate)
	if err != nil {
		return nil, err
	}

	created := s.now().UTC()
	name := fmt.Sprintf("memorials-%s-%s.xlsx", created.Format(backupTimeLayout), uuid.NewString()[:8])

	var backup *Backup
	err = withAudit(ctx, s.store, actor.DisplayName(), func(tx *repositories.Repositories) (string, error) {
		records, err := tx.Records.GetAll(ctx)
		if err != nil {
			return "", err
		}

		var buf bytes.Buffer
		if err := encodeRecords(&buf, tabular.FormatXLSX, records); err != nil {
			return "", err
		}

		obj, err := s.backups.Put(ctx, name, buf.Bytes())
		if err != nil {
			return "", apperr.Storage("failed to write backup", err)
		}

		backup = &Backup{
			Name:      name,
			Size:      obj.Size,
			Checksum:  obj.Checksum,
			CreatedAt: created.Truncate(time.Second),
		}
		return fmt.Sprintf("created backup %s (%d records)", name, len(records)), nil
	})
	if err != nil {
		if backup != nil {
			if derr := s.backups.Delete(ctx, name); derr != nil {
				logging.FromContext(ctx).Warn("failed to remove orphaned backup", "name", name, "error", derr)
			}
		}
		return nil, err
	}

	logging.FromContext(ctx).Info("backup created", "name", name, "size", backup.Size, "actor", actor.DisplayName())
	return backup, nil
}

// List returns the stored snapshots, newest first. Objects that do not
// follow the snapshot naming scheme are ignored.
func (s *backupService) List(ctx context.Context) ([]Backup, error) {
	if _, err := access.RequireAdmin(ctx, s.gate); err != nil {
		return nil, err
	}

	objects, err := s.backups.List(ctx)
	if err != nil {
		return nil, apperr.Storage("failed to list backups", err)
	}

	backups := []Backup{}
	for _, obj := range objects {
		created, ok := parseBackupName(obj.Name)
		if !ok {
			continue
		}
		backups = append(backups, Backup{
			Name:      obj.Name,
			Size:      obj.Size,
			Checksum:  obj.Checksum,
			CreatedAt: created,
		})
	}

	sort.SliceStable(backups, func(i, j int) bool {
		if !backups[i].CreatedAt.Equal(backups[j].CreatedAt) {
			return backups[i].CreatedAt.After(backups[j].CreatedAt)
		}
		return backups[i].Name > backups[j].Name
	})
	return backups, nil
}

// Restore replaces every record with the contents of the named snapshot in
// a single transaction and returns the number of records restored.
func (s *backupService) Restore(ctx context.Context, name string) (int, error) {
	actor, err := access.RequireAdmin(ctx, s.gate)
	if err != nil {
		return 0, err
	}
	if _, ok := parseBackupName(name); !ok {
		return 0, apperr.Validation("invalid backup name")
	}

	data, err := s.backups.Get(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, apperr.NotFound("backup %q not found", name)
	}
	if err != nil {
		return 0, apperr.Storage("failed to read backup", err)
	}

	table, err := tabular.Decode(bytes.NewReader(data), name)
	if err != nil {
		return 0, apperr.ImportFormat("backup is not a readable spreadsheet", err)
	}
	records, skipped := recordsFromTable(table)
	if len(records) == 0 && skipped > 0 {
		return 0, apperr.ImportFormat("backup contains no valid records", nil)
	}

	err = withAudit(ctx, s.store, actor.DisplayName(), func(tx *repositories.Repositories) (string, error) {
		if _, err := tx.Records.DeleteAll(ctx); err != nil {
			return "", err
		}
		for i := range records {
			if err := tx.Records.Create(ctx, &records[i]); err != nil {
				return "", err
			}
		}
		return fmt.Sprintf("restored backup %s (%d records)", name, len(records)), nil
	})
	if err != nil {
		return 0, err
	}

	logging.FromContext(ctx).Info("backup restored",
		"name", name,
		"records", len(records),
		"skipped", skipped,
		"actor", actor.DisplayName(),
	)
	return len(records), nil
}

func parseBackupName(name string) (time.Time, bool) {
	m := backupNamePattern.FindStringSubmatch(name)
	if m == nil || strings.ContainsAny(name, `/\`) {
		return time.Time{}, false
	}
	t, err := time.Parse(backupTimeLayout, m[1])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
