package services

import (
	"context"
	"fmt"

	"github.com/blogem/memorial-registry/access"
	"github.com/blogem/memorial-registry/apperr"
	"github.com/blogem/memorial-registry/logging"
	"github.com/blogem/memorial-registry/models"
	"github.com/blogem/memorial-registry/repositories"
)

// RecordService interface defines memorial record management
type RecordService interface {
	ListRecords(ctx context.Context) ([]models.Memorial, error)
	GetRecord(ctx context.Context, id int64) (*models.Memorial, error)
	CreateRecord(ctx context.Context, form *models.MemorialForm) (*models.Memorial, error)
	UpdateRecord(ctx context.Context, id int64, patch *models.MemorialPatch) (*models.Memorial, error)
	DeleteRecord(ctx context.Context, id int64) error
}

// recordService implements RecordService interface
type recordService struct {
	store   repositories.Transactor
	records repositories.RecordRepository
	gate    access.Gate
}

// NewRecordService creates a new record service
func NewRecordService(store repositories.Transactor, records repositories.RecordRepository, gate access.Gate) RecordService {
	return &recordService{
		store:   store,
		records: records,
		gate:    gate,
	}
}

// ListRecords returns every record in store order
func (s *recordService) ListRecords(ctx context.Context) ([]models.Memorial, error) {
	if _, err := access.RequireAdmin(ctx, s.gate); err != nil {
		return nil, err
	}
	return s.records.GetAll(ctx)
}

// GetRecord retrieves a record by ID
func (s *recordService) GetRecord(ctx context.Context, id int64) (*models.Memorial, error) {
	if _, err := access.RequireAdmin(ctx, s.gate); err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, apperr.NotFound("memorial with ID %d not found", id)
	}
	return s.records.GetByID(ctx, id)
}

// CreateRecord validates the form and stores a new record
func (s *recordService) CreateRecord(ctx context.Context, form *models.MemorialForm) (*models.Memorial, error) {
	actor, err := access.RequireAdmin(ctx, s.gate)
	if err != nil {
		return nil, err
	}

	if errs := form.Validate(); errs.HasErrors() {
		return nil, apperr.Validation("validation failed: " + errs.Error())
	}

	record := form.ToMemorial()
	err = withAudit(ctx, s.store, actor.DisplayName(), func(tx *repositories.Repositories) (string, error) {
		if err := tx.Records.Create(ctx, record); err != nil {
			return "", err
		}
		return fmt.Sprintf("created record %d (%s)", record.ID, record.Name), nil
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("memorial created", "id", record.ID, "actor", actor.DisplayName())
	return record, nil
}

// UpdateRecord merges the supplied fields into an existing record
func (s *recordService) UpdateRecord(ctx context.Context, id int64, patch *models.MemorialPatch) (*models.Memorial, error) {
	actor, err := access.RequireAdmin(ctx, s.gate)
	if err != nil {
		return nil, err
	}

	if errs := patch.Validate(); errs.HasErrors() {
		return nil, apperr.Validation("validation failed: " + errs.Error())
	}

	var record *models.Memorial
	err = withAudit(ctx, s.store, actor.DisplayName(), func(tx *repositories.Repositories) (string, error) {
		existing, err := tx.Records.GetByID(ctx, id)
		if err != nil {
			return "", err
		}

		patch.Apply(existing)
		if err := tx.Records.Update(ctx, existing); err != nil {
			return "", err
		}

		record = existing
		return fmt.Sprintf("updated record %d (%s)", existing.ID, existing.Name), nil
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("memorial updated", "id", id, "actor", actor.DisplayName())
	return record, nil
}

// DeleteRecord permanently deletes a record
func (s *recordService) DeleteRecord(ctx context.Context, id int64) error {
	actor, err := access.RequireAdmin(ctx, s.gate)
	if err != nil {
		return err
	}

	err = withAudit(ctx, s.store, actor.DisplayName(), func(tx *repositories.Repositories) (string, error) {
		existing, err := tx.Records.GetByID(ctx, id)
		if err != nil {
			return "", err
		}
		if err := tx.Records.Delete(ctx, id); err != nil {
			return "", err
		}
		return fmt.Sprintf("deleted record %d (%s)", id, existing.Name), nil
	})
	if err != nil {
		return err
	}

	logging.FromContext(ctx).Info("memorial deleted", "id", id, "actor", actor.DisplayName())
	return nil
}
