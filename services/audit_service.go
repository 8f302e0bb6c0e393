package services

import (
	"context"

	"github.com/blogem/memorial-registry/access"
	"github.com/blogem/memorial-registry/models"
	"github.com/blogem/memorial-registry/repositories"
)

// AuditService interface defines read access to the audit log
type AuditService interface {
	ListRecent(ctx context.Context, limit int) ([]models.AuditLogEntry, error)
}

type auditService struct {
	audit repositories.AuditRepository
	gate  access.Gate
}

// NewAuditService creates a new audit service
func NewAuditService(audit repositories.AuditRepository, gate access.Gate) AuditService {
	return &auditService{audit: audit, gate: gate}
}

// ListRecent returns the newest limit entries, or all of them when limit <= 0
func (s *auditService) ListRecent(ctx context.Context, limit int) ([]models.AuditLogEntry, error) {
	if _, err := access.RequireAdmin(ctx, s.gate); err != nil {
		return nil, err
	}
	return s.audit.ListRecent(ctx, limit)
}
