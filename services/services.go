package services

import (
	"context"

	"github.com/blogem/memorial-registry/access"
	"github.com/blogem/memorial-registry/repositories"
	"github.com/blogem/memorial-registry/storage"
	"github.com/blogem/memorial-registry/telemetry"
)

// Options carries deployment policy into the services
type Options struct {
	Gate         access.Gate
	PublicSearch bool
	PublicExport bool
	ImportDedup  bool
	Backups      storage.Storage
	BcryptCost   int
}

// Services holds all service instances
type Services struct {
	Records  RecordService
	Search   SearchService
	Transfer TransferService
	Audit    AuditService
	Auth     AuthService
	Backup   BackupService
}

// NewServices creates and initializes all service instances
func NewServices(store *repositories.Store, opts Options) *Services {
	if opts.Gate == nil {
		opts.Gate = access.ContextGate{}
	}

	return &Services{
		Records:  NewRecordService(store, store.Records, opts.Gate),
		Search:   NewSearchService(store.Records, opts.Gate, opts.PublicSearch),
		Transfer: NewTransferService(store, opts.Gate, opts.ImportDedup, opts.PublicExport),
		Audit:    NewAuditService(store.Audit, opts.Gate),
		Auth:     NewAuthService(store.Users, opts.BcryptCost),
		Backup:   NewBackupService(store, opts.Gate, opts.Backups),
	}
}

// withAudit runs fn in a transaction and appends the action it returns to the
// audit log in that same transaction, so a mutation and its audit entry
// commit together or not at all.
func withAudit(ctx context.Context, store repositories.Transactor, actor string, fn func(tx *repositories.Repositories) (string, error)) error {
	err := store.WithTx(ctx, func(tx *repositories.Repositories) error {
		action, err := fn(tx)
		if err != nil {
			return err
		}
		_, err = tx.Audit.Append(ctx, actor, action)
		return err
	})
	if err == nil {
		telemetry.AuditEntriesTotal.Inc()
	}
	return err
}
