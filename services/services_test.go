package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blogem/memorial-registry/database"
	"github.com/blogem/memorial-registry/models"
	"github.com/blogem/memorial-registry/repositories"
	"github.com/blogem/memorial-registry/storage/local"
	"github.com/blogem/memorial-registry/userctx"
)

// testEnv wires the services over a fresh sqlite database
type testEnv struct {
	store    *repositories.Store
	services *Services
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()

	db, err := database.InitializeDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	if opts.Backups == nil {
		opts.Backups = localBackups(t, filepath.Join(t.TempDir(), "backups"))
	}
	opts.BcryptCost = 4

	store := repositories.NewStore(db)
	return &testEnv{store: store, services: NewServices(store, opts)}
}

func localBackups(t *testing.T, dir string) *local.LocalStorage {
	t.Helper()
	backups, err := local.New(dir)
	require.NoError(t, err)
	return backups
}

func (e *testEnv) seed(t *testing.T, records ...models.Memorial) []models.Memorial {
	t.Helper()
	for i := range records {
		require.NoError(t, e.store.Records.Create(adminCtx(), &records[i]))
	}
	return records
}

func (e *testEnv) count(t *testing.T) int {
	t.Helper()
	n, err := e.store.Records.Count(context.Background())
	require.NoError(t, err)
	return n
}

func (e *testEnv) auditLog(t *testing.T) []models.AuditLogEntry {
	t.Helper()
	entries, err := e.store.Audit.ListRecent(context.Background(), 0)
	require.NoError(t, err)
	return entries
}

func adminCtx() context.Context {
	return userctx.SetActor(context.Background(), models.Actor{ID: "1", Name: "keeper", Role: models.RoleAdmin})
}

func viewerCtx() context.Context {
	return userctx.SetActor(context.Background(), models.Actor{ID: "2", Name: "visitor", Role: models.RoleViewer})
}

func memorial(name string, side models.Side, area, row, column int) models.Memorial {
	return models.Memorial{Name: name, Side: side, Area: area, Row: row, Column: column}
}
