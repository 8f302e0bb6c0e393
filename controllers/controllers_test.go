package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"gitea.com/go-chi/session"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blogem/memorial-registry/apperr"
	"github.com/blogem/memorial-registry/database"
	"github.com/blogem/memorial-registry/middleware"
	"github.com/blogem/memorial-registry/models"
	"github.com/blogem/memorial-registry/repositories"
	"github.com/blogem/memorial-registry/services"
	"github.com/blogem/memorial-registry/storage/local"
	"github.com/blogem/memorial-registry/userctx"
)

const testRoleHeader = "X-Test-Role"

// asRole injects an actor with the role named in testRoleHeader
func asRole(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if role := r.Header.Get(testRoleHeader); role != "" {
			ctx := userctx.SetActor(r.Context(), models.Actor{ID: "1", Name: "tester", Role: role})
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

type testServer struct {
	router   *chi.Mux
	services *services.Services
}

func newTestServer(t *testing.T, svcOpts services.Options, ctrlOpts Options) *testServer {
	t.Helper()

	db, err := database.InitializeDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svcOpts.BcryptCost = 4
	if svcOpts.Backups == nil {
		backups, err := local.New(t.TempDir())
		require.NoError(t, err)
		svcOpts.Backups = backups
	}
	srvs := services.NewServices(repositories.NewStore(db), svcOpts)
	ctrl := NewControllers(srvs, ctrlOpts)

	sessionHandler, err := session.Sessioner(session.Options{
		Provider:    "memory",
		CookieName:  "memorial_session",
		Gclifetime:  3600,
		Maxlifetime: 3600,
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(sessionHandler)
	r.Use(middleware.LoadActor)
	r.Use(asRole)

	r.Post("/login", ctrl.Auth.Login)
	r.Post("/logout", ctrl.Auth.Logout)
	r.Get("/me", ctrl.Auth.Me)
	r.Get("/search", ctrl.Search.Search)
	r.Get("/autocomplete", ctrl.Search.Autocomplete)
	r.Post("/import", ctrl.Transfer.Import)
	r.Get("/export", ctrl.Transfer.Export)
	r.Get("/records", ctrl.Records.Index)
	r.Post("/records", ctrl.Records.Create)
	r.Get("/records/{id}", ctrl.Records.Show)
	r.Put("/records/{id}", ctrl.Records.Update)
	r.Delete("/records/{id}", ctrl.Records.Delete)
	r.Get("/logs", ctrl.Audit.Index)
	r.Get("/backups", ctrl.Backup.Index)
	r.Post("/backups", ctrl.Backup.Create)
	r.Post("/backups/{name}/restore", ctrl.Backup.Restore)

	return &testServer{router: r, services: srvs}
}

func (s *testServer) do(req *http.Request, role string) *httptest.ResponseRecorder {
	if role != "" {
		req.Header.Set(testRoleHeader, role)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) seed(t *testing.T, name string) *models.Memorial {
	t.Helper()
	ctx := userctx.SetActor(context.Background(), models.Actor{ID: "1", Name: "seed", Role: models.RoleAdmin})
	record, err := s.services.Records.CreateRecord(ctx, &models.MemorialForm{Name: name, Side: "left", Area: 1, Row: 2, Column: 3})
	require.NoError(t, err)
	return record
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func multipartUpload(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestStatusFor(t *testing.T) {
	tests := map[apperr.Kind]int{
		apperr.KindUnauthorized: http.StatusUnauthorized,
		apperr.KindForbidden:    http.StatusForbidden,
		apperr.KindNotFound:     http.StatusNotFound,
		apperr.KindImportFormat: http.StatusBadRequest,
		apperr.KindValidation:   http.StatusUnprocessableEntity,
		apperr.KindStorage:      http.StatusInternalServerError,
		apperr.KindInternal:     http.StatusInternalServerError,
	}
	for kind, status := range tests {
		assert.Equal(t, status, statusFor(kind), kind)
	}
}

func TestSearchController(t *testing.T) {
	s := newTestServer(t, services.Options{PublicSearch: true}, Options{})
	s.seed(t, "Wang Wei")
	s.seed(t, "Li Ming")

	rec := s.do(httptest.NewRequest(http.MethodGet, "/search?name=Wang+Wei", nil), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var hits []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hits))
	require.Len(t, hits, 1)
	assert.Equal(t, "Wang Wei", hits[0]["name"])
	assert.Equal(t, "左側，第1區 2行3列", hits[0]["locationSentencePrimary"])
	assert.Equal(t, "Left side, area 1, row 2, column 3", hits[0]["locationSentenceSecondary"])

	rec = s.do(httptest.NewRequest(http.MethodGet, "/search?name=Li+Ming&mode=exact", nil), "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hits))
	assert.Len(t, hits, 1)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/search?name=x&mode=regex", nil), "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "VALIDATION", decodeError(t, rec).Error)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/search?name=x&limit=ten", nil), "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/search?name=Wang+Wei&cutoff=NaN", nil), "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/search?name=Wang+Wei&limit=100000&cutoff=-1", nil), "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hits))
	assert.Len(t, hits, 2)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/autocomplete", nil), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["Li Ming","Wang Wei"]`, rec.Body.String())
}

func TestSearchController_Private(t *testing.T) {
	s := newTestServer(t, services.Options{PublicSearch: false}, Options{})

	rec := s.do(httptest.NewRequest(http.MethodGet, "/search?name=x", nil), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeError(t, rec).Error)
}

func TestRecordController_CRUD(t *testing.T) {
	s := newTestServer(t, services.Options{}, Options{})

	body := `{"name":"Wang Wei","side":"right","area":1,"row":2,"column":3}`
	rec := s.do(httptest.NewRequest(http.MethodPost, "/records", strings.NewReader(body)), models.RoleAdmin)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.Memorial
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, models.SideRight, created.Side)
	path := rec.Header().Get("Location")
	require.NotEmpty(t, path)

	rec = s.do(httptest.NewRequest(http.MethodPut, path, strings.NewReader(`{"name":"Wang Wei Jr."}`)), models.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, path, nil), models.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated models.Memorial
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "Wang Wei Jr.", updated.Name)
	assert.Equal(t, 3, updated.Column)

	rec = s.do(httptest.NewRequest(http.MethodDelete, path, nil), models.RoleAdmin)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodDelete, path, nil), models.RoleAdmin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Error)
}

func TestRecordController_Validation(t *testing.T) {
	s := newTestServer(t, services.Options{}, Options{})

	rec := s.do(httptest.NewRequest(http.MethodPost, "/records", strings.NewReader(`{"name":"","side":"up","area":0,"row":1,"column":1}`)), models.RoleAdmin)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodPost, "/records", strings.NewReader(`{"name":`)), models.RoleAdmin)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodPost, "/records", strings.NewReader(`{"name":"A","location":"hall"}`)), models.RoleAdmin)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRecordController_AccessDenied(t *testing.T) {
	s := newTestServer(t, services.Options{}, Options{})
	record := s.seed(t, "A")
	path := "/records/" + strconv.FormatInt(record.ID, 10)

	rec := s.do(httptest.NewRequest(http.MethodDelete, path, nil), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodDelete, path, nil), models.RoleViewer)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decodeError(t, rec).Error)

	rec = s.do(httptest.NewRequest(http.MethodGet, path, nil), models.RoleAdmin)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTransferController_Import(t *testing.T) {
	s := newTestServer(t, services.Options{ImportDedup: true}, Options{})
	s.seed(t, "A")

	csv := "name,side,area,row,column\nA,left,1,1,1\nB,right,2,2,2\n"
	rec := s.do(multipartUpload(t, "rows.csv", csv), models.RoleAdmin)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"addedCount":1,"skippedCount":1}`, rec.Body.String())
}

func TestTransferController_ImportErrors(t *testing.T) {
	s := newTestServer(t, services.Options{}, Options{ImportMaxBytes: 512})

	rec := s.do(multipartUpload(t, "rows.xlsx", "not a workbook"), models.RoleAdmin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "IMPORT_FORMAT", decodeError(t, rec).Error)

	rec = s.do(multipartUpload(t, "rows.csv", strings.Repeat("x", 2048)), models.RoleAdmin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodPost, "/import", strings.NewReader("name,side")), models.RoleAdmin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(multipartUpload(t, "rows.csv", "name,side,area,row,column\n"), models.RoleViewer)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTransferController_Export(t *testing.T) {
	s := newTestServer(t, services.Options{PublicExport: true}, Options{})
	s.seed(t, "A")

	rec := s.do(httptest.NewRequest(http.MethodGet, "/export?format=csv", nil), "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `attachment; filename="memorials-`)
	assert.Equal(t, "name,side,area,row,column\nA,left,1,2,3\n", rec.Body.String())

	rec = s.do(httptest.NewRequest(http.MethodGet, "/export?format=pdf", nil), "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestTransferController_ExportPrivate(t *testing.T) {
	s := newTestServer(t, services.Options{PublicExport: false}, Options{})

	rec := s.do(httptest.NewRequest(http.MethodGet, "/export", nil), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/export", nil), models.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))
}

func TestAuditController(t *testing.T) {
	s := newTestServer(t, services.Options{}, Options{})
	s.seed(t, "A")
	s.seed(t, "B")

	rec := s.do(httptest.NewRequest(http.MethodGet, "/logs?limit=1", nil), models.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []models.AuditLogEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Action, "(B)")

	rec = s.do(httptest.NewRequest(http.MethodGet, "/logs?limit=-1", nil), models.RoleAdmin)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/logs", nil), models.RoleViewer)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBackupController(t *testing.T) {
	s := newTestServer(t, services.Options{}, Options{})
	s.seed(t, "A")

	rec := s.do(httptest.NewRequest(http.MethodPost, "/backups", nil), models.RoleAdmin)
	require.Equal(t, http.StatusCreated, rec.Code)
	var backup services.Backup
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &backup))

	rec = s.do(httptest.NewRequest(http.MethodGet, "/backups", nil), models.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []services.Backup
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, backup.Name, list[0].Name)

	rec = s.do(httptest.NewRequest(http.MethodPost, "/backups/"+backup.Name+"/restore", nil), models.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"name":"`+backup.Name+`","restoredCount":1}`, rec.Body.String())

	rec = s.do(httptest.NewRequest(http.MethodPost, "/backups/nope.xlsx/restore", nil), models.RoleAdmin)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAuthController_PasswordLogin(t *testing.T) {
	s := newTestServer(t, services.Options{}, Options{})
	_, err := s.services.Auth.CreateUser(context.Background(), "keeper", "correct horse", models.RoleAdmin)
	require.NoError(t, err)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/me", nil), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"keeper","password":"wrong password"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = s.do(req, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"keeper","password":"correct horse"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = s.do(req, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var actor models.Actor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &actor))
	assert.Equal(t, "keeper", actor.Name)
	assert.Equal(t, models.RoleAdmin, actor.Role)

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec = s.do(req, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &actor))
	assert.Equal(t, "keeper", actor.Name)
}

func TestAuthController_LoginIssuesNewSessionID(t *testing.T) {
	s := newTestServer(t, services.Options{}, Options{})
	_, err := s.services.Auth.CreateUser(context.Background(), "keeper", "correct horse", models.RoleAdmin)
	require.NoError(t, err)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/me", nil), "")
	before := sessionCookie(t, rec)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"keeper","password":"correct horse"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(before)
	rec = s.do(req, "")
	require.Equal(t, http.StatusOK, rec.Code)

	after := sessionCookie(t, rec)
	assert.NotEqual(t, before.Value, after.Value)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(after)
	rec = s.do(req, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "memorial_session" {
			return c
		}
	}
	t.Fatal("no session cookie in response")
	return nil
}

func TestAuthController_FormLogin(t *testing.T) {
	s := newTestServer(t, services.Options{}, Options{})
	_, err := s.services.Auth.CreateUser(context.Background(), "keeper", "correct horse", models.RoleViewer)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("username=keeper&password=correct+horse"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := s.do(req, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"viewer"`)
}
