package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"gitea.com/go-chi/session"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blogem/memorial-registry/logging"
	"github.com/blogem/memorial-registry/models"
	"github.com/blogem/memorial-registry/telemetry"
	"github.com/blogem/memorial-registry/userctx"
)

func TestLoadActor(t *testing.T) {
	sessionHandler, err := session.Sessioner(session.Options{
		Provider:    "memory",
		CookieName:  "test_session",
		Gclifetime:  3600,
		Maxlifetime: 3600,
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(sessionHandler)
	r.Use(LoadActor)
	r.Get("/signin", func(w http.ResponseWriter, r *http.Request) {
		sess := session.GetSession(r)
		sess.Set(SessionUserID, "7")
		sess.Set(SessionUserName, r.URL.Query().Get("name"))
		sess.Set(SessionUserRole, r.URL.Query().Get("role"))
	})
	r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
		actor, ok := userctx.GetActor(r.Context())
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(actor.Name + ":" + actor.Role))
	})

	// anonymous
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tests := []struct {
		query string
		want  string
	}{
		{"name=keeper&role=admin", "keeper:admin"},
		{"name=visitor", "visitor:" + models.RoleViewer},
	}
	for _, tt := range tests {
		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/signin?"+tt.query, nil))
		cookies := rec.Result().Cookies()
		require.NotEmpty(t, cookies)

		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, tt.want, rec.Body.String())
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(logging.New(&buf, "info", "json"))
	t.Cleanup(func() { slog.SetDefault(previous) })

	handler := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/records", nil)
	req = req.WithContext(userctx.SetActor(req.Context(), models.Actor{ID: "1", Name: "keeper", Role: models.RoleAdmin}))
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, `"method":"POST"`)
	assert.Contains(t, out, `"status":201`)
	assert.Contains(t, out, `"actor":"keeper"`)
	assert.Contains(t, out, `"ip":"203.0.113.9"`)

	// reads stay at debug level
	buf.Reset()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/search", nil))
	assert.Empty(t, buf.String())
}

func TestGetIPAddress(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", getIPAddress(req))

	req.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", getIPAddress(req))
}

func TestMetrics(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/records/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	counter := telemetry.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/records/{id}", "404")
	before := testutil.ToFloat64(counter)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/records/5", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/records/6", nil))

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}
