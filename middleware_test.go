package governkit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

// TestGuardRequireOperation validates the role/operation gate.
func TestGuardRequireOperation(t *testing.T) {
	engine := NewEngine(DefaultRegistry())
	guard := NewGuard(engine, WithActorExtractor(func(r *http.Request) Actor {
		return GetActor(r.Context())
	}))

	t.Run("permitted role passes", func(t *testing.T) {
		var called bool
		handler := guard.RequireOperation(OpCreate, "lead")(okHandler(&called))

		req := httptest.NewRequest(http.MethodPost, "/leads", nil)
		req = req.WithContext(WithActor(req.Context(), Actor{ID: "mkt-1", Role: RoleMarketing}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.True(t, called)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("anonymous create on public intake passes", func(t *testing.T) {
		var called bool
		handler := guard.RequireOperation(OpCreate, "lead")(okHandler(&called))

		req := httptest.NewRequest(http.MethodPost, "/leads", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.True(t, called)
	})

	t.Run("forbidden role gets 403", func(t *testing.T) {
		var called bool
		handler := guard.RequireOperation(OpDelete, "lead")(okHandler(&called))

		req := httptest.NewRequest(http.MethodDelete, "/leads/1", nil)
		req = req.WithContext(WithActor(req.Context(), Actor{ID: "adv-1", Role: RoleAdvisor}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.False(t, called)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown record type gets 400", func(t *testing.T) {
		var called bool
		handler := guard.RequireOperation(OpRead, "invoice")(okHandler(&called))

		req := httptest.NewRequest(http.MethodGet, "/invoices", nil)
		req = req.WithContext(WithActor(req.Context(), Actor{ID: "admin-1", Role: RoleAdmin}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.False(t, called)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// TestGuardRequireRole validates the plain role gate.
func TestGuardRequireRole(t *testing.T) {
	guard := NewGuard(NewEngine(DefaultRegistry()))

	var called bool
	handler := guard.RequireRole(RoleAdmin, RoleManager)(okHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req = req.WithContext(WithActor(req.Context(), Actor{ID: "mgr-1", Role: RoleManager}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.True(t, called)

	called = false
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req = req.WithContext(WithActor(req.Context(), Actor{ID: "mkt-1", Role: RoleMarketing}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.False(t, called)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// TestGuardInjectAuditContext validates audit extraction and request ID
// minting.
func TestGuardInjectAuditContext(t *testing.T) {
	guard := NewGuard(NewEngine(DefaultRegistry()))

	var captured AuditContext
	handler := guard.InjectAuditContext()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetAuditContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/leads", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	req.Header.Set("User-Agent", "test-agent/1.0")
	req.Header.Set("X-Request-ID", "req-123")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "203.0.113.9", captured.IPAddress)
	assert.Equal(t, "test-agent/1.0", captured.UserAgent)
	assert.Equal(t, "req-123", captured.RequestID)

	// Without a header, a request ID is minted
	req = httptest.NewRequest(http.MethodPost, "/leads", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.NotEmpty(t, captured.RequestID)
	assert.NotEqual(t, "req-123", captured.RequestID)
}

// TestGuardCustomErrorHandler validates the error handler option.
func TestGuardCustomErrorHandler(t *testing.T) {
	engine := NewEngine(DefaultRegistry())
	var gotErr error
	guard := NewGuard(engine, WithGuardErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
		gotErr = err
		w.WriteHeader(http.StatusTeapot)
	}))

	handler := guard.RequireRole(RoleAdmin)(okHandler(new(bool)))
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.True(t, IsPermissionDenied(gotErr))
}
