package adminapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/voicelane/crm/internal/auth"
	"github.com/voicelane/crm/internal/config"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return db, mock, func() { db.Close() }
}

func testTokenManager(t *testing.T) *auth.TokenManager {
	t.Helper()
	tm, err := auth.NewTokenManager("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager() error: %v", err)
	}
	return tm
}

func withURLParam(r *http.Request, key, val string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, val)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestHandleLogin(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	tm := testTokenManager(t)
	h := NewHandlers(db, tm)

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	mock.ExpectQuery("SELECT id, email, password_hash FROM admin_users").
		WithArgs("admin@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash"}).
			AddRow("a1", "admin@x.com", string(hash)))

	body := strings.NewReader(`{"email": "admin@x.com", "password": "hunter2"}`)
	rec := httptest.NewRecorder()
	h.HandleLogin(rec, httptest.NewRequest("POST", "/auth/login", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	claims, err := tm.Verify(resp["token"])
	if err != nil {
		t.Fatalf("issued token failed verification: %v", err)
	}
	if claims.Subject != "a1" || claims.Email != "admin@x.com" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestHandleLogin_WrongPassword(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	h := NewHandlers(db, testTokenManager(t))

	hash, _ := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	mock.ExpectQuery("SELECT id, email, password_hash FROM admin_users").
		WithArgs("admin@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash"}).
			AddRow("a1", "admin@x.com", string(hash)))

	body := strings.NewReader(`{"email": "admin@x.com", "password": "wrong"}`)
	rec := httptest.NewRecorder()
	h.HandleLogin(rec, httptest.NewRequest("POST", "/auth/login", body))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestHandleLogin_UnknownEmail(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	h := NewHandlers(db, testTokenManager(t))

	mock.ExpectQuery("SELECT id, email, password_hash FROM admin_users").
		WithArgs("nobody@x.com").
		WillReturnError(sql.ErrNoRows)

	body := strings.NewReader(`{"email": "nobody@x.com", "password": "x"}`)
	rec := httptest.NewRecorder()
	h.HandleLogin(rec, httptest.NewRequest("POST", "/auth/login", body))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestHandleDashboard(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	h := NewHandlers(db, testTokenManager(t))

	for _, n := range []int64{4, 2, 3, 150, 900, 12, 5} {
		mock.ExpectQuery("SELECT COUNT").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(n))
	}

	rec := httptest.NewRecorder()
	h.HandleDashboard(rec, httptest.NewRequest("GET", "/api/dashboard", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
	var stats DashboardStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if stats.Users != 4 || stats.CallsToday != 12 || stats.ActiveJobs != 5 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestHandleListUsers_Filters(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	h := NewHandlers(db, testTokenManager(t))

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("%ali%", "member").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT .+ FROM users").
		WithArgs("%ali%", "member", 100, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "workspace_id", "email", "name", "role", "created_at",
		}).AddRow("u1", "ws1", "alice@x.com", "Alice", "member", int64(1700000000000)))

	rec := httptest.NewRecorder()
	h.HandleListUsers(rec, httptest.NewRequest("GET", "/api/users?search=ali&status=member", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestHandleListCalls_DateRange(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	h := NewHandlers(db, testTokenManager(t))

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(int64(1700000000000), int64(1700086400000)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT .+ FROM calls").
		WithArgs(int64(1700000000000), int64(1700086400000), 100, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "workspace_id", "agent_id", "from_number", "to_number", "direction",
			"outcome", "duration_seconds", "started_at", "created_at",
		}))

	rec := httptest.NewRecorder()
	h.HandleListCalls(rec, httptest.NewRequest("GET",
		"/api/calls?from=1700000000000&to=1700086400000", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestHandleGetWorkspace_NotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	h := NewHandlers(db, testTokenManager(t))

	mock.ExpectQuery("SELECT .+ FROM workspaces WHERE id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	rec := httptest.NewRecorder()
	r := withURLParam(httptest.NewRequest("GET", "/api/workspaces/missing", nil), "id", "missing")
	h.HandleGetWorkspace(rec, r)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleBilling(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	h := NewHandlers(db, testTokenManager(t))

	mock.ExpectQuery("SELECT w.id, w.name, w.plan").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "plan", "count", "minutes", "contacts",
		}).AddRow("ws1", "Acme", "pro", 42, 123.5, 17))

	rec := httptest.NewRecorder()
	h.HandleBilling(rec, httptest.NewRequest("GET", "/api/billing", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data []BillingRow `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].TotalMinutes != 123.5 {
		t.Errorf("unexpected billing rows: %+v", resp.Data)
	}
}

func TestRoutes_RequireAdminToken(t *testing.T) {
	db, _, cleanup := setupTestDB(t)
	defer cleanup()
	tm := testTokenManager(t)
	cfg := &config.Config{}
	router := SetupRoutes(cfg, NewHandlers(db, tm), tm)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/dashboard", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 without token", rec.Code)
	}
}
