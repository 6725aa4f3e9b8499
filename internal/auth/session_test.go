package auth

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return db, mock, func() { db.Close() }
}

func sessionRow(userID, wsID, email string, expiresAt int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"user_id", "workspace_id", "email", "expires_at"}).
		AddRow(userID, wsID, email, expiresAt)
}

func bearerRequest(token string) *http.Request {
	r := httptest.NewRequest("GET", "/api/contacts", nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func TestAuthenticate_BearerToken(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	sm := NewSessionManager(db, nil, "crm_session")

	future := time.Now().Add(time.Hour).UnixMilli()
	mock.ExpectQuery("SELECT s.user_id, u.workspace_id, u.email, s.expires_at").
		WithArgs("tok123").
		WillReturnRows(sessionRow("u1", "ws1", "a@x.com", future))

	ident, err := sm.Authenticate(bearerRequest("tok123"))
	if err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}
	if ident.UserID != "u1" || ident.WorkspaceID != "ws1" || ident.Email != "a@x.com" {
		t.Errorf("unexpected identity: %+v", ident)
	}
}

func TestAuthenticate_CookieToken(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	sm := NewSessionManager(db, nil, "crm_session")

	future := time.Now().Add(time.Hour).UnixMilli()
	mock.ExpectQuery("SELECT s.user_id, u.workspace_id, u.email, s.expires_at").
		WithArgs("cookie-tok").
		WillReturnRows(sessionRow("u1", "ws1", "a@x.com", future))

	r := httptest.NewRequest("GET", "/api/contacts", nil)
	r.AddCookie(&http.Cookie{Name: "crm_session", Value: "cookie-tok"})

	ident, err := sm.Authenticate(r)
	if err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}
	if ident.UserID != "u1" {
		t.Errorf("UserID = %q, want u1", ident.UserID)
	}
}

func TestAuthenticate_NoToken(t *testing.T) {
	db, _, cleanup := setupTestDB(t)
	defer cleanup()
	sm := NewSessionManager(db, nil, "crm_session")

	if _, err := sm.Authenticate(bearerRequest("")); err != ErrUnauthorized {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthenticate_UnknownToken(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	sm := NewSessionManager(db, nil, "crm_session")

	mock.ExpectQuery("SELECT s.user_id, u.workspace_id, u.email, s.expires_at").
		WithArgs("bogus").
		WillReturnError(sql.ErrNoRows)

	if _, err := sm.Authenticate(bearerRequest("bogus")); err != ErrUnauthorized {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthenticate_ExpiredSession(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	sm := NewSessionManager(db, nil, "crm_session")

	past := time.Now().Add(-time.Hour).UnixMilli()
	mock.ExpectQuery("SELECT s.user_id, u.workspace_id, u.email, s.expires_at").
		WithArgs("stale").
		WillReturnRows(sessionRow("u1", "ws1", "a@x.com", past))

	if _, err := sm.Authenticate(bearerRequest("stale")); err != ErrUnauthorized {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthenticate_CacheHitSkipsDatabase(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer redisClient.Close()

	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	sm := NewSessionManager(db, redisClient, "crm_session")

	future := time.Now().Add(time.Hour).UnixMilli()
	mock.ExpectQuery("SELECT s.user_id, u.workspace_id, u.email, s.expires_at").
		WithArgs("tok123").
		WillReturnRows(sessionRow("u1", "ws1", "a@x.com", future))

	// First lookup populates the cache from PostgreSQL.
	if _, err := sm.Authenticate(bearerRequest("tok123")); err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}

	// Second lookup must be served entirely from Redis; the single DB
	// expectation above is already consumed.
	ident, err := sm.Authenticate(bearerRequest("tok123"))
	if err != nil {
		t.Fatalf("Authenticate() cached error: %v", err)
	}
	if ident.WorkspaceID != "ws1" {
		t.Errorf("WorkspaceID = %q, want ws1", ident.WorkspaceID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestInvalidate_RemovesCacheEntry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer redisClient.Close()

	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	sm := NewSessionManager(db, redisClient, "crm_session")

	future := time.Now().Add(time.Hour).UnixMilli()
	mock.ExpectQuery("SELECT s.user_id, u.workspace_id, u.email, s.expires_at").
		WithArgs("tok123").
		WillReturnRows(sessionRow("u1", "ws1", "a@x.com", future))

	if _, err := sm.Authenticate(bearerRequest("tok123")); err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}

	sm.Invalidate(context.Background(), "tok123")
	if mr.Exists("crm:session:tok123") {
		t.Error("cache entry should be gone after Invalidate")
	}
}

func TestMiddleware_RejectsUnauthenticated(t *testing.T) {
	db, _, cleanup := setupTestDB(t)
	defer cleanup()
	sm := NewSessionManager(db, nil, "crm_session")

	called := false
	handler := sm.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, bearerRequest(""))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if called {
		t.Error("next handler must not run without a session")
	}
}

func TestMiddleware_AttachesIdentity(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	sm := NewSessionManager(db, nil, "crm_session")

	future := time.Now().Add(time.Hour).UnixMilli()
	mock.ExpectQuery("SELECT s.user_id, u.workspace_id, u.email, s.expires_at").
		WithArgs("tok123").
		WillReturnRows(sessionRow("u1", "ws1", "a@x.com", future))

	var got *Identity
	handler := sm.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, bearerRequest("tok123"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got == nil || got.UserID != "u1" {
		t.Errorf("identity = %+v, want UserID u1", got)
	}
}
