package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestNewTokenManager_RequiresSecret(t *testing.T) {
	if _, err := NewTokenManager("", time.Hour); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	tm, err := NewTokenManager("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager() error: %v", err)
	}

	token, err := tm.Issue("admin1", "admin@x.com")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	claims, err := tm.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if claims.Subject != "admin1" || claims.Email != "admin@x.com" || claims.Role != "admin" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	tm1, _ := NewTokenManager("secret-one", time.Hour)
	tm2, _ := NewTokenManager("secret-two", time.Hour)

	token, err := tm1.Issue("admin1", "admin@x.com")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if _, err := tm2.Verify(token); err == nil {
		t.Error("expected verification failure with a different secret")
	}
}

func TestVerify_Expired(t *testing.T) {
	tm, _ := NewTokenManager("test-secret", -time.Minute)

	token, err := tm.Issue("admin1", "admin@x.com")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if _, err := tm.Verify(token); err == nil {
		t.Error("expected verification failure for expired token")
	}
}

func TestVerify_RejectsNonAdminRole(t *testing.T) {
	tm, _ := NewTokenManager("test-secret", time.Hour)

	claims := AdminClaims{
		Email: "user@x.com",
		Role:  "member",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := tm.Verify(token); err == nil {
		t.Error("expected rejection of non-admin role")
	}
}

func TestJWTMiddleware(t *testing.T) {
	tm, _ := NewTokenManager("test-secret", time.Hour)
	token, _ := tm.Issue("admin1", "admin@x.com")

	var got *Identity
	handler := tm.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFromContext(r.Context())
	}))

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"valid token", "Bearer " + token, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"malformed header", "Token abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = nil
			r := httptest.NewRequest("GET", "/api/dashboard", nil)
			if tt.authHeader != "" {
				r.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, r)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && (got == nil || got.UserID != "admin1") {
				t.Errorf("identity = %+v, want UserID admin1", got)
			}
		})
	}
}
