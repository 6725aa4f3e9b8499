package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Identity is the authenticated caller attached to request contexts.
type Identity struct {
	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id"`
	Email       string `json:"email"`
}

type contextKey string

const identityKey contextKey = "auth.identity"

// ErrUnauthorized is returned when no valid session token accompanies a
// request.
var ErrUnauthorized = errors.New("unauthorized")

// sessionCacheTTL bounds how long a positive session lookup is served from
// Redis before PostgreSQL is consulted again.
const sessionCacheTTL = 5 * time.Minute

// SessionManager validates session tokens against the shared sessions table.
// A Redis client may be supplied to cache positive lookups; when it is nil or
// unreachable, every lookup falls through to PostgreSQL.
type SessionManager struct {
	db         *sql.DB
	redis      *redis.Client
	cookieName string
}

// NewSessionManager creates a session validator. redisClient may be nil.
func NewSessionManager(db *sql.DB, redisClient *redis.Client, cookieName string) *SessionManager {
	return &SessionManager{db: db, redis: redisClient, cookieName: cookieName}
}

// Authenticate resolves the request's session token to an identity. Tokens
// are read from the Authorization header (Bearer scheme) first, then from the
// session cookie.
func (sm *SessionManager) Authenticate(r *http.Request) (*Identity, error) {
	token := sm.extractToken(r)
	if token == "" {
		return nil, ErrUnauthorized
	}

	if ident := sm.cacheGet(r.Context(), token); ident != nil {
		return ident, nil
	}

	var ident Identity
	var expiresAt int64
	err := sm.db.QueryRowContext(r.Context(), `
		SELECT s.user_id, u.workspace_id, u.email, s.expires_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token = $1`, token).Scan(&ident.UserID, &ident.WorkspaceID, &ident.Email, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if time.Now().UnixMilli() >= expiresAt {
		return nil, ErrUnauthorized
	}

	sm.cacheSet(r.Context(), token, &ident, expiresAt)
	return &ident, nil
}

// Invalidate drops a token from the cache (logout path). The sessions row
// itself is deleted by the caller.
func (sm *SessionManager) Invalidate(ctx context.Context, token string) {
	if sm.redis == nil {
		return
	}
	if err := sm.redis.Del(ctx, sessionCacheKey(token)).Err(); err != nil {
		log.Printf("auth: session cache invalidate failed: %v", err)
	}
}

// Middleware rejects unauthenticated requests with a 401 JSON body and
// attaches the identity to the context otherwise.
func (sm *SessionManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, err := sm.Authenticate(r)
		if err == ErrUnauthorized {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		if err != nil {
			log.Printf("auth: session lookup failed: %v", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"authentication unavailable"}`))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), ident)))
	})
}

// WithIdentity returns a context carrying the authenticated identity.
func WithIdentity(ctx context.Context, ident *Identity) context.Context {
	return context.WithValue(ctx, identityKey, ident)
}

// IdentityFromContext returns the identity set by the middleware, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	ident, _ := ctx.Value(identityKey).(*Identity)
	return ident
}

func (sm *SessionManager) extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if cookie, err := r.Cookie(sm.cookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func sessionCacheKey(token string) string {
	return "crm:session:" + token
}

func (sm *SessionManager) cacheGet(ctx context.Context, token string) *Identity {
	if sm.redis == nil {
		return nil
	}
	data, err := sm.redis.Get(ctx, sessionCacheKey(token)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("auth: session cache read failed: %v", err)
		}
		return nil
	}
	var ident Identity
	if err := json.Unmarshal(data, &ident); err != nil {
		return nil
	}
	return &ident
}

func (sm *SessionManager) cacheSet(ctx context.Context, token string, ident *Identity, expiresAt int64) {
	if sm.redis == nil {
		return
	}
	ttl := sessionCacheTTL
	if remaining := time.Until(time.UnixMilli(expiresAt)); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return
	}
	data, err := json.Marshal(ident)
	if err != nil {
		return
	}
	if err := sm.redis.Set(ctx, sessionCacheKey(token), data, ttl).Err(); err != nil {
		log.Printf("auth: session cache write failed: %v", err)
	}
}
