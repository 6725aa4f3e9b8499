package adminapi

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/voicelane/crm/internal/auth"
)

// Handlers serves the read-only admin panel API over the shared database.
// Every query is a plain parameterized SELECT; failures are reported to the
// caller, never retried.
type Handlers struct {
	db     *sql.DB
	tokens *auth.TokenManager
}

// NewHandlers creates the admin handler set.
func NewHandlers(db *sql.DB, tokens *auth.TokenManager) *Handlers {
	return &Handlers{db: db, tokens: tokens}
}

// HandleLogin verifies admin credentials and issues a signed token.
//
//	POST /auth/login
func (h *Handlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var id, email, hash string
	err := h.db.QueryRowContext(r.Context(),
		`SELECT id, email, password_hash FROM admin_users WHERE email = $1`,
		input.Email).Scan(&id, &email, &hash)
	if err == sql.ErrNoRows {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "login failed")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(input.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.tokens.Issue(id, email)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "login failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"token": token, "email": email})
}

// HandleDashboard returns the aggregate counts shown on the admin landing
// page. Each count is its own query; the first failure aborts the handler.
//
//	GET /api/dashboard
func (h *Handlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	todayStart := time.Now().UTC().Truncate(24 * time.Hour).UnixMilli()

	var stats DashboardStats
	counts := []struct {
		dest  *int64
		query string
		args  []interface{}
	}{
		{&stats.Users, `SELECT COUNT(*) FROM users`, nil},
		{&stats.Workspaces, `SELECT COUNT(*) FROM workspaces`, nil},
		{&stats.Agents, `SELECT COUNT(*) FROM agents`, nil},
		{&stats.Contacts, `SELECT COUNT(*) FROM contacts`, nil},
		{&stats.CallsTotal, `SELECT COUNT(*) FROM calls`, nil},
		{&stats.CallsToday, `SELECT COUNT(*) FROM calls WHERE created_at >= $1`, []interface{}{todayStart}},
		{&stats.ActiveJobs, `SELECT COUNT(*) FROM outbound_jobs WHERE status IN ('pending', 'running')`, nil},
	}
	for _, c := range counts {
		if err := h.db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dest); err != nil {
			respondSafeError(w, http.StatusInternalServerError, err, "failed to load dashboard stats")
			return
		}
	}

	respondJSON(w, http.StatusOK, stats)
}

// HandleBilling returns per-workspace usage: call counts, call minutes, and
// contact counts, one row per workspace.
//
//	GET /api/billing
func (h *Handlers) HandleBilling(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.QueryContext(r.Context(), `
		SELECT w.id, w.name, w.plan,
			COUNT(c.id),
			COALESCE(SUM(c.duration_seconds), 0) / 60.0,
			(SELECT COUNT(*) FROM contacts ct WHERE ct.workspace_id = w.id)
		FROM workspaces w
		LEFT JOIN calls c ON c.workspace_id = w.id
		GROUP BY w.id, w.name, w.plan
		ORDER BY w.name`)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to load billing")
		return
	}
	defer rows.Close()

	out := []BillingRow{}
	for rows.Next() {
		var b BillingRow
		if err := rows.Scan(&b.WorkspaceID, &b.WorkspaceName, &b.Plan,
			&b.TotalCalls, &b.TotalMinutes, &b.Contacts); err != nil {
			respondSafeError(w, http.StatusInternalServerError, err, "failed to load billing")
			return
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to load billing")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"data": out})
}
