package adminapi

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/voicelane/crm/internal/api"
)

// listFilter holds the optional query filters shared by every listing
// endpoint. from/to are epoch-millisecond bounds on created_at; zero means
// unset.
type listFilter struct {
	search string
	status string
	from   int64
	to     int64
}

func parseListFilter(r *http.Request) listFilter {
	q := r.URL.Query()
	f := listFilter{search: q.Get("search"), status: q.Get("status")}
	f.from, _ = strconv.ParseInt(q.Get("from"), 10, 64)
	f.to, _ = strconv.ParseInt(q.Get("to"), 10, 64)
	return f
}

// listQuery describes one entity's listing: which table, which columns, which
// columns the search filter applies to, and how to scan a row.
type listQuery struct {
	table      string
	columns    string
	searchCols []string
	statusCol  string // empty disables the status filter
	scan       func(rows *sql.Rows) (interface{}, error)
}

func (h *Handlers) handleList(w http.ResponseWriter, r *http.Request, q listQuery) {
	params := api.ParseAdminPagination(r)
	f := parseListFilter(r)

	where := []string{}
	args := []interface{}{}

	if f.search != "" && len(q.searchCols) > 0 {
		args = append(args, "%"+f.search+"%")
		n := len(args)
		parts := make([]string, len(q.searchCols))
		for i, col := range q.searchCols {
			parts[i] = fmt.Sprintf("%s ILIKE $%d", col, n)
		}
		where = append(where, "("+strings.Join(parts, " OR ")+")")
	}
	if f.status != "" && q.statusCol != "" {
		args = append(args, f.status)
		where = append(where, fmt.Sprintf("%s = $%d", q.statusCol, len(args)))
	}
	if f.from > 0 {
		args = append(args, f.from)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if f.to > 0 {
		args = append(args, f.to)
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	err := h.db.QueryRowContext(r.Context(),
		`SELECT COUNT(*) FROM `+q.table+whereClause, args...).Scan(&total)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to count "+q.table)
		return
	}

	args = append(args, params.Limit, params.Offset)
	query := fmt.Sprintf(`SELECT %s FROM %s%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		q.columns, q.table, whereClause, len(args)-1, len(args))

	rows, err := h.db.QueryContext(r.Context(), query, args...)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to list "+q.table)
		return
	}
	defer rows.Close()

	out := []interface{}{}
	for rows.Next() {
		item, err := q.scan(rows)
		if err != nil {
			respondSafeError(w, http.StatusInternalServerError, err, "failed to list "+q.table)
			return
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to list "+q.table)
		return
	}

	respondJSON(w, http.StatusOK, api.NewPaginatedResponse(out, params, total))
}

func (h *Handlers) handleDetail(w http.ResponseWriter, r *http.Request, table, columns string,
	scan func(row *sql.Row) (interface{}, error)) {
	row := h.db.QueryRowContext(r.Context(),
		fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, columns, table),
		chi.URLParam(r, "id"))
	item, err := scan(row)
	if err == sql.ErrNoRows {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to load record")
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

const userColumns = `id, workspace_id, email, name, role, created_at`

func scanUser(row interface{ Scan(...interface{}) error }) (interface{}, error) {
	var u User
	err := row.Scan(&u.ID, &u.WorkspaceID, &u.Email, &u.Name, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (h *Handlers) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	h.handleList(w, r, listQuery{
		table:      "users",
		columns:    userColumns,
		searchCols: []string{"email", "name"},
		statusCol:  "role",
		scan:       func(rows *sql.Rows) (interface{}, error) { return scanUser(rows) },
	})
}

func (h *Handlers) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	h.handleDetail(w, r, "users", userColumns,
		func(row *sql.Row) (interface{}, error) { return scanUser(row) })
}

// ---------------------------------------------------------------------------
// Workspaces
// ---------------------------------------------------------------------------

const workspaceColumns = `id, name, plan, status, created_at`

func scanWorkspace(row interface{ Scan(...interface{}) error }) (interface{}, error) {
	var ws Workspace
	err := row.Scan(&ws.ID, &ws.Name, &ws.Plan, &ws.Status, &ws.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &ws, nil
}

func (h *Handlers) HandleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	h.handleList(w, r, listQuery{
		table:      "workspaces",
		columns:    workspaceColumns,
		searchCols: []string{"name"},
		statusCol:  "status",
		scan:       func(rows *sql.Rows) (interface{}, error) { return scanWorkspace(rows) },
	})
}

func (h *Handlers) HandleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	h.handleDetail(w, r, "workspaces", workspaceColumns,
		func(row *sql.Row) (interface{}, error) { return scanWorkspace(row) })
}

// ---------------------------------------------------------------------------
// Agents
// ---------------------------------------------------------------------------

const agentColumns = `id, workspace_id, name, voice, status, created_at`

func scanAgent(row interface{ Scan(...interface{}) error }) (interface{}, error) {
	var a Agent
	err := row.Scan(&a.ID, &a.WorkspaceID, &a.Name, &a.Voice, &a.Status, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (h *Handlers) HandleListAgents(w http.ResponseWriter, r *http.Request) {
	h.handleList(w, r, listQuery{
		table:      "agents",
		columns:    agentColumns,
		searchCols: []string{"name"},
		statusCol:  "status",
		scan:       func(rows *sql.Rows) (interface{}, error) { return scanAgent(rows) },
	})
}

func (h *Handlers) HandleGetAgent(w http.ResponseWriter, r *http.Request) {
	h.handleDetail(w, r, "agents", agentColumns,
		func(row *sql.Row) (interface{}, error) { return scanAgent(row) })
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

const callColumns = `id, workspace_id, agent_id, from_number, to_number, direction,
	outcome, duration_seconds, started_at, created_at`

func scanCall(row interface{ Scan(...interface{}) error }) (interface{}, error) {
	var c Call
	var agentID, outcome sql.NullString
	var startedAt sql.NullInt64
	err := row.Scan(&c.ID, &c.WorkspaceID, &agentID, &c.FromNumber, &c.ToNumber,
		&c.Direction, &outcome, &c.DurationSeconds, &startedAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if agentID.Valid {
		c.AgentID = &agentID.String
	}
	if outcome.Valid {
		c.Outcome = &outcome.String
	}
	if startedAt.Valid {
		c.StartedAt = &startedAt.Int64
	}
	return &c, nil
}

func (h *Handlers) HandleListCalls(w http.ResponseWriter, r *http.Request) {
	// The status filter matches a call's outcome; calls have no lifecycle
	// column of their own.
	h.handleList(w, r, listQuery{
		table:      "calls",
		columns:    callColumns,
		searchCols: []string{"from_number", "to_number"},
		statusCol:  "outcome",
		scan:       func(rows *sql.Rows) (interface{}, error) { return scanCall(rows) },
	})
}

func (h *Handlers) HandleGetCall(w http.ResponseWriter, r *http.Request) {
	h.handleDetail(w, r, "calls", callColumns,
		func(row *sql.Row) (interface{}, error) { return scanCall(row) })
}

// ---------------------------------------------------------------------------
// Outbound jobs
// ---------------------------------------------------------------------------

const jobColumns = `id, workspace_id, agent_id, lead_name, phone_e164, status,
	scheduled_at, created_at`

func scanJob(row interface{ Scan(...interface{}) error }) (interface{}, error) {
	var j OutboundJob
	var agentID sql.NullString
	var scheduledAt sql.NullInt64
	err := row.Scan(&j.ID, &j.WorkspaceID, &agentID, &j.LeadName, &j.PhoneE164,
		&j.Status, &scheduledAt, &j.CreatedAt)
	if err != nil {
		return nil, err
	}
	if agentID.Valid {
		j.AgentID = &agentID.String
	}
	if scheduledAt.Valid {
		j.ScheduledAt = &scheduledAt.Int64
	}
	return &j, nil
}

func (h *Handlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	h.handleList(w, r, listQuery{
		table:      "outbound_jobs",
		columns:    jobColumns,
		searchCols: []string{"lead_name", "phone_e164"},
		statusCol:  "status",
		scan:       func(rows *sql.Rows) (interface{}, error) { return scanJob(rows) },
	})
}

func (h *Handlers) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	h.handleDetail(w, r, "outbound_jobs", jobColumns,
		func(row *sql.Row) (interface{}, error) { return scanJob(row) })
}

// ---------------------------------------------------------------------------
// Phone numbers
// ---------------------------------------------------------------------------

const phoneNumberColumns = `id, workspace_id, number_e164, provider, status, created_at`

func scanPhoneNumber(row interface{ Scan(...interface{}) error }) (interface{}, error) {
	var p PhoneNumber
	err := row.Scan(&p.ID, &p.WorkspaceID, &p.NumberE164, &p.Provider, &p.Status, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (h *Handlers) HandleListPhoneNumbers(w http.ResponseWriter, r *http.Request) {
	h.handleList(w, r, listQuery{
		table:      "phone_numbers",
		columns:    phoneNumberColumns,
		searchCols: []string{"number_e164"},
		statusCol:  "status",
		scan:       func(rows *sql.Rows) (interface{}, error) { return scanPhoneNumber(rows) },
	})
}

func (h *Handlers) HandleGetPhoneNumber(w http.ResponseWriter, r *http.Request) {
	h.handleDetail(w, r, "phone_numbers", phoneNumberColumns,
		func(row *sql.Row) (interface{}, error) { return scanPhoneNumber(row) })
}

// ---------------------------------------------------------------------------
// Contacts (cross-workspace view, condensed columns)
// ---------------------------------------------------------------------------

// adminContact is the condensed cross-workspace contact view. The CRM service
// owns the full contact model; the admin panel only browses.
type adminContact struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspaceId"`
	PhoneE164   string `json:"phoneE164"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Company     string `json:"company"`
	Source      string `json:"source"`
	TotalCalls  int    `json:"totalCalls"`
	LastCallAt  *int64 `json:"lastCallAt"`
	CreatedAt   int64  `json:"createdAt"`
}

const adminContactColumns = `id, workspace_id, phone_e164, name, email, company,
	source, total_calls, last_call_at, created_at`

func scanAdminContact(row interface{ Scan(...interface{}) error }) (interface{}, error) {
	var c adminContact
	var lastCallAt sql.NullInt64
	err := row.Scan(&c.ID, &c.WorkspaceID, &c.PhoneE164, &c.Name, &c.Email,
		&c.Company, &c.Source, &c.TotalCalls, &lastCallAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if lastCallAt.Valid {
		c.LastCallAt = &lastCallAt.Int64
	}
	return &c, nil
}

func (h *Handlers) HandleListContacts(w http.ResponseWriter, r *http.Request) {
	h.handleList(w, r, listQuery{
		table:      "contacts",
		columns:    adminContactColumns,
		searchCols: []string{"name", "phone_e164", "email"},
		statusCol:  "source",
		scan:       func(rows *sql.Rows) (interface{}, error) { return scanAdminContact(rows) },
	})
}

func (h *Handlers) HandleGetContact(w http.ResponseWriter, r *http.Request) {
	h.handleDetail(w, r, "contacts", adminContactColumns,
		func(row *sql.Row) (interface{}, error) { return scanAdminContact(row) })
}
