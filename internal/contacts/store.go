package contacts

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Store runs all contact SQL against an injected connection pool. It holds no
// state of its own; concurrent use is safe because every mutation is a single
// parameterized statement.
type Store struct {
	db *sql.DB
}

// NewStore creates a contact store on top of an existing pool.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// contactColumns is the SELECT list shared by every query that returns full
// contact rows. Keep in sync with scanContact.
const contactColumns = `id, workspace_id, phone_e164, name, email, company, notes, source,
	metadata, tags, total_calls, last_call_at, last_call_outcome, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanContact(row rowScanner) (*Contact, error) {
	var c Contact
	var metadata []byte
	var tags pq.StringArray
	var lastCallAt sql.NullInt64
	var lastCallOutcome sql.NullString

	err := row.Scan(&c.ID, &c.WorkspaceID, &c.PhoneE164, &c.Name, &c.Email, &c.Company,
		&c.Notes, &c.Source, &metadata, &tags, &c.TotalCalls,
		&lastCallAt, &lastCallOutcome, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	c.Metadata = metadata
	if len(c.Metadata) == 0 {
		c.Metadata = []byte(`{}`)
	}
	c.Tags = []string(tags)
	if c.Tags == nil {
		c.Tags = []string{}
	}
	if lastCallAt.Valid {
		c.LastCallAt = &lastCallAt.Int64
	}
	if lastCallOutcome.Valid {
		c.LastCallOutcome = &lastCallOutcome.String
	}
	return &c, nil
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// =============================================================================
// UPSERT FROM CALL
// =============================================================================

// UpsertFromCall records a call event against the contact for the given phone
// number, creating the contact if it does not exist yet.
//
// The whole find-or-create runs as one INSERT ... ON CONFLICT statement so a
// race between two concurrent calls for a brand-new number cannot produce two
// rows: the loser of the insert race lands in the update branch. A candidate
// name never overwrites a non-empty stored name; call-derived data is
// best-effort enrichment, not authoritative.
func (s *Store) UpsertFromCall(ctx context.Context, workspaceID, phoneE164, candidateName, source string) (*Contact, error) {
	if !ValidPhone(phoneE164) {
		return nil, ErrInvalidPhone
	}
	if source == "" {
		source = "inbound"
	}
	now := nowMillis()

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO contacts (id, workspace_id, phone_e164, name, email, company, notes, source,
			metadata, tags, total_calls, last_call_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, '', '', '', $5, '{}', '{}', 1, $6, $6, $6)
		ON CONFLICT (workspace_id, phone_e164) DO UPDATE SET
			total_calls  = contacts.total_calls + 1,
			last_call_at = EXCLUDED.last_call_at,
			name         = CASE WHEN contacts.name = '' AND EXCLUDED.name <> ''
			                    THEN EXCLUDED.name ELSE contacts.name END,
			updated_at   = EXCLUDED.updated_at
		RETURNING `+contactColumns,
		uuid.NewString(), workspaceID, phoneE164, candidateName, source, now)

	c, err := scanContact(row)
	if err != nil {
		return nil, fmt.Errorf("upsert contact from call: %w", err)
	}
	return c, nil
}

// =============================================================================
// EXPLICIT CRUD
// =============================================================================

// Create inserts a contact, or merges into the existing one when the
// (workspace, phone) pair is already taken. Unlike UpsertFromCall, this merge
// is authoritative: every field the caller provided replaces the stored
// value, and omitted fields stay untouched.
func (s *Store) Create(ctx context.Context, input ContactInput) (*Contact, error) {
	if !ValidPhone(input.PhoneE164) {
		return nil, ErrInvalidPhone
	}

	name := strValue(input.Name)
	email := strValue(input.Email)
	company := strValue(input.Company)
	notes := strValue(input.Notes)
	source := strValue(input.Source)
	if source == "" {
		source = "manual"
	}
	if !ValidSource(source) {
		return nil, ErrInvalidSource
	}
	metadata := []byte(`{}`)
	if input.Metadata != nil && len(*input.Metadata) > 0 {
		metadata = *input.Metadata
	}
	tags := []string{}
	if input.Tags != nil {
		tags = *input.Tags
	}
	now := nowMillis()

	// Presence flags steer the conflict branch: only fields the caller
	// actually sent replace the stored row.
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO contacts (id, workspace_id, phone_e164, name, email, company, notes, source,
			metadata, tags, total_calls, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, $11)
		ON CONFLICT (workspace_id, phone_e164) DO UPDATE SET
			name       = CASE WHEN $12 THEN EXCLUDED.name ELSE contacts.name END,
			email      = CASE WHEN $13 THEN EXCLUDED.email ELSE contacts.email END,
			company    = CASE WHEN $14 THEN EXCLUDED.company ELSE contacts.company END,
			notes      = CASE WHEN $15 THEN EXCLUDED.notes ELSE contacts.notes END,
			source     = CASE WHEN $16 THEN EXCLUDED.source ELSE contacts.source END,
			metadata   = CASE WHEN $17 THEN EXCLUDED.metadata ELSE contacts.metadata END,
			tags       = CASE WHEN $18 THEN EXCLUDED.tags ELSE contacts.tags END,
			updated_at = EXCLUDED.updated_at
		RETURNING `+contactColumns,
		uuid.NewString(), input.WorkspaceID, input.PhoneE164, name, email, company, notes, source,
		metadata, pq.Array(tags), now,
		input.Name != nil, input.Email != nil, input.Company != nil, input.Notes != nil,
		input.Source != nil, input.Metadata != nil, input.Tags != nil)

	c, err := scanContact(row)
	if err != nil {
		return nil, fmt.Errorf("create contact: %w", err)
	}
	return c, nil
}

// Get fetches one contact by id, scoped to a workspace. Ids belonging to a
// different workspace are indistinguishable from missing ones.
func (s *Store) Get(ctx context.Context, workspaceID, id string) (*Contact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE workspace_id = $1 AND id = $2`,
		workspaceID, id)
	c, err := scanContact(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return c, nil
}

// Update applies a partial patch. An empty patch is a no-op, not an error: it
// returns the current row without bumping updated_at.
func (s *Store) Update(ctx context.Context, workspaceID, id string, patch ContactPatch) (*Contact, error) {
	if patch.Empty() {
		return s.Get(ctx, workspaceID, id)
	}
	if patch.Source != nil && !ValidSource(*patch.Source) {
		return nil, ErrInvalidSource
	}

	set := []string{}
	args := []interface{}{}
	add := func(col string, val interface{}) {
		args = append(args, val)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Email != nil {
		add("email", *patch.Email)
	}
	if patch.Company != nil {
		add("company", *patch.Company)
	}
	if patch.Notes != nil {
		add("notes", *patch.Notes)
	}
	if patch.Source != nil {
		add("source", *patch.Source)
	}
	if patch.Metadata != nil {
		add("metadata", []byte(*patch.Metadata))
	}
	if patch.Tags != nil {
		add("tags", pq.Array(*patch.Tags))
	}
	add("updated_at", nowMillis())

	args = append(args, workspaceID, id)
	query := fmt.Sprintf(`UPDATE contacts SET %s WHERE workspace_id = $%d AND id = $%d RETURNING %s`,
		strings.Join(set, ", "), len(args)-1, len(args), contactColumns)

	c, err := scanContact(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update contact: %w", err)
	}
	return c, nil
}

// Delete removes a contact permanently. There is no soft-delete.
func (s *Store) Delete(ctx context.Context, workspaceID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM contacts WHERE workspace_id = $1 AND id = $2`, workspaceID, id)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns a page of contacts plus the total match count for pagination.
func (s *Store) List(ctx context.Context, workspaceID string, opts ListOptions) ([]*Contact, int64, error) {
	where := []string{"workspace_id = $1"}
	args := []interface{}{workspaceID}

	if opts.Search != "" {
		args = append(args, "%"+opts.Search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR phone_e164 ILIKE $%d OR email ILIKE $%d)", n, n, n))
	}
	if opts.Source != "" {
		args = append(args, opts.Source)
		where = append(where, fmt.Sprintf("source = $%d", len(args)))
	}
	whereClause := strings.Join(where, " AND ")

	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM contacts WHERE `+whereClause, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count contacts: %w", err)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit, opts.Offset)
	query := fmt.Sprintf(`SELECT %s FROM contacts WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		contactColumns, whereClause, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	out := []*Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list contacts: %w", err)
	}
	return out, total, nil
}

func strValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
