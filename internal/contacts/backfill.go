package contacts

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/google/uuid"
)

// testCallSentinel is the to-number used by platform test calls. Backfill
// ignores it so test traffic never manufactures contacts.
const testCallSentinel = "+15005550006"

// BackfillFromCalls reconciles historical call records into contacts for one
// workspace. It is a maintenance pass, not part of the request-serving hot
// path: every matching call increments total_calls and overwrites
// last_call_at/last_call_outcome in scan order, so the stored "last call" is
// whichever call the scan processed last, not necessarily the chronologically
// latest one. That matches the long-standing behavior downstream reports were
// built against; do not add an ORDER BY on call time here without migrating
// those reports.
func (s *Store) BackfillFromCalls(ctx context.Context, workspaceID string) (BackfillResult, error) {
	var result BackfillResult

	// Longest lead name per phone across the workspace's outbound jobs. The
	// longest string wins ties too; length is a cheap "this name looks more
	// complete" signal.
	names, err := s.leadNamesByPhone(ctx, workspaceID)
	if err != nil {
		return result, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT to_number, outcome FROM calls WHERE workspace_id = $1`, workspaceID)
	if err != nil {
		return result, fmt.Errorf("scan calls: %w", err)
	}
	defer rows.Close()

	type callEvent struct {
		phone   string
		outcome string
	}
	events := []callEvent{}
	for rows.Next() {
		var toNumber string
		var outcome sql.NullString
		if err := rows.Scan(&toNumber, &outcome); err != nil {
			log.Printf("contacts: backfill skipping unreadable call row: %v", err)
			continue
		}
		if toNumber == testCallSentinel || !ValidPhone(toNumber) {
			continue
		}
		events = append(events, callEvent{phone: toNumber, outcome: outcome.String})
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("scan calls: %w", err)
	}

	for _, ev := range events {
		created, err := s.applyBackfillCall(ctx, workspaceID, ev.phone, names[ev.phone], ev.outcome)
		if err != nil {
			log.Printf("contacts: backfill upsert for %s failed: %v", ev.phone, err)
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}
	return result, nil
}

// applyBackfillCall is the upsert-from-call path plus outcome tracking. The
// (xmax = 0) expression distinguishes a fresh insert from a conflict update.
func (s *Store) applyBackfillCall(ctx context.Context, workspaceID, phone, candidateName, outcome string) (bool, error) {
	now := nowMillis()
	var created bool
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO contacts (id, workspace_id, phone_e164, name, email, company, notes, source,
			metadata, tags, total_calls, last_call_at, last_call_outcome, created_at, updated_at)
		VALUES ($1, $2, $3, $4, '', '', '', 'outbound', '{}', '{}', 1, $5, NULLIF($6, ''), $5, $5)
		ON CONFLICT (workspace_id, phone_e164) DO UPDATE SET
			total_calls       = contacts.total_calls + 1,
			last_call_at      = EXCLUDED.last_call_at,
			last_call_outcome = EXCLUDED.last_call_outcome,
			name              = CASE WHEN contacts.name = '' AND EXCLUDED.name <> ''
			                         THEN EXCLUDED.name ELSE contacts.name END,
			updated_at        = EXCLUDED.updated_at
		RETURNING (xmax = 0)`,
		uuid.NewString(), workspaceID, phone, candidateName, now, outcome).Scan(&created)
	if err != nil {
		return false, err
	}
	return created, nil
}

// leadNamesByPhone maps phone -> longest non-empty lead name seen in the
// workspace's outbound jobs.
func (s *Store) leadNamesByPhone(ctx context.Context, workspaceID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT phone_e164, lead_name FROM outbound_jobs
		WHERE workspace_id = $1 AND lead_name <> ''`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("scan outbound jobs: %w", err)
	}
	defer rows.Close()

	names := make(map[string]string)
	for rows.Next() {
		var phone, name string
		if err := rows.Scan(&phone, &name); err != nil {
			continue
		}
		if len(name) > len(names[phone]) {
			names[phone] = name
		}
	}
	return names, rows.Err()
}
