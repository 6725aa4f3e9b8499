package contacts

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// =============================================================================
// CSV IMPORT
// =============================================================================
// Parsing and batch insertion are split so handlers can report how many rows
// survived validation. Rows are parsed independently: a bad phone number
// drops that row, never the batch.

// ErrMissingPhoneColumn is returned when the CSV header row has no
// recognizable phone column.
var ErrMissingPhoneColumn = errors.New("CSV must have a phone, phone_e164, or phonee164 column")

// ErrEmptyFile is returned when the CSV has no header row at all.
var ErrEmptyFile = errors.New("CSV file is empty")

// ParseCSV reads a contact CSV with a required header row. Recognized columns
// (case-insensitive): phone/phone_e164/phonee164, name, email, company, tags
// (semicolon-separated). Phone values are normalized before validation; rows
// whose phone fails E.164 validation are dropped silently.
func ParseCSV(r io.Reader) ([]ImportRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // ragged rows are tolerated, handled per-row
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}

	phoneIdx, nameIdx, emailIdx, companyIdx, tagsIdx := -1, -1, -1, -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "phone", "phone_e164", "phonee164":
			phoneIdx = i
		case "name":
			nameIdx = i
		case "email":
			emailIdx = i
		case "company":
			companyIdx = i
		case "tags":
			tagsIdx = i
		}
	}
	if phoneIdx < 0 {
		return nil, ErrMissingPhoneColumn
	}

	field := func(record []string, idx int) string {
		if idx < 0 || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	rows := []ImportRow{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed line; skip it and keep going.
			log.Printf("contacts: skipping malformed CSV row: %v", err)
			continue
		}

		phone := NormalizePhone(field(record, phoneIdx))
		if !ValidPhone(phone) {
			continue
		}

		row := ImportRow{
			PhoneE164: phone,
			Name:      field(record, nameIdx),
			Email:     field(record, emailIdx),
			Company:   field(record, companyIdx),
		}
		if raw := field(record, tagsIdx); raw != "" {
			for _, tag := range strings.Split(raw, ";") {
				if tag = strings.TrimSpace(tag); tag != "" {
					row.Tags = append(row.Tags, tag)
				}
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// BulkImport inserts pre-validated rows with do-nothing-on-conflict
// semantics: phone numbers already present in the workspace are skipped, not
// merged. One failing row is logged and skipped; the batch continues. The
// result always exposes imported vs total so partial success is visible.
func (s *Store) BulkImport(ctx context.Context, workspaceID string, rows []ImportRow) (ImportResult, error) {
	result := ImportResult{Total: len(rows)}
	now := nowMillis()

	for _, row := range rows {
		tags := row.Tags
		if tags == nil {
			tags = []string{}
		}
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO contacts (id, workspace_id, phone_e164, name, email, company, notes, source,
				metadata, tags, total_calls, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, '', 'import', '{}', $7, 0, $8, $8)
			ON CONFLICT (workspace_id, phone_e164) DO NOTHING`,
			uuid.NewString(), workspaceID, row.PhoneE164, row.Name, row.Email, row.Company,
			pq.Array(tags), now)
		if err != nil {
			log.Printf("contacts: import row %s failed: %v", row.PhoneE164, err)
			continue
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			result.Imported++
		}
	}
	return result, nil
}
