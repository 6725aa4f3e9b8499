package contacts

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// =============================================================================
// CONTACT TYPES
// =============================================================================
// A contact is unique per (workspace_id, phone_e164). The phone number is
// immutable after creation; descriptive fields are mutable. total_calls only
// ever increases.

// Contact represents a CRM contact record.
type Contact struct {
	ID              string          `json:"id"`
	WorkspaceID     string          `json:"workspaceId"`
	PhoneE164       string          `json:"phoneE164"`
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	Company         string          `json:"company"`
	Notes           string          `json:"notes"`
	Source          string          `json:"source"` // manual, inbound, outbound, import
	Metadata        json.RawMessage `json:"metadata"`
	Tags            []string        `json:"tags"`
	TotalCalls      int             `json:"totalCalls"`
	LastCallAt      *int64          `json:"lastCallAt"`      // epoch millis, nil until first call
	LastCallOutcome *string         `json:"lastCallOutcome"` // nil until first outcome recorded
	CreatedAt       int64           `json:"createdAt"`       // epoch millis
	UpdatedAt       int64           `json:"updatedAt"`       // epoch millis
}

// ContactInput is the payload for explicit contact creation. Optional fields
// use pointers: nil means "not provided" and leaves the stored value alone
// when the phone number already exists (authoritative merge).
type ContactInput struct {
	WorkspaceID string           `json:"workspaceId"`
	PhoneE164   string           `json:"phoneE164"`
	Name        *string          `json:"name"`
	Email       *string          `json:"email"`
	Company     *string          `json:"company"`
	Notes       *string          `json:"notes"`
	Source      *string          `json:"source"`
	Metadata    *json.RawMessage `json:"metadata"`
	Tags        *[]string        `json:"tags"`
}

// ContactPatch is a partial update. nil = leave unchanged; a non-nil pointer
// replaces the stored value, including replacement with "" or an empty list.
// The phone number is deliberately absent: it is immutable after creation.
type ContactPatch struct {
	Name     *string          `json:"name"`
	Email    *string          `json:"email"`
	Company  *string          `json:"company"`
	Notes    *string          `json:"notes"`
	Source   *string          `json:"source"`
	Metadata *json.RawMessage `json:"metadata"`
	Tags     *[]string        `json:"tags"`
}

// Empty reports whether the patch contains no recognized fields.
func (p ContactPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Company == nil &&
		p.Notes == nil && p.Source == nil && p.Metadata == nil && p.Tags == nil
}

// ImportRow is a single validated row from a CSV import.
type ImportRow struct {
	PhoneE164 string
	Name      string
	Email     string
	Company   string
	Tags      []string
}

// ImportResult reports the outcome of a bulk import. Total counts rows that
// passed phone validation; Imported counts rows actually inserted (duplicates
// are skipped, not merged).
type ImportResult struct {
	Imported int `json:"imported"`
	Total    int `json:"total"`
}

// BackfillResult reports contacts created vs updated by a backfill pass.
type BackfillResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// ListOptions filters and paginates contact listings.
type ListOptions struct {
	Search string // case-insensitive substring over name, phone, email
	Source string // exact match on source when non-empty
	Limit  int
	Offset int
}

var (
	// ErrNotFound is returned when a contact id does not exist in the
	// caller's workspace.
	ErrNotFound = errors.New("contact not found")

	// ErrInvalidPhone is returned when a phone number fails E.164 validation.
	ErrInvalidPhone = errors.New("phone number must be E.164 format (+14155550123)")

	// ErrInvalidSource is returned when a source value is not one of
	// manual, inbound, outbound, import.
	ErrInvalidSource = errors.New("source must be one of: manual, inbound, outbound, import")
)

// e164Pattern matches normalized international phone numbers: a leading +,
// a non-zero country code digit, then 6-14 more digits.
var e164Pattern = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

// ValidPhone reports whether s is a normalized E.164 phone number.
func ValidPhone(s string) bool {
	return e164Pattern.MatchString(s)
}

// NormalizePhone strips everything except digits and a leading plus sign.
// It does not validate the result; callers check ValidPhone afterwards.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for i, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// validSources are the accepted values for a contact's source field.
var validSources = map[string]bool{
	"manual":   true,
	"inbound":  true,
	"outbound": true,
	"import":   true,
}

// ValidSource reports whether s is an accepted contact source.
func ValidSource(s string) bool {
	return validSources[s]
}
