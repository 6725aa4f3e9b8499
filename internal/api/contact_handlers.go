package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/voicelane/crm/internal/auth"
	"github.com/voicelane/crm/internal/config"
	"github.com/voicelane/crm/internal/contacts"
)

// ContactHandlers serves the contacts REST surface. Every handler scopes its
// queries to the authenticated caller's workspace; an id from another
// workspace is a 404, not a 403, so ids don't leak across tenants.
type ContactHandlers struct {
	store   *contacts.Store
	imports config.ImportsConfig
}

// NewContactHandlers creates the contact handler set.
func NewContactHandlers(store *contacts.Store, imports config.ImportsConfig) *ContactHandlers {
	return &ContactHandlers{store: store, imports: imports}
}

func workspaceID(r *http.Request) (string, bool) {
	ident := auth.IdentityFromContext(r.Context())
	if ident == nil || ident.WorkspaceID == "" {
		return "", false
	}
	return ident.WorkspaceID, true
}

// HandleListContacts returns a paginated contact listing.
//
//	GET /api/contacts?search=&source=&page=&limit=
func (h *ContactHandlers) HandleListContacts(w http.ResponseWriter, r *http.Request) {
	wsID, ok := workspaceID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	params := ParsePagination(r)
	source := r.URL.Query().Get("source")
	if source != "" && !contacts.ValidSource(source) {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid source %q", source))
		return
	}

	list, total, err := h.store.List(r.Context(), wsID, contacts.ListOptions{
		Search: r.URL.Query().Get("search"),
		Source: source,
		Limit:  params.Limit,
		Offset: params.Offset,
	})
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to list contacts")
		return
	}

	respondJSON(w, http.StatusOK, NewPaginatedResponse(list, params, total))
}

// HandleGetContact returns a single contact.
//
//	GET /api/contacts/{id}
func (h *ContactHandlers) HandleGetContact(w http.ResponseWriter, r *http.Request) {
	wsID, ok := workspaceID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	c, err := h.store.Get(r.Context(), wsID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// HandleCreateContact creates a contact, or authoritatively merges into the
// existing one when the phone number is already known in the workspace.
//
//	POST /api/contacts
func (h *ContactHandlers) HandleCreateContact(w http.ResponseWriter, r *http.Request) {
	wsID, ok := workspaceID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var input contacts.ContactInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	input.WorkspaceID = wsID
	input.PhoneE164 = contacts.NormalizePhone(input.PhoneE164)

	c, err := h.store.Create(r.Context(), input)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

// HandleUpdateContact applies a partial update. Fields absent from the body
// are left untouched; an empty body is a no-op that returns the stored row.
//
//	PUT /api/contacts/{id}
func (h *ContactHandlers) HandleUpdateContact(w http.ResponseWriter, r *http.Request) {
	wsID, ok := workspaceID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var patch contacts.ContactPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.store.Update(r.Context(), wsID, chi.URLParam(r, "id"), patch)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// HandleDeleteContact removes a contact permanently.
//
//	DELETE /api/contacts/{id}
func (h *ContactHandlers) HandleDeleteContact(w http.ResponseWriter, r *http.Request) {
	wsID, ok := workspaceID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.store.Delete(r.Context(), wsID, chi.URLParam(r, "id")); err != nil {
		h.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// HandleUpsertFromCall records a call event against a contact, creating it on
// first contact. Called by the calling platform, not the dashboard.
//
//	POST /api/internal/contacts/upsert-from-call
func (h *ContactHandlers) HandleUpsertFromCall(w http.ResponseWriter, r *http.Request) {
	wsID, ok := workspaceID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var input struct {
		PhoneE164 string `json:"phoneE164"`
		Name      string `json:"name"`
		Source    string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.store.UpsertFromCall(r.Context(), wsID, input.PhoneE164, input.Name, input.Source)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// HandleImportContacts ingests a CSV file. Rows failing phone validation are
// dropped before counting; rows whose number already exists are skipped. The
// response always reports imported vs total so partial success is visible.
//
//	POST /api/contacts/import  (multipart/form-data, field "file")
func (h *ContactHandlers) HandleImportContacts(w http.ResponseWriter, r *http.Request) {
	wsID, ok := workspaceID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.imports.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.imports.MaxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "file too large")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	rows, err := contacts.ParseCSV(file)
	if err != nil {
		switch err {
		case contacts.ErrEmptyFile, contacts.ErrMissingPhoneColumn:
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			respondSafeError(w, http.StatusInternalServerError, err, "failed to read CSV")
		}
		return
	}
	if len(rows) > h.imports.MaxRows {
		respondError(w, http.StatusBadRequest,
			fmt.Sprintf("import exceeds maximum of %d rows", h.imports.MaxRows))
		return
	}

	result, err := h.store.BulkImport(r.Context(), wsID, rows)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "import failed")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// HandleExportContacts streams the workspace's contacts as CSV.
//
//	GET /api/contacts/export
func (h *ContactHandlers) HandleExportContacts(w http.ResponseWriter, r *http.Request) {
	wsID, ok := workspaceID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	list, _, err := h.store.List(r.Context(), wsID, contacts.ListOptions{Limit: h.imports.MaxRows})
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "export failed")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=contacts.csv")
	w.Write([]byte("phone,name,email,company,total_calls,last_call_at\n"))
	for _, c := range list {
		lastCall := ""
		if c.LastCallAt != nil {
			lastCall = time.UnixMilli(*c.LastCallAt).UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s,%s,%s,%s,%d,%s\n",
			c.PhoneE164, csvEscape(c.Name), csvEscape(c.Email), csvEscape(c.Company), c.TotalCalls, lastCall)
	}
}

// HandleBackfillContacts runs the historical-call reconciliation pass.
//
//	POST /api/contacts/backfill
func (h *ContactHandlers) HandleBackfillContacts(w http.ResponseWriter, r *http.Request) {
	wsID, ok := workspaceID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	result, err := h.store.BackfillFromCalls(r.Context(), wsID)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "backfill failed")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *ContactHandlers) respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case err == contacts.ErrNotFound:
		respondError(w, http.StatusNotFound, "contact not found")
	case err == contacts.ErrInvalidPhone:
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":   "validation failed",
			"details": map[string]string{"phoneE164": err.Error()},
		})
	case err == contacts.ErrInvalidSource:
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":   "validation failed",
			"details": map[string]string{"source": err.Error()},
		})
	default:
		respondSafeError(w, http.StatusInternalServerError, err, "a database error occurred")
	}
}

// csvEscape quotes a field when it contains CSV metacharacters.
func csvEscape(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
