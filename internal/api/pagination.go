package api

import (
	"net/http"
	"strconv"
)

// Page size policy for listing endpoints. The CRM surface serves dashboard
// tables and keeps pages small; the admin panel browses whole tables and
// gets a higher ceiling.
const (
	DefaultPageSize  = 100
	crmMaxPageSize   = 500
	adminMaxPageSize = 1000
)

// PaginationParams is the page window resolved from a request's query string.
type PaginationParams struct {
	Page   int
	Limit  int
	Offset int
}

// ParsePagination resolves the page and limit query parameters for CRM
// listing endpoints. Missing or garbage values fall back to page 1 and
// DefaultPageSize.
func ParsePagination(r *http.Request) PaginationParams {
	return parsePageWindow(r, crmMaxPageSize)
}

// ParseAdminPagination is ParsePagination with the admin panel's page-size
// ceiling.
func ParseAdminPagination(r *http.Request) PaginationParams {
	return parsePageWindow(r, adminMaxPageSize)
}

func parsePageWindow(r *http.Request, maxLimit int) PaginationParams {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}

	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	return PaginationParams{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

// PaginatedResponse wraps one page of list data with its metadata.
type PaginatedResponse struct {
	Data       interface{}    `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}

// PaginationMeta describes where the returned page sits in the full result
// set.
type PaginationMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasMore    bool  `json:"has_more"`
}

// NewPaginatedResponse builds the envelope for one page of results. An empty
// result set still reports one (empty) page.
func NewPaginatedResponse(data interface{}, params PaginationParams, total int64) PaginatedResponse {
	pages := int((total + int64(params.Limit) - 1) / int64(params.Limit))
	if pages < 1 {
		pages = 1
	}

	return PaginatedResponse{
		Data: data,
		Pagination: PaginationMeta{
			Page:       params.Page,
			Limit:      params.Limit,
			Total:      total,
			TotalPages: pages,
			HasMore:    params.Page < pages,
		},
	}
}
