package storage

import (
	"errors"
	"math"
	"time"
)

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// DefaultOpTimeout bounds every storage operation when no timeout is configured.
const DefaultOpTimeout = 5 * time.Second

// PaginatedResult represents a paginated result set with type safety using generics.
type PaginatedResult[T any] struct {
	// Items is the slice of results for the current page.
	Items []T `json:"items"`

	// Total is the total number of items across all pages.
	Total int `json:"total"`

	// Page is the current page number (1-indexed).
	Page int `json:"page"`

	// PageSize is the number of items per page.
	PageSize int `json:"page_size"`

	// HasMore indicates whether there are more pages available.
	HasMore bool `json:"has_more"`
}

// NewPaginatedResult builds a result page and computes HasMore.
func NewPaginatedResult[T any](items []T, total, page, pageSize int) *PaginatedResult[T] {
	if items == nil {
		items = []T{}
	}
	return &PaginatedResult[T]{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		HasMore:  pageSize > 0 && page < (total+pageSize-1)/pageSize,
	}
}

// ListOptions provides pagination and filtering for known-error listings.
type ListOptions struct {
	// Page is the page number to retrieve (1-indexed, default: 1).
	Page int

	// Limit is the number of items per page (default: 10, max: 100).
	Limit int

	// SortBy is one of last_seen_at, first_seen_at, occurrences, id
	// (default: last_seen_at).
	SortBy string

	// SortOrder is "asc" or "desc" (default: "desc").
	SortOrder string

	// Service restricts results to one service. Empty means all services.
	Service string
}

// Normalize applies defaults and validates the ListOptions.
func (o *ListOptions) Normalize() {
	// Whitelist validation for SortBy to prevent SQL injection
	allowedSortFields := map[string]bool{
		"last_seen_at":  true,
		"first_seen_at": true,
		"occurrences":   true,
		"id":            true,
	}

	if !allowedSortFields[o.SortBy] {
		o.SortBy = "last_seen_at"
	}

	if o.SortOrder != "asc" && o.SortOrder != "desc" {
		o.SortOrder = "desc"
	}

	normalizePage(&o.Page, &o.Limit)
}

// Offset calculates the offset for SQL queries based on page and limit.
func (o *ListOptions) Offset() int {
	return (o.Page - 1) * o.Limit
}

// IncidentFilter selects incidents. Results are always ordered newest first.
type IncidentFilter struct {
	Fingerprint string // Empty means any fingerprint
	Service     string // Empty means any service
	Page        int    // 1-indexed, default 1
	Limit       int    // default 10, max 100
}

// Normalize applies defaults to the filter.
func (f *IncidentFilter) Normalize() {
	normalizePage(&f.Page, &f.Limit)
}

// Offset calculates the offset for SQL queries based on page and limit.
func (f *IncidentFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// maxPage keeps (page-1)*limit within int32 for any limit up to 100.
const maxPage = math.MaxInt32 / 100

func normalizePage(page, limit *int) {
	if *page < 1 {
		*page = 1
	}
	if *page > maxPage {
		*page = maxPage
	}
	if *limit < 1 {
		*limit = 10
	}
	if *limit > 100 {
		*limit = 100
	}
}
