// Package listutil parses list query parameters and computes page metadata
// for the stock, blog and back-office list views.
package listutil

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultPerPage is used when per_page is missing or out of range.
	DefaultPerPage = 20
	// MaxPerPage caps per_page for API clients.
	MaxPerPage = 100
	// maxParamLen bounds search and filter values.
	maxParamLen = 200
)

// PageParams carries the requested page.
type PageParams struct {
	Page    int // 1-indexed
	PerPage int
}

// SortParams carries the requested ordering. Sort is empty when the column is not allowed.
type SortParams struct {
	Sort string
	Dir  string // "asc" or "desc"
}

// FilterParams carries the free-text search and the recognised exact-match filters.
type FilterParams struct {
	Search  string
	Filters map[string]string
}

// ListParams combines all list view parameters.
type ListParams struct {
	PageParams
	SortParams
	FilterParams
}

// PageInfo is the pagination metadata returned with every list.
type PageInfo struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// ParsePageParams reads page and per_page.
// POST: Page >= 1 and 1 <= PerPage <= MaxPerPage
func ParsePageParams(q url.Values) PageParams {
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	perPage, err := strconv.Atoi(q.Get("per_page"))
	if err != nil || perPage < 1 {
		perPage = DefaultPerPage
	}
	return PageParams{Page: page, PerPage: min(perPage, MaxPerPage)}
}

// ParseSortParams reads sort and dir. A leading "-" on sort ("-price") means descending.
// POST: Sort is "" or one of allowed; Dir is "asc" or "desc"
func ParseSortParams(q url.Values, allowed []string) SortParams {
	col := strings.TrimSpace(q.Get("sort"))
	dir := strings.ToLower(q.Get("dir"))
	if rest, ok := strings.CutPrefix(col, "-"); ok {
		col, dir = rest, "desc"
	}
	if !slices.Contains(allowed, col) {
		col = ""
	}
	if dir != "desc" {
		dir = "asc"
	}
	return SortParams{Sort: col, Dir: dir}
}

// ParseFilterParams reads q and the named filters, trimmed and length-capped.
// POST: Filters holds only keys from filterKeys with non-empty values
func ParseFilterParams(q url.Values, filterKeys []string) FilterParams {
	fp := FilterParams{
		Search:  clean(q.Get("q")),
		Filters: make(map[string]string, len(filterKeys)),
	}
	for _, key := range filterKeys {
		if v := clean(q.Get(key)); v != "" {
			fp.Filters[key] = v
		}
	}
	return fp
}

// ParseListParams parses paging, sorting and filtering in one call.
func ParseListParams(q url.Values, sortColumns, filterKeys []string) ListParams {
	return ListParams{
		PageParams:   ParsePageParams(q),
		SortParams:   ParseSortParams(q, sortColumns),
		FilterParams: ParseFilterParams(q, filterKeys),
	}
}

func clean(v string) string {
	v = strings.TrimSpace(v)
	if len(v) <= maxParamLen {
		return v
	}
	v = v[:maxParamLen]
	for !utf8.ValidString(v) {
		v = v[:len(v)-1]
	}
	return v
}

// NewPageInfo computes page metadata, clamping page into range.
// PRE: total >= 0
// POST: 1 <= Page <= TotalPages; an empty list has one page
func NewPageInfo(page, perPage, total int) PageInfo {
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	totalPages := max((total+perPage-1)/perPage, 1)
	return PageInfo{
		Page:       min(max(page, 1), totalPages),
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}
}

// Offset is the SQL OFFSET of the current page.
func (p PageInfo) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// ShowPagination reports whether there is more than one page.
func (p PageInfo) ShowPagination() bool {
	return p.TotalPages > 1
}

func (p PageInfo) HasPrev() bool { return p.Page > 1 }
func (p PageInfo) HasNext() bool { return p.Page < p.TotalPages }
func (p PageInfo) Prev() int     { return max(p.Page-1, 1) }
func (p PageInfo) Next() int     { return min(p.Page+1, p.TotalPages) }
