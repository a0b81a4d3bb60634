package core

// Default page sizes used when a Service is built without explicit options.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageRequest is a 1-based page request.
type PageRequest struct {
	Page  int
	Limit int
}

// normalize clamps the request to valid bounds.
func (p PageRequest) normalize(defaultLimit, maxLimit int) PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if maxLimit > 0 && p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// offset returns the number of records skipped before this page.
func (p PageRequest) offset() int {
	return (p.Page - 1) * p.Limit
}

// Page is one page of a listing.
type Page[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}

// newPage assembles a page. TotalPages is 0 when there are no matches, which
// distinguishes an empty listing from a single empty page.
func newPage[T any](data []T, total int64, req PageRequest) *Page[T] {
	if data == nil {
		data = []T{}
	}
	return &Page[T]{
		Data:       data,
		Total:      total,
		Page:       req.Page,
		Limit:      req.Limit,
		TotalPages: totalPages(total, req.Limit),
	}
}

// totalPages returns ceil(total/limit).
func totalPages(total int64, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

// ListImportsOptions filters and paginates an import listing.
type ListImportsOptions struct {
	Status     Optional[ImportStatus]
	EntityType Optional[EntityType]
	PageRequest
}

// ListRowsOptions filters and paginates a row listing.
type ListRowsOptions struct {
	Status Optional[RowStatus]
	PageRequest
}

// ImportPage is a page of imports.
type ImportPage = Page[Import]

// RowPage is a page of row results.
type RowPage = Page[RowResult]

// ImportWithResults is an import together with one page of its rows.
type ImportWithResults struct {
	Import  *Import  `json:"import"`
	Results *RowPage `json:"results"`
}
