package ledger

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// PageRequest carries sanitized pagination input for list queries.
// It should only be constructed with BuildPageRequest.
type PageRequest struct {
	page     int
	pageSize int
}

// BuildPageRequest creates a PageRequest, sanitizing the input:
//   - page values below 1 become 1
//   - pageSize values below 1 become the default (10)
//   - pageSize values above the cap (100) are clamped to the cap
func BuildPageRequest(page int, pageSize int) PageRequest {
	if page < 1 {
		page = 1
	}

	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	return PageRequest{page: page, pageSize: pageSize}
}

// Page returns the 1-based page number.
func (pr PageRequest) Page() int {
	return pr.page
}

// PageSize returns the number of items per page.
func (pr PageRequest) PageSize() int {
	return pr.pageSize
}

// Offset returns the number of rows to skip for this page.
func (pr PageRequest) Offset() uint {
	return uint((pr.page - 1) * pr.pageSize)
}

// Limit returns the maximum number of rows for this page.
func (pr PageRequest) Limit() uint {
	return uint(pr.pageSize)
}

// Page is one page of a list query result together with its pagination
// metadata.
type Page[T any] struct {
	Items      []T
	Total      int64
	Page       int
	PageSize   int
	TotalPages int
}

// BuildPage assembles a Page from the items of the current page, the total
// row count and the request that produced them.
func BuildPage[T any](items []T, total int64, request PageRequest) Page[T] {
	totalPages := int((total + int64(request.pageSize) - 1) / int64(request.pageSize))

	return Page[T]{
		Items:      items,
		Total:      total,
		Page:       request.page,
		PageSize:   request.pageSize,
		TotalPages: totalPages,
	}
}
