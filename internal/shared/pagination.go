package shared

// Listing bounds.
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Page bounds a listing query.
type Page struct {
	Limit  int
	Offset int
}

// NewPage clamps limit into (0, MaxPageSize] and offset to be non-negative.
func NewPage(limit, offset int) Page {
	if limit <= 0 || limit > MaxPageSize {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return Page{Limit: limit, Offset: offset}
}
