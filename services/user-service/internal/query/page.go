package query

import "strings"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// sortColumns whitelists the sortable fields and maps the API names to
// their columns. Anything else falls back to createdAt.
var sortColumns = map[string]string{
	"id":        "id",
	"createdAt": "created_at",
	"name":      "name",
	"age":       "age",
	"email":     "email",
}

// SortableField reports whether the API field name may be sorted on.
func SortableField(name string) bool {
	_, ok := sortColumns[name]
	return ok
}

// Page describes one page of a sorted result set. Number is zero-based.
type Page struct {
	Number  int
	Size    int
	SortBy  string
	SortDir string
}

func DefaultPage() Page {
	return Page{Number: 0, Size: DefaultPageSize, SortBy: "createdAt", SortDir: "desc"}
}

// OrderBy renders the ORDER BY clause from whitelisted parts only; the
// column never comes from the caller's string, so it is safe to splice.
func (p Page) OrderBy() string {
	col, ok := sortColumns[p.SortBy]
	if !ok {
		col = "created_at"
	}
	dir := "DESC"
	if strings.EqualFold(p.SortDir, "asc") {
		dir = "ASC"
	}
	return " ORDER BY " + col + " " + dir
}

func (p Page) Limit() int {
	if p.Size <= 0 {
		return DefaultPageSize
	}
	if p.Size > MaxPageSize {
		return MaxPageSize
	}
	return p.Size
}

func (p Page) Offset() int {
	if p.Number <= 0 {
		return 0
	}
	return p.Number * p.Limit()
}
