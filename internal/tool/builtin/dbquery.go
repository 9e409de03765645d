package builtin

import (
	"context"
	"strings"

	"github.com/pagepal/pagepal/internal/tool"
)

// ProductRow is a row in the mock product table.
type ProductRow struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	InStock  bool    `json:"inStock"`
}

// DBQueryResult is the structured result of a mock database query.
type DBQueryResult struct {
	Query string       `json:"query"`
	Rows  []ProductRow `json:"rows"`
	Count int          `json:"count"`
}

// DBQueryService answers free-text lookups against a fixed in-memory product
// table. A placeholder for a real database integration.
type DBQueryService struct {
	rows []ProductRow
}

// NewDBQueryService creates the mock database query service.
func NewDBQueryService() *DBQueryService {
	return &DBQueryService{rows: mockProducts()}
}

// Definition returns the registrable tool definition for database queries.
func (s *DBQueryService) Definition() tool.Definition {
	return tool.Definition{
		Name:        "dbquery",
		Description: "Look up products in the catalog database",
		Parameters: map[string]tool.Parameter{
			"query": {
				Type:        tool.TypeString,
				Description: "Free-text search over product name and category",
				Required:    true,
			},
			"limit": {
				Type:        tool.TypeNumber,
				Description: "Maximum number of rows to return",
			},
		},
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			query, _ := params["query"].(string)
			limit := 0
			if n, ok := params["limit"].(float64); ok && n > 0 {
				limit = int(n)
			}
			return s.Query(ctx, query, limit)
		},
	}
}

// Query filters the mock table by case-insensitive substring match on name
// and category. An empty query returns every row.
func (s *DBQueryService) Query(ctx context.Context, query string, limit int) (*DBQueryResult, error) {
	needle := strings.ToLower(strings.TrimSpace(query))

	var rows []ProductRow
	for _, r := range s.rows {
		if needle == "" ||
			strings.Contains(strings.ToLower(r.Name), needle) ||
			strings.Contains(strings.ToLower(r.Category), needle) {
			rows = append(rows, r)
		}
		if limit > 0 && len(rows) == limit {
			break
		}
	}

	return &DBQueryResult{Query: query, Rows: rows, Count: len(rows)}, nil
}

func mockProducts() []ProductRow {
	return []ProductRow{
		{ID: "p-100", Name: "Wireless Keyboard", Category: "accessories", Price: 49.99, InStock: true},
		{ID: "p-101", Name: "USB-C Hub", Category: "accessories", Price: 34.50, InStock: true},
		{ID: "p-102", Name: "27in Monitor", Category: "displays", Price: 279.00, InStock: false},
		{ID: "p-103", Name: "Laptop Stand", Category: "accessories", Price: 25.00, InStock: true},
		{ID: "p-104", Name: "Noise-cancelling Headphones", Category: "audio", Price: 199.99, InStock: true},
		{ID: "p-105", Name: "Webcam 1080p", Category: "video", Price: 59.95, InStock: false},
	}
}
