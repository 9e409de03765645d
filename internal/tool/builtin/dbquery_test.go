package builtin

import (
	"context"
	"testing"
	"time"

	"github.com/pagepal/pagepal/internal/tool"
)

func TestDBQueryFilter(t *testing.T) {
	svc := NewDBQueryService()

	res, err := svc.Query(context.Background(), "keyboard", 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.Count != 1 {
		t.Fatalf("expected 1 row for keyboard, got %d", res.Count)
	}
	if res.Rows[0].Name != "Wireless Keyboard" {
		t.Errorf("unexpected row %+v", res.Rows[0])
	}
}

func TestDBQueryCategoryAndLimit(t *testing.T) {
	svc := NewDBQueryService()

	res, err := svc.Query(context.Background(), "accessories", 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.Count != 2 {
		t.Errorf("expected limit to cap rows at 2, got %d", res.Count)
	}
}

func TestDBQueryEmptyReturnsAll(t *testing.T) {
	svc := NewDBQueryService()

	res, err := svc.Query(context.Background(), "  ", 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.Count != len(mockProducts()) {
		t.Errorf("empty query should return all rows, got %d", res.Count)
	}
}

func TestDBQueryNoMatch(t *testing.T) {
	svc := NewDBQueryService()

	res, err := svc.Query(context.Background(), "unobtainium", 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.Count != 0 {
		t.Errorf("expected no rows, got %d", res.Count)
	}
}

func TestRegisterBuiltins(t *testing.T) {
	registry := tool.NewRegistry(nil)
	weather := NewWeatherService("http://geo.invalid", "http://forecast.invalid", time.Second, nil)

	Register(registry, weather, NewCalendarService(), NewDBQueryService())

	for _, name := range []string{"weather", "calendar", "dbquery"} {
		if !registry.Has(name) {
			t.Errorf("expected %q to be registered", name)
		}
	}
	if registry.Size() != 3 {
		t.Errorf("expected 3 tools, got %d", registry.Size())
	}
}
