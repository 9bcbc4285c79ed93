package blapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const subsetsBody = `{
  "meta": {"code": 200},
  "data": [
    {"entries": [
      {"item": {"no": "sw001", "type": "MINIFIG", "name": "Clone Trooper"}, "quantity": 2},
      {"item": {"no": "3001", "type": "PART", "name": "Brick 2 x 4"}, "color_id": 5, "quantity": 4}
    ]},
    {"entries": [
      {"item": {"no": "sw002", "type": "MINIFIG", "name": "Pilot"}, "quantity": 1}
    ]}
  ]
}`

func TestParseSubsetsFlattensAndFilters(t *testing.T) {
	minifigs := ParseSubsets(subsetsBody, ItemTypeMinifig)
	if len(minifigs) != 2 {
		t.Fatalf("expected 2 minifig entries, got %d: %+v", len(minifigs), minifigs)
	}
	if minifigs[0].ItemNo != "sw001" || minifigs[0].Quantity != 2 {
		t.Fatalf("unexpected first entry: %+v", minifigs[0])
	}
	if minifigs[1].ItemNo != "sw002" {
		t.Fatalf("unexpected second entry: %+v", minifigs[1])
	}

	parts := ParseSubsets(subsetsBody, ItemTypePart)
	if len(parts) != 1 {
		t.Fatalf("expected 1 part entry, got %d", len(parts))
	}
	if parts[0].ItemNo != "3001" || parts[0].ColorID != 5 || parts[0].Quantity != 4 {
		t.Fatalf("unexpected part entry: %+v", parts[0])
	}
}

func TestParseSubsetsDefaultsQuantity(t *testing.T) {
	body := `{"data": [{"entries": [{"item": {"no": "x", "type": "PART"}}]}]}`
	got := ParseSubsets(body, ItemTypePart)
	if len(got) != 1 || got[0].Quantity != 1 {
		t.Fatalf("missing quantity must default to 1, got %+v", got)
	}
}

func TestFetchSendsAuthAndCounts(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, subsetsBody)
	}))
	defer srv.Close()

	c := New(srv.URL, "secret", 0)
	if _, err := c.Fetch(context.Background(), "/items/SET/75000-1/subsets"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if c.Calls() != 1 {
		t.Fatalf("expected 1 call counted, got %d", c.Calls())
	}
}

func TestFetchEnvelopeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"meta": {"code": 403}, "data": []}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "secret", 0)
	_, err := c.Fetch(context.Background(), "/items/SET/1-1/subsets")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.MetaCode != 403 {
		t.Fatalf("unexpected meta code: %+v", apiErr)
	}
}

func TestBudgetExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"meta": {"code": 200}, "data": []}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "secret", 2)
	if c.BudgetExhausted() {
		t.Fatalf("fresh client must not be exhausted")
	}
	for i := 0; i < 2; i++ {
		if _, err := c.Fetch(context.Background(), "/items/SET/1-1/subsets"); err != nil {
			t.Fatalf("Fetch: %v", err)
		}
	}
	if !c.BudgetExhausted() {
		t.Fatalf("expected exhaustion after 2 calls with budget 2")
	}
}

func TestBudgetZeroIsUnlimited(t *testing.T) {
	c := New("http://example.invalid", "secret", 0)
	if c.BudgetExhausted() {
		t.Fatalf("budget 0 must never exhaust")
	}
}
