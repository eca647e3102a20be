package related

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

type fakeFetcher struct {
	calls int
	rows  []map[string]any
}

func (f *fakeFetcher) FetchTable(ctx context.Context, table string, predicates []string, limit int) ([]map[string]any, error) {
	return nil, nil
}

func (f *fakeFetcher) FetchByForeignKey(ctx context.Context, table, keyField string, keys []string) ([]map[string]any, error) {
	f.calls++
	return f.rows, nil
}

func TestLoadRelatedBatchesKeys(t *testing.T) {
	fetcher := &fakeFetcher{rows: []map[string]any{
		{"submission_id": "s1", "temperature": 21.5},
		{"submission_id": "s2", "temperature": 19.0},
	}}
	loader := NewLoader(fetcher)

	rows, err := loader.LoadRelated(context.Background(), "submissions", "submission_id", []string{"s1", "s2", "s1", "missing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected a single batched fetch, got %d", fetcher.calls)
	}
	if len(rows) != 4 {
		t.Fatalf("expected one result per input key, got %d", len(rows))
	}
	if rows[0]["temperature"] != 21.5 || rows[2]["temperature"] != 21.5 {
		t.Fatalf("duplicate keys must resolve to the same row: %v", rows)
	}
	if rows[3] != nil {
		t.Fatalf("missing key must resolve to nil, got %v", rows[3])
	}
}

func TestLoadRelatedSeesTableChanges(t *testing.T) {
	fetcher := &fakeFetcher{rows: []map[string]any{
		{"site_id": "site-1", "version": 1},
	}}
	loader := NewLoader(fetcher)

	rows, err := loader.LoadRelated(context.Background(), "sites", "site_id", []string{"site-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows[0]["version"] != 1 {
		t.Fatalf("expected version 1 on first load, got %v", rows[0]["version"])
	}

	fetcher.rows = []map[string]any{{"site_id": "site-1", "version": 2}}

	rows, err = loader.LoadRelated(context.Background(), "sites", "site_id", []string{"site-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetcher.calls != 2 {
		t.Fatalf("second load must refetch, got %d fetches", fetcher.calls)
	}
	if rows[0]["version"] != 2 {
		t.Fatalf("expected current row after table change, got version %v", rows[0]["version"])
	}
}

func TestLoadRelatedEmptyKeys(t *testing.T) {
	loader := NewLoader(&fakeFetcher{})
	rows, err := loader.LoadRelated(context.Background(), "sites", "site_id", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected empty result, got %v", rows)
	}
}

func TestKeyString(t *testing.T) {
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	if got := KeyString(id.String()); got != id.String() {
		t.Fatalf("string passthrough failed: %q", got)
	}
	var raw [16]byte = id
	if got := KeyString(raw); got != id.String() {
		t.Fatalf("raw uuid bytes must normalize to the canonical form, got %q", got)
	}
	if got := KeyString(42); got != "" {
		t.Fatalf("unsupported types must yield empty string, got %q", got)
	}
}
