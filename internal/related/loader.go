package related

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader"

	"github.com/sporelab/reportql/internal/repository"
)

// Loader batches foreign-key lookups against related tables so the direct
// single-table fallback can merge related rows without issuing one query per
// primary row.
type Loader struct {
	fetcher repository.TableFetcher

	mu      sync.Mutex
	loaders map[string]*dataloader.Loader
}

// NewLoader creates a related-row loader on top of the table fetcher.
func NewLoader(fetcher repository.TableFetcher) *Loader {
	return &Loader{
		fetcher: fetcher,
		loaders: make(map[string]*dataloader.Loader),
	}
}

// LoadRelated resolves one related row per key from the given table. Missing
// keys yield nil entries in the same order as the input.
func (l *Loader) LoadRelated(ctx context.Context, table, keyField string, keys []string) ([]map[string]any, error) {
	if len(keys) == 0 {
		return []map[string]any{}, nil
	}

	loader := l.loaderFor(table, keyField)
	loaderKeys := make(dataloader.Keys, len(keys))
	for i, key := range keys {
		loaderKeys[i] = dataloader.StringKey(key)
	}

	thunk := loader.LoadMany(ctx, loaderKeys)
	raw, errs := thunk()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	result := make([]map[string]any, len(raw))
	for i, item := range raw {
		if item == nil {
			continue
		}
		if record, ok := item.(map[string]any); ok {
			result[i] = record
		}
	}
	return result, nil
}

func (l *Loader) loaderFor(table, keyField string) *dataloader.Loader {
	cacheKey := table + ":" + keyField
	l.mu.Lock()
	defer l.mu.Unlock()

	if loader, ok := l.loaders[cacheKey]; ok {
		return loader
	}

	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := make([]string, len(keys))
		for i, key := range keys {
			ids[i] = key.String()
		}

		rows, err := l.fetcher.FetchByForeignKey(ctx, table, keyField, ids)
		if err != nil {
			results := make([]*dataloader.Result, len(keys))
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		byKey := make(map[string]map[string]any, len(rows))
		for _, row := range rows {
			if value, ok := row[keyField]; ok {
				byKey[KeyString(value)] = row
			}
		}

		results := make([]*dataloader.Result, len(keys))
		for i, id := range ids {
			if row, ok := byKey[id]; ok {
				results[i] = &dataloader.Result{Data: row}
			} else {
				results[i] = &dataloader.Result{Data: nil}
			}
		}
		return results
	}

	// The key cache is dropped after every batch; loads are only coalesced
	// within one batching window, so later executions see current table data.
	loader := dataloader.NewBatchedLoader(batchFn,
		dataloader.WithWait(5*time.Millisecond),
		dataloader.WithClearCacheOnBatch(),
	)
	l.loaders[cacheKey] = loader
	return loader
}

// KeyString normalizes a key column value; pgx surfaces uuid columns as raw
// 16-byte arrays.
func KeyString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case [16]byte:
		return uuid.UUID(v).String()
	case interface{ String() string }:
		return v.String()
	default:
		return ""
	}
}
