package server

import (
	"context"
	"log"
	"time"

	"github.com/sporelab/reportql/internal/auth"
	"github.com/sporelab/reportql/internal/cache"
	"github.com/sporelab/reportql/internal/domain"
	"github.com/sporelab/reportql/internal/engine"
)

// ReportService fronts the engine with the result cache. Every execution
// goes through here so identical requests within the TTL share one result.
type ReportService struct {
	engine *engine.Engine
	cache  *cache.ResultCache
}

// NewReportService wires the engine behind the cache.
func NewReportService(eng *engine.Engine, resultCache *cache.ResultCache) *ReportService {
	return &ReportService{engine: eng, cache: resultCache}
}

// Execute runs a report for the given scope, serving from cache when a live
// entry exists. The scope is attached to the context so downstream stages
// can enforce company isolation.
func (s *ReportService) Execute(ctx context.Context, reportID string, config domain.ReportConfig, scope domain.ExecutionScope) (domain.AggregatedData, error) {
	ctx = auth.ContextWithScope(ctx, scope)
	key := cache.Key(reportID, scope, config)
	// Reports may shorten or extend their own cache lifetime; zero means the
	// cache default.
	ttl := time.Duration(config.CacheTTLSeconds) * time.Second
	return s.cache.GetOrCompute(ctx, key, reportID, ttl, func(ctx context.Context) (domain.AggregatedData, error) {
		return s.engine.Execute(ctx, config)
	})
}

// Invalidate drops every cached result for the report and returns the count.
func (s *ReportService) Invalidate(reportID string) int {
	removed := s.cache.Invalidate(reportID)
	if removed > 0 {
		log.Printf("[reports] invalidated %d cached results for report %s", removed, reportID)
	}
	return removed
}
