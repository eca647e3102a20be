package server

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sporelab/reportql/internal/cache"
	"github.com/sporelab/reportql/internal/catalog"
	"github.com/sporelab/reportql/internal/domain"
	"github.com/sporelab/reportql/internal/engine"
)

func newTestService() *ReportService {
	eng := engine.New(catalog.New(), nil, nil, nil,
		engine.WithSampleGenerator(engine.NewSeededSampleGenerator(13)))
	return NewReportService(eng, cache.NewResultCache())
}

func testConfig() domain.ReportConfig {
	return domain.ReportConfig{
		Name:        "stage summary",
		ChartType:   domain.ChartTypeBar,
		DataSources: []domain.DataSource{{ID: "s1", Table: "petri_observations", IsPrimary: true}},
		Dimensions:  []domain.Dimension{{Source: domain.FieldRef{Field: "growth_stage"}}},
		Measures:    []domain.Measure{{Source: domain.FieldRef{Field: "growth_index"}, Aggregation: domain.AggregationAvg}},
	}
}

func TestExecuteServesSecondCallFromCache(t *testing.T) {
	svc := newTestService()
	scope := domain.ExecutionScope{UserID: uuid.New(), CompanyID: uuid.New()}

	first, err := svc.Execute(context.Background(), "report-1", testConfig(), scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.CacheHit {
		t.Fatal("first execution must not be a cache hit")
	}

	second, err := svc.Execute(context.Background(), "report-1", testConfig(), scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.CacheHit {
		t.Fatal("repeat execution within the ttl must be served from cache")
	}
}

func TestExecuteHonorsReportCacheTTL(t *testing.T) {
	if testing.Short() {
		t.Skip("waits out a one second cache ttl")
	}
	svc := newTestService()
	scope := domain.ExecutionScope{UserID: uuid.New(), CompanyID: uuid.New()}
	config := testConfig()
	config.CacheTTLSeconds = 1

	if _, err := svc.Execute(context.Background(), "report-1", config, scope); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(1200 * time.Millisecond)

	data, err := svc.Execute(context.Background(), "report-1", config, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data.CacheHit {
		t.Fatal("entry must expire at the report's own ttl, not the cache default")
	}
}
