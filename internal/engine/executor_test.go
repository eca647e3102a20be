package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sporelab/reportql/internal/catalog"
	"github.com/sporelab/reportql/internal/domain"
	"github.com/sporelab/reportql/internal/repository"
)

type fakeProcedure struct {
	response domain.ProcedureResponse
	err      error
	calls    int
	payload  domain.ProcedurePayload
}

func (f *fakeProcedure) CallAggregate(ctx context.Context, payload domain.ProcedurePayload) (domain.ProcedureResponse, error) {
	f.calls++
	f.payload = payload
	return f.response, f.err
}

type fakeRunner struct {
	rows  []map[string]any
	err   error
	calls int
	sql   string
}

func (f *fakeRunner) RunSQL(ctx context.Context, sql string) ([]map[string]any, error) {
	f.calls++
	f.sql = sql
	return f.rows, f.err
}

type fakeFetcher struct {
	rows  []map[string]any
	err   error
	calls int
}

func (f *fakeFetcher) FetchTable(ctx context.Context, table string, predicates []string, limit int) ([]map[string]any, error) {
	f.calls++
	return f.rows, f.err
}

func (f *fakeFetcher) FetchByForeignKey(ctx context.Context, table, keyField string, keys []string) ([]map[string]any, error) {
	return nil, repository.ErrCapabilityUnavailable
}

func aggregatedConfig() domain.ReportConfig {
	return domain.ReportConfig{
		Name:        "growth summary",
		DataSources: []domain.DataSource{{ID: "s1", Table: "petri_observations", IsPrimary: true}},
		Dimensions: []domain.Dimension{
			{Source: domain.FieldRef{Field: "growth_stage"}},
		},
		Measures: []domain.Measure{
			{Source: domain.FieldRef{Field: "growth_index"}, Aggregation: domain.AggregationAvg},
		},
	}
}

func TestExecuteProcedureSuccessSkipsLaterStages(t *testing.T) {
	procedure := &fakeProcedure{response: domain.ProcedureResponse{
		Success: true,
		Data:    []map[string]any{{"growth_stage": "High", "avg_growth_index": 12.0}},
	}}
	runner := &fakeRunner{}
	fetcher := &fakeFetcher{}
	eng := New(catalog.New(), procedure, runner, fetcher)

	data, err := eng.Execute(context.Background(), aggregatedConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if procedure.calls != 1 {
		t.Fatalf("expected 1 procedure call, got %d", procedure.calls)
	}
	if runner.calls != 0 || fetcher.calls != 0 {
		t.Fatal("later stages must not run after a procedure success")
	}
	if len(data.Rows) != 1 {
		t.Fatalf("expected 1 shaped row, got %d", len(data.Rows))
	}
	if data.Rows[0].Measures["avg_growth_index"] != 12.0 {
		t.Fatalf("unexpected measure: %v", data.Rows[0].Measures)
	}
	if procedure.payload.Entity != "petri_observations" {
		t.Fatalf("unexpected procedure entity: %s", procedure.payload.Entity)
	}
}

func TestExecuteProcedureUnavailableFallsBackToSQL(t *testing.T) {
	procedure := &fakeProcedure{err: repository.ErrCapabilityUnavailable}
	runner := &fakeRunner{rows: []map[string]any{
		{"growth_stage": "Low", "avg_growth_index": 3.5},
	}}
	eng := New(catalog.New(), procedure, runner, &fakeFetcher{})

	data, err := eng.Execute(context.Background(), aggregatedConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runner.calls != 1 {
		t.Fatalf("expected raw SQL stage to run, calls=%d", runner.calls)
	}
	if runner.sql == "" {
		t.Fatal("raw SQL stage must receive the compiled plan query")
	}
	if len(data.Rows) != 1 || data.Rows[0].Measures["avg_growth_index"] != 3.5 {
		t.Fatalf("unexpected result: %+v", data.Rows)
	}
}

func TestExecuteSQLFailureFallsBackToDirectFetch(t *testing.T) {
	procedure := &fakeProcedure{err: repository.ErrCapabilityUnavailable}
	runner := &fakeRunner{err: errors.New("syntax error")}
	fetcher := &fakeFetcher{rows: []map[string]any{
		{"growth_stage": "Moderate", "growth_index": 5.0, "observation_id": "o1"},
	}}
	eng := New(catalog.New(), procedure, runner, fetcher)

	data, err := eng.Execute(context.Background(), aggregatedConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected direct fetch to run, calls=%d", fetcher.calls)
	}
	if len(data.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(data.Rows))
	}
	if data.Rows[0].Metadata["observation_id"] != "o1" {
		t.Fatalf("direct fetch rows must shape as raw records, got %+v", data.Rows[0])
	}
}

func TestExecuteAllStagesEmptyYieldsSampleData(t *testing.T) {
	procedure := &fakeProcedure{err: repository.ErrCapabilityUnavailable}
	runner := &fakeRunner{}
	fetcher := &fakeFetcher{}
	eng := New(catalog.New(), procedure, runner, fetcher,
		WithSampleGenerator(NewSeededSampleGenerator(9)))

	data, err := eng.Execute(context.Background(), aggregatedConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data.Rows) == 0 {
		t.Fatal("expected synthetic sample rows")
	}
	for _, row := range data.Rows {
		if row.Metadata["sample"] != true {
			t.Fatal("fallback rows must be flagged as samples")
		}
	}
}

func TestExecuteTimeoutSurfacesError(t *testing.T) {
	procedure := &fakeProcedure{err: context.DeadlineExceeded}
	eng := New(catalog.New(), procedure, &fakeRunner{}, &fakeFetcher{},
		WithTimeout(time.Nanosecond))

	_, err := eng.Execute(context.Background(), aggregatedConfig())
	if !errors.Is(err, ErrQueryTimeout) {
		t.Fatalf("expected ErrQueryTimeout, got %v", err)
	}
}

func TestExecuteCancellationIsNotTimeout(t *testing.T) {
	procedure := &fakeProcedure{err: context.Canceled}
	eng := New(catalog.New(), procedure, &fakeRunner{}, &fakeFetcher{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := eng.Execute(ctx, aggregatedConfig())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrQueryTimeout) {
		t.Fatal("a cancelled caller must not be reported as a query timeout")
	}
}

func TestExecuteNoSourcesDegradesToSample(t *testing.T) {
	eng := New(catalog.New(), nil, nil, nil,
		WithSampleGenerator(NewSeededSampleGenerator(11)))

	data, err := eng.Execute(context.Background(), domain.ReportConfig{Name: "broken"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data.Rows) == 0 {
		t.Fatal("plan failures must degrade to sample data")
	}
}

func TestExecuteProcedureSkippedForRawRecordPlans(t *testing.T) {
	procedure := &fakeProcedure{}
	runner := &fakeRunner{rows: []map[string]any{{"petri_code": "P-1"}}}
	eng := New(catalog.New(), procedure, runner, &fakeFetcher{})

	config := aggregatedConfig()
	config.Measures = nil

	if _, err := eng.Execute(context.Background(), config); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if procedure.calls != 0 {
		t.Fatal("raw record plans must bypass the structured procedure")
	}
	if runner.calls != 1 {
		t.Fatalf("expected raw SQL stage for raw record plan, calls=%d", runner.calls)
	}
}
