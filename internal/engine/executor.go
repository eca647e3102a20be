package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sporelab/reportql/internal/catalog"
	"github.com/sporelab/reportql/internal/domain"
	"github.com/sporelab/reportql/internal/related"
	"github.com/sporelab/reportql/internal/repository"
)

// ErrQueryTimeout is returned when execution exceeds the wall-clock bound.
// A timeout signals a performance problem the caller should act on, so it
// surfaces instead of degrading to sample data.
var ErrQueryTimeout = errors.New("report query timed out; try clearing the report cache and narrowing the date range")

const defaultExecutionTimeout = 10 * time.Second

// Engine runs report configurations through the ordered fallback chain:
// structured procedure call, compiled SQL, direct single-table fetch with
// in-memory join, and finally synthetic sample data.
type Engine struct {
	planner   *PlanBuilder
	procedure repository.ProcedureCaller
	runner    repository.SQLRunner
	fetcher   repository.TableFetcher
	related   *related.Loader
	catalog   *catalog.Catalog
	sample    *SampleGenerator
	timeout   time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout overrides the execution timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

// WithRelatedLoader enables batched related-row resolution during the
// direct-fetch fallback.
func WithRelatedLoader(loader *related.Loader) Option {
	return func(e *Engine) {
		e.related = loader
	}
}

// WithSampleGenerator overrides the terminal sample-data stage.
func WithSampleGenerator(gen *SampleGenerator) Option {
	return func(e *Engine) {
		e.sample = gen
	}
}

// New creates a report engine. Any of procedure, runner, and fetcher may be
// nil; a nil stage is skipped the same way a failing one is.
func New(
	cat *catalog.Catalog,
	procedure repository.ProcedureCaller,
	runner repository.SQLRunner,
	fetcher repository.TableFetcher,
	opts ...Option,
) *Engine {
	e := &Engine{
		planner:   NewPlanBuilder(cat),
		procedure: procedure,
		runner:    runner,
		fetcher:   fetcher,
		catalog:   cat,
		sample:    NewSampleGenerator(),
		timeout:   defaultExecutionTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one report configuration to completion. Stage failures are
// logged and recovered by advancing the chain; the only errors a caller sees
// are ErrQueryTimeout and its own cancellation.
func (e *Engine) Execute(ctx context.Context, config domain.ReportConfig) (domain.AggregatedData, error) {
	start := time.Now()

	plan, err := e.planner.Build(ctx, config)
	if err != nil {
		// Malformed configurations degrade to sample data, never a crash.
		log.Printf("[engine] plan build failed for report %q: %v", config.Name, err)
		return e.sample.Generate(config), nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	set, err := e.runChain(ctx, plan, config)
	if err != nil {
		return domain.AggregatedData{}, err
	}
	if set == nil || len(set.Rows) == 0 {
		log.Printf("[engine] all execution stages empty for report %q, generating sample data", config.Name)
		return e.sample.Generate(config), nil
	}

	shaped := ShapeRows(*set, plan)
	return domain.AggregatedData{
		Rows:            shaped,
		TotalCount:      len(shaped),
		FilteredCount:   len(shaped),
		ExecutionTimeMS: time.Since(start).Milliseconds(),
		Metadata:        resultMetadata(config),
	}, nil
}

// runChain attempts stages 1-3 in order. It returns nil with no error when
// every stage came up empty, ErrQueryTimeout when the deadline fired, and the
// cancellation error when the caller went away.
func (e *Engine) runChain(ctx context.Context, plan Plan, config domain.ReportConfig) (*domain.RawRowSet, error) {
	if set, err := e.runProcedure(ctx, plan); err != nil {
		if abort := abortErr(ctx, err); abort != nil {
			return nil, abort
		}
	} else if set != nil {
		return set, nil
	}

	if set, err := e.runRawSQL(ctx, plan); err != nil {
		if abort := abortErr(ctx, err); abort != nil {
			return nil, abort
		}
	} else if set != nil {
		return set, nil
	}

	set, err := e.runDirectFetch(ctx, plan)
	if err != nil {
		if abort := abortErr(ctx, err); abort != nil {
			return nil, abort
		}
		return nil, nil
	}
	return set, nil
}

// runProcedure is stage 1: the structured aggregation procedure. It is only
// used for aggregated plans with no cross-source requirement.
func (e *Engine) runProcedure(ctx context.Context, plan Plan) (*domain.RawRowSet, error) {
	if e.procedure == nil {
		return nil, nil
	}
	if plan.Kind != domain.RowKindAggregated || plan.RequiresRawSQL() {
		return nil, nil
	}

	payload := procedurePayload(plan)
	response, err := e.procedure.CallAggregate(ctx, payload)
	if err != nil {
		if errors.Is(err, repository.ErrCapabilityUnavailable) {
			log.Printf("[engine] structured procedure unavailable for %s, advancing to raw SQL", plan.Entity)
			return nil, nil
		}
		log.Printf("[engine] structured procedure failed (entity=%s): %v", plan.Entity, err)
		return nil, err
	}
	if !response.Success || len(response.Data) == 0 {
		log.Printf("[engine] structured procedure returned no usable data (entity=%s message=%q)", plan.Entity, response.Message)
		return nil, nil
	}
	return &domain.RawRowSet{Kind: domain.RowKindAggregated, Rows: response.Data}, nil
}

// runRawSQL is stage 2: the compiled plan executed verbatim.
func (e *Engine) runRawSQL(ctx context.Context, plan Plan) (*domain.RawRowSet, error) {
	if e.runner == nil || plan.SQL == "" {
		return nil, nil
	}

	rows, err := e.runner.RunSQL(ctx, plan.SQL)
	if err != nil {
		log.Printf("[engine] raw SQL failed: %v (query: %s)", err, plan.SQL)
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &domain.RawRowSet{Kind: plan.Kind, Rows: rows}, nil
}

// runDirectFetch is stage 3: query the primary table alone with simple
// predicate pushdown, then merge related rows by foreign key in memory.
func (e *Engine) runDirectFetch(ctx context.Context, plan Plan) (*domain.RawRowSet, error) {
	if e.fetcher == nil {
		return nil, nil
	}

	predicates := make([]string, 0, len(plan.SimpleFilters))
	for _, filter := range plan.SimpleFilters {
		filter.TargetTable = ""
		predicates = append(predicates, CompileFilter(filter))
	}

	rows, err := e.fetcher.FetchTable(ctx, plan.PrimaryTable, predicates, plan.Limit)
	if err != nil {
		log.Printf("[engine] direct fetch failed (table=%s): %v", plan.PrimaryTable, err)
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	for _, table := range plan.RelatedTables {
		if err := e.mergeRelated(ctx, plan.PrimaryTable, table, rows); err != nil {
			if timedOut(ctx, err) {
				return nil, err
			}
			log.Printf("[engine] related merge failed (table=%s): %v", table, err)
		}
	}

	return &domain.RawRowSet{Kind: domain.RowKindRawRecord, Rows: rows}, nil
}

// mergeRelated folds the related table's columns into each primary row that
// carries a matching foreign key. Existing columns are never overwritten.
func (e *Engine) mergeRelated(ctx context.Context, primaryTable, table string, rows []map[string]any) error {
	if e.related == nil {
		return nil
	}

	joinField, foreignField := e.joinFields(primaryTable, table)

	keys := make([]string, len(rows))
	for i, row := range rows {
		keys[i] = related.KeyString(row[joinField])
	}

	relatedRows, err := e.related.LoadRelated(ctx, table, foreignField, keys)
	if err != nil {
		return fmt.Errorf("failed to load related rows from %s: %w", table, err)
	}

	for i, row := range rows {
		if i >= len(relatedRows) || relatedRows[i] == nil {
			continue
		}
		for name, value := range relatedRows[i] {
			if _, exists := row[name]; exists {
				continue
			}
			row[name] = value
		}
	}
	return nil
}

func (e *Engine) joinFields(primaryTable, table string) (string, string) {
	if steps, ok := e.catalog.JoinPath(primaryTable, table); ok && len(steps) > 0 {
		return steps[0].JoinField, steps[0].ForeignField
	}
	step := inferJoinStep(primaryTable, table)
	return step.JoinField, step.ForeignField
}

func procedurePayload(plan Plan) domain.ProcedurePayload {
	payload := domain.ProcedurePayload{
		Entity:     plan.Entity,
		Dimensions: make([]string, 0, len(plan.Dimensions)),
		Metrics:    make([]domain.ProcedureMetric, 0, len(plan.Measures)),
		Filters:    make([]domain.ProcedureFilter, 0, len(plan.SimpleFilters)),
	}
	for _, dim := range plan.Dimensions {
		payload.Dimensions = append(payload.Dimensions, dim.Field)
	}
	for _, measure := range plan.Measures {
		payload.Metrics = append(payload.Metrics, domain.ProcedureMetric{
			Field:    measure.Field,
			Function: string(measure.Aggregation),
		})
	}
	for _, filter := range plan.SimpleFilters {
		payload.Filters = append(payload.Filters, domain.ProcedureFilter{
			Field:    filter.Field,
			Operator: string(filter.Operator),
			Value:    filter.Value,
		})
	}
	return payload
}

// timedOut reports whether a stage failure should abort the chain: the
// execution deadline fired or the caller went away.
func timedOut(ctx context.Context, err error) bool {
	return abortErr(ctx, err) != nil
}

// abortErr classifies a stage failure. Deadline expiry maps to
// ErrQueryTimeout; a cancelled caller propagates as is so a client disconnect
// is never reported as a slow query. Any other error lets the chain advance.
func abortErr(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrQueryTimeout
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	return nil
}
