package repository

import (
	"context"
	"errors"

	"github.com/sporelab/reportql/internal/domain"
)

// ErrCapabilityUnavailable signals that a requested execution mechanism is
// not implemented server-side. The execution strategy recovers from it by
// advancing its fallback chain.
var ErrCapabilityUnavailable = errors.New("execution capability unavailable")

// ProcedureCaller invokes the pre-declared aggregation procedure with a
// normalized payload.
type ProcedureCaller interface {
	CallAggregate(ctx context.Context, payload domain.ProcedurePayload) (domain.ProcedureResponse, error)
}

// SQLRunner executes a single read-only SQL statement and returns its rows
// as generic maps. Implementations must reject DDL/DML statements.
type SQLRunner interface {
	RunSQL(ctx context.Context, sql string) ([]map[string]any, error)
}

// TableFetcher reads rows from a single table with simple predicate
// pushdown, and resolves related rows by foreign key for in-memory joins.
type TableFetcher interface {
	FetchTable(ctx context.Context, table string, predicates []string, limit int) ([]map[string]any, error)
	FetchByForeignKey(ctx context.Context, table, keyField string, keys []string) ([]map[string]any, error)
}
