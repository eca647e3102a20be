package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sporelab/reportql/internal/domain"
)

// undefinedFunction is the SQLSTATE Postgres raises when a called procedure
// does not exist. It maps to ErrCapabilityUnavailable.
const undefinedFunction = "42883"

// reportRepository implements ProcedureCaller, SQLRunner, and TableFetcher
// over a pgx pool.
type reportRepository struct {
	pool *pgxpool.Pool
}

// NewReportRepository creates the pgx-backed query execution boundary.
func NewReportRepository(pool *pgxpool.Pool) *reportRepository {
	return &reportRepository{pool: pool}
}

// CallAggregate invokes the report_aggregate procedure with a JSONB payload.
func (r *reportRepository) CallAggregate(ctx context.Context, payload domain.ProcedurePayload) (domain.ProcedureResponse, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return domain.ProcedureResponse{}, fmt.Errorf("failed to marshal procedure payload: %w", err)
	}

	var raw []byte
	err = r.pool.QueryRow(ctx, "SELECT report_aggregate($1::jsonb)", encoded).Scan(&raw)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == undefinedFunction {
			return domain.ProcedureResponse{}, fmt.Errorf("report_aggregate: %w", ErrCapabilityUnavailable)
		}
		return domain.ProcedureResponse{}, fmt.Errorf("failed to call report_aggregate: %w", err)
	}

	var response domain.ProcedureResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return domain.ProcedureResponse{}, fmt.Errorf("failed to decode procedure response: %w", err)
	}
	return response, nil
}

// RunSQL executes a compiled read-only statement. Statements carrying
// DDL/DML keywords are refused with an empty result set.
func (r *reportRepository) RunSQL(ctx context.Context, sql string) ([]map[string]any, error) {
	if !IsReadOnlySQL(sql) {
		log.Printf("[repository] refused non-read-only statement: %s", sql)
		return []map[string]any{}, nil
	}
	return r.queryMaps(ctx, sql)
}

// FetchTable reads rows from one table with simple predicate pushdown.
func (r *reportRepository) FetchTable(ctx context.Context, table string, predicates []string, limit int) ([]map[string]any, error) {
	var sb strings.Builder
	sb.WriteString("SELECT * FROM ")
	sb.WriteString(table)
	if len(predicates) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(predicates, " AND "))
	}
	if limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", limit)
	}

	sql := sb.String()
	if !IsReadOnlySQL(sql) {
		log.Printf("[repository] refused non-read-only fetch: %s", sql)
		return []map[string]any{}, nil
	}
	return r.queryMaps(ctx, sql)
}

// FetchByForeignKey resolves related rows whose key field matches any of the
// given values.
func (r *reportRepository) FetchByForeignKey(ctx context.Context, table, keyField string, keys []string) ([]map[string]any, error) {
	if len(keys) == 0 {
		return []map[string]any{}, nil
	}
	sql := fmt.Sprintf("SELECT * FROM %s WHERE %s = ANY($1)", table, keyField)
	rows, err := r.pool.Query(ctx, sql, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s by %s: %w", table, keyField, err)
	}
	defer rows.Close()
	return collectMaps(rows)
}

func (r *reportRepository) queryMaps(ctx context.Context, sql string) ([]map[string]any, error) {
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()
	return collectMaps(rows)
}

func collectMaps(rows pgx.Rows) ([]map[string]any, error) {
	fields := rows.FieldDescriptions()
	result := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}
		record := make(map[string]any, len(fields))
		for i, field := range fields {
			record[string(field.Name)] = values[i]
		}
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return result, nil
}
