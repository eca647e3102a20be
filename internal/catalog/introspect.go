package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sporelab/reportql/internal/domain"
)

// PGIntrospector reads live column metadata from information_schema.
type PGIntrospector struct {
	pool *pgxpool.Pool
}

// NewPGIntrospector creates an introspector backed by a pgx pool.
func NewPGIntrospector(pool *pgxpool.Pool) *PGIntrospector {
	return &PGIntrospector{pool: pool}
}

// GetColumns implements ColumnIntrospector.
func (p *PGIntrospector) GetColumns(ctx context.Context, table string) ([]domain.Field, error) {
	rows, err := p.pool.Query(ctx, `
        SELECT column_name, data_type, is_nullable
        FROM information_schema.columns
        WHERE table_schema = 'public' AND table_name = $1
        ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect columns for %s: %w", table, err)
	}
	defer rows.Close()

	var fields []domain.Field
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return nil, fmt.Errorf("failed to scan column row: %w", err)
		}
		fields = append(fields, domain.Field{
			Name:     name,
			Type:     pgTypeToFieldType(dataType),
			Nullable: strings.EqualFold(nullable, "YES"),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read column rows: %w", err)
	}
	return fields, nil
}

func pgTypeToFieldType(dataType string) domain.FieldType {
	switch strings.ToLower(dataType) {
	case "smallint", "integer", "bigint":
		return domain.FieldTypeInteger
	case "numeric", "decimal", "real", "double precision":
		return domain.FieldTypeNumeric
	case "boolean":
		return domain.FieldTypeBoolean
	case "date":
		return domain.FieldTypeDate
	case "timestamp without time zone", "timestamp with time zone", "timestamptz", "timestamp":
		return domain.FieldTypeTimestamp
	case "uuid":
		return domain.FieldTypeUUID
	case "json", "jsonb":
		return domain.FieldTypeJSON
	default:
		return domain.FieldTypeText
	}
}
