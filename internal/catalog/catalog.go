package catalog

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/sporelab/reportql/internal/domain"
)

// ColumnIntrospector looks up live column metadata for a table. Absence of
// the capability is a soft failure; the catalog falls back to its static
// field list.
type ColumnIntrospector interface {
	GetColumns(ctx context.Context, table string) ([]domain.Field, error)
}

// Catalog exposes the queryable fields of every registered data source and
// the declared join graph between them.
type Catalog struct {
	introspector ColumnIntrospector
	tables       map[string][]domain.Field
	joins        map[joinKey][]domain.RelationshipStep
}

type joinKey struct {
	from string
	to   string
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithIntrospector enables live schema introspection before the static
// fallback.
func WithIntrospector(introspector ColumnIntrospector) Option {
	return func(c *Catalog) {
		c.introspector = introspector
	}
}

// New builds a catalog pre-loaded with the static table registry and the
// declared join graph.
func New(opts ...Option) *Catalog {
	c := &Catalog{
		tables: staticTables(),
		joins:  declaredJoins(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tables returns the registered table names in sorted order.
func (c *Catalog) Tables() []string {
	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasTable reports whether the table is registered.
func (c *Catalog) HasTable(table string) bool {
	_, ok := c.tables[strings.ToLower(strings.TrimSpace(table))]
	return ok
}

// Fields returns the queryable fields for a table. Live introspection is
// attempted first when configured; any failure there falls back to the
// static field list.
func (c *Catalog) Fields(ctx context.Context, table string) ([]domain.Field, error) {
	normalized := strings.ToLower(strings.TrimSpace(table))
	if c.introspector != nil {
		fields, err := c.introspector.GetColumns(ctx, normalized)
		if err == nil && len(fields) > 0 {
			return c.mergeEnumValues(normalized, fields), nil
		}
		if err != nil {
			log.Printf("[catalog] introspection unavailable for %s, using static fields: %v", normalized, err)
		}
	}

	static, ok := c.tables[normalized]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	fields := make([]domain.Field, len(static))
	copy(fields, static)
	return fields, nil
}

// Field returns a single field descriptor by name.
func (c *Catalog) Field(ctx context.Context, table, name string) (domain.Field, error) {
	fields, err := c.Fields(ctx, table)
	if err != nil {
		return domain.Field{}, err
	}
	for _, field := range fields {
		if strings.EqualFold(field.Name, name) {
			return field, nil
		}
	}
	return domain.Field{}, fmt.Errorf("field %q not found on table %q", name, table)
}

// JoinPath returns the declared join path between two tables. Lookup is a
// declared-graph hit or nothing; callers decide whether to fall back to
// name-driven inference.
func (c *Catalog) JoinPath(fromTable, toTable string) ([]domain.RelationshipStep, bool) {
	key := joinKey{
		from: strings.ToLower(strings.TrimSpace(fromTable)),
		to:   strings.ToLower(strings.TrimSpace(toTable)),
	}
	steps, ok := c.joins[key]
	if !ok {
		return nil, false
	}
	path := make([]domain.RelationshipStep, len(steps))
	copy(path, steps)
	return path, true
}

// mergeEnumValues layers statically known enum value sets over live column
// metadata, which has no notion of application-level enums.
func (c *Catalog) mergeEnumValues(table string, live []domain.Field) []domain.Field {
	static, ok := c.tables[table]
	if !ok {
		return live
	}
	byName := make(map[string]domain.Field, len(static))
	for _, field := range static {
		byName[field.Name] = field
	}
	for i, field := range live {
		known, ok := byName[field.Name]
		if !ok {
			continue
		}
		if len(known.EnumValues) > 0 {
			live[i].Type = domain.FieldTypeEnum
			live[i].EnumValues = append([]string(nil), known.EnumValues...)
		}
		if known.DisplayName != "" && live[i].DisplayName == "" {
			live[i].DisplayName = known.DisplayName
		}
	}
	return live
}
