package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/sporelab/reportql/internal/catalog"
	"github.com/sporelab/reportql/internal/domain"
)

const (
	aggregatedRowCap = 500
	rawRecordRowCap  = 1000
)

// metadataFields are the parent-identifier columns every raw-record plan
// selects so drill-down can resolve the owning submission, site, and
// program.
var metadataFields = []string{"observation_id", "submission_id", "site_id", "program_id"}

// PlanColumn is one aliased expression in a plan's SELECT list.
type PlanColumn struct {
	Alias       string
	Expression  string
	Field       string
	Aggregation domain.Aggregation
}

// Plan is an executable description of one report query. Kind is decided
// once at build time: a plan is either aggregated or raw-record, never both.
type Plan struct {
	Kind         domain.RowKind
	CrossSource  bool
	PrimaryTable string
	// Entity is the logical name used for structured procedure payloads.
	Entity     string
	SQL        string
	Dimensions []PlanColumn
	Measures   []PlanColumn
	// SimpleFilters are the predicates that live on the primary table and
	// can be pushed down by the direct single-table fallback.
	SimpleFilters []domain.Filter
	// RelatedTables lists the non-primary source tables a direct fetch must
	// merge in memory.
	RelatedTables []string
	Limit         int
}

// RequiresRawSQL reports whether the plan cannot run through the structured
// procedure path and must go straight to compiled SQL.
func (p Plan) RequiresRawSQL() bool {
	return p.CrossSource || strings.Contains(p.SQL, " JOIN ")
}

// PlanBuilder assembles executable plans from report configurations.
type PlanBuilder struct {
	catalog *catalog.Catalog
}

// NewPlanBuilder creates a plan builder backed by the schema catalog.
func NewPlanBuilder(cat *catalog.Catalog) *PlanBuilder {
	return &PlanBuilder{catalog: cat}
}

// Build assembles a full query plan from a report configuration. Malformed
// configurations degrade to a best-effort plan; only a config with no data
// sources at all is an error.
func (b *PlanBuilder) Build(ctx context.Context, config domain.ReportConfig) (Plan, error) {
	primary, ok := config.PrimarySource()
	if !ok {
		return Plan{}, fmt.Errorf("report %q has no data sources", config.Name)
	}

	plan := Plan{
		PrimaryTable: primary.Table,
		Entity:       primary.Table,
		CrossSource:  config.CrossSource(),
	}
	if config.HasAggregation() {
		plan.Kind = domain.RowKindAggregated
		plan.Limit = aggregatedRowCap
	} else {
		plan.Kind = domain.RowKindRawRecord
		plan.Limit = rawRecordRowCap
	}

	qualify := plan.CrossSource || config.HasRelationshipFilters()
	dims := b.planDimensions(ctx, config, primary, qualify)
	measures := b.planMeasures(config, primary, qualify)
	plan.Dimensions = dims
	plan.Measures = measures

	joins := b.planJoins(config, primary)
	where := b.planPredicates(config, primary, qualify)
	plan.SimpleFilters = simpleFilters(config)
	plan.RelatedTables = relatedTables(config, primary)

	plan.SQL = assembleSQL(plan, primary, dims, measures, joins, where)
	return plan, nil
}

func (b *PlanBuilder) planDimensions(ctx context.Context, config domain.ReportConfig, primary domain.DataSource, qualify bool) []PlanColumn {
	dims := config.ConsolidatedDimensions()
	columns := make([]PlanColumn, 0, len(dims)+len(config.SegmentBy))
	seen := make(map[string]struct{})

	for _, dim := range dims {
		table := primary.Table
		if dim.Source.SourceID != "" && dim.Source.SourceID != primary.ID {
			if src, ok := config.SourceByID(dim.Source.SourceID); ok {
				table = src.Table
			}
		}
		expr := dim.Source.Field
		if qualify || table != primary.Table {
			expr = table + "." + dim.Source.Field
		}
		if dim.Granularity != "" {
			expr = fmt.Sprintf("DATE_TRUNC('%s', %s)", dim.Granularity, expr)
		}
		alias := dim.Alias()
		if _, dup := seen[alias]; dup {
			continue
		}
		seen[alias] = struct{}{}
		columns = append(columns, PlanColumn{Alias: alias, Expression: expr, Field: dim.Source.Field})
	}

	// Segment selections become implicit grouping dimensions without ever
	// joining the persisted dimension list.
	for _, segment := range config.SegmentBy {
		if segment == "" {
			continue
		}
		if _, dup := seen[segment]; dup {
			continue
		}
		seen[segment] = struct{}{}
		expr := segment
		if qualify {
			expr = primary.Table + "." + segment
		}
		columns = append(columns, PlanColumn{Alias: segment, Expression: expr, Field: segment})
	}

	return columns
}

func (b *PlanBuilder) planMeasures(config domain.ReportConfig, primary domain.DataSource, qualify bool) []PlanColumn {
	columns := make([]PlanColumn, 0, len(config.Measures))
	for _, measure := range config.Measures {
		table := primary.Table
		if measure.Source.SourceID != "" && measure.Source.SourceID != primary.ID {
			if src, ok := config.SourceByID(measure.Source.SourceID); ok {
				table = src.Table
			}
		}
		field := measure.Source.Field
		if qualify || table != primary.Table {
			field = table + "." + measure.Source.Field
		}

		expr := measure.Expression
		if expr == "" {
			switch {
			case measure.Aggregation == domain.AggregationCount && measure.Source.Field == "":
				expr = "COUNT(*)"
			case measure.Aggregation != "":
				expr = fmt.Sprintf("%s(%s)", strings.ToUpper(string(measure.Aggregation)), field)
			default:
				expr = field
			}
		}
		columns = append(columns, PlanColumn{
			Alias:       measure.Alias(),
			Expression:  expr,
			Field:       measure.Source.Field,
			Aggregation: measure.Aggregation,
		})
	}
	return columns
}

// planJoins merges the joins demanded by relationship-path filters with the
// joins needed to reach non-primary sources referenced by dimensions or
// measures. Cross-source joins resolve through the declared join graph
// first; the table-name heuristic only covers undeclared pairs.
func (b *PlanBuilder) planJoins(config domain.ReportConfig, primary domain.DataSource) []string {
	joins, _ := ResolveRelationships(config.Filters, primary.Table)
	seen := make(map[string]struct{}, len(joins))
	for _, clause := range joins {
		seen[clause] = struct{}{}
	}

	appendSteps := func(steps []domain.RelationshipStep) {
		for _, step := range steps {
			clause := joinClause(step)
			if _, dup := seen[clause]; dup {
				continue
			}
			seen[clause] = struct{}{}
			joins = append(joins, clause)
		}
	}

	for _, source := range config.DataSources {
		if source.Table == primary.Table {
			continue
		}
		if !sourceReferenced(config, source) {
			continue
		}
		if steps, ok := b.catalog.JoinPath(primary.Table, source.Table); ok {
			appendSteps(steps)
			continue
		}
		appendSteps([]domain.RelationshipStep{inferJoinStep(primary.Table, source.Table)})
	}

	return joins
}

func sourceReferenced(config domain.ReportConfig, source domain.DataSource) bool {
	for _, d := range config.Dimensions {
		if d.Source.SourceID == source.ID {
			return true
		}
	}
	for _, m := range config.Measures {
		if m.Source.SourceID == source.ID {
			return true
		}
	}
	return false
}

// inferJoinStep guesses the join key from the target table's name, e.g.
// "submissions" joins via submission_id. It only runs when the declared
// join graph has no entry for the pair.
func inferJoinStep(fromTable, toTable string) domain.RelationshipStep {
	key := inferredForeignKey(toTable)
	return domain.RelationshipStep{
		FromTable:    fromTable,
		ToTable:      toTable,
		JoinField:    key,
		ForeignField: key,
		JoinType:     domain.JoinTypeInner,
	}
}

func inferredForeignKey(table string) string {
	name := table
	if idx := strings.LastIndex(name, "_"); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.TrimSuffix(name, "s")
	if name == "" {
		name = table
	}
	return name + "_id"
}

func (b *PlanBuilder) planPredicates(config domain.ReportConfig, primary domain.DataSource, qualify bool) []string {
	predicates := make([]string, 0, len(config.Filters)+len(config.IsolationFilters))
	for _, filter := range config.Filters {
		compiled := filter
		if compiled.TargetTable == "" {
			if len(compiled.RelationshipPath) > 0 {
				compiled.TargetTable = compiled.RelationshipPath[len(compiled.RelationshipPath)-1].ToTable
			} else if qualify {
				compiled.TargetTable = primary.Table
			}
		}
		predicates = append(predicates, CompileFilter(compiled))
	}

	for field, values := range config.IsolationFilters {
		if len(values) == 0 {
			continue
		}
		isolation := domain.Filter{Field: field, Operator: domain.OperatorIn, Value: toAnySlice(values)}
		if qualify {
			isolation.TargetTable = primary.Table
		}
		predicates = append(predicates, CompileFilter(isolation))
	}

	return predicates
}

func toAnySlice(values []string) []any {
	result := make([]any, len(values))
	for i, v := range values {
		result[i] = v
	}
	return result
}

func simpleFilters(config domain.ReportConfig) []domain.Filter {
	result := make([]domain.Filter, 0, len(config.Filters))
	for _, filter := range config.Filters {
		if len(filter.RelationshipPath) > 0 {
			continue
		}
		result = append(result, filter)
	}
	return result
}

func relatedTables(config domain.ReportConfig, primary domain.DataSource) []string {
	tables := make([]string, 0)
	seen := make(map[string]struct{})
	for _, source := range config.DataSources {
		if source.Table == primary.Table {
			continue
		}
		if _, dup := seen[source.Table]; dup {
			continue
		}
		seen[source.Table] = struct{}{}
		tables = append(tables, source.Table)
	}
	return tables
}

func assembleSQL(plan Plan, primary domain.DataSource, dims, measures []PlanColumn, joins, where []string) string {
	selects := make([]string, 0, len(dims)+len(measures)+len(metadataFields))
	groupBy := make([]string, 0, len(dims))

	for _, dim := range dims {
		selects = append(selects, fmt.Sprintf("%s AS %s", dim.Expression, dim.Alias))
		groupBy = append(groupBy, dim.Expression)
	}
	for _, measure := range measures {
		selects = append(selects, fmt.Sprintf("%s AS %s", measure.Expression, measure.Alias))
	}

	if plan.Kind == domain.RowKindRawRecord {
		aliased := make(map[string]struct{}, len(selects))
		for _, dim := range dims {
			aliased[dim.Alias] = struct{}{}
		}
		for _, measure := range measures {
			aliased[measure.Alias] = struct{}{}
		}
		extras := append(append([]string{}, metadataFields...), primary.SelectedFields...)
		for _, field := range extras {
			if _, dup := aliased[field]; dup {
				continue
			}
			aliased[field] = struct{}{}
			expr := field
			if len(joins) > 0 {
				expr = primary.Table + "." + field
			}
			selects = append(selects, fmt.Sprintf("%s AS %s", expr, field))
		}
	}

	if len(selects) == 0 {
		selects = append(selects, "*")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(selects, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(primary.Table)
	for _, join := range joins {
		sb.WriteString(" ")
		sb.WriteString(join)
	}
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	// Raw-record plans never group; aggregated plans group by every
	// non-aggregated selected expression.
	if plan.Kind == domain.RowKindAggregated && len(groupBy) > 0 && len(measures) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(groupBy, ", "))
	}
	if len(dims) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(dims[0].Alias)
		sb.WriteString(" ASC")
	}
	sb.WriteString(fmt.Sprintf(" LIMIT %d", plan.Limit))
	return sb.String()
}
