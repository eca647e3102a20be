package engine

import (
	"strconv"
	"strings"
	"time"

	"github.com/sporelab/reportql/internal/domain"
)

// ShapeRows maps a raw row set into the normalized dimension/measure/metadata
// triple. The producer tags the set as raw-record or aggregated; the shaper
// never re-infers that from field presence.
func ShapeRows(set domain.RawRowSet, plan Plan) []domain.ResultRow {
	rows := make([]domain.ResultRow, 0, len(set.Rows))
	for _, raw := range set.Rows {
		switch set.Kind {
		case domain.RowKindRawRecord:
			rows = append(rows, shapeRawRecord(raw, plan))
		default:
			rows = append(rows, shapeAggregated(raw, plan))
		}
	}
	return rows
}

// shapeRawRecord reads dimension and measure values directly by field name
// and carries the parent-identifier columns as metadata.
func shapeRawRecord(raw map[string]any, plan Plan) domain.ResultRow {
	row := domain.ResultRow{
		Dimensions: make(map[string]any, len(plan.Dimensions)),
		Measures:   make(map[string]any, len(plan.Measures)),
		Metadata:   make(map[string]any),
	}

	for _, dim := range plan.Dimensions {
		value, ok := raw[dim.Field]
		if !ok {
			value = raw[dim.Alias]
		}
		row.Dimensions[dim.Alias] = normalizeDimensionValue(value)
	}
	for _, measure := range plan.Measures {
		value, ok := raw[measure.Field]
		if !ok {
			value = raw[measure.Alias]
		}
		row.Measures[measure.Alias] = coerceNumeric(value)
	}
	for _, field := range metadataFields {
		if value, ok := raw[field]; ok {
			row.Metadata[field] = value
		}
	}
	return row
}

// shapeAggregated resolves each column by field name, then logical name,
// then the {aggregation}_{field} composite, before leaving the value
// undefined.
func shapeAggregated(raw map[string]any, plan Plan) domain.ResultRow {
	row := domain.ResultRow{
		Dimensions: make(map[string]any, len(plan.Dimensions)),
		Measures:   make(map[string]any, len(plan.Measures)),
		Metadata:   make(map[string]any),
	}

	for i, dim := range plan.Dimensions {
		value, ok := lookupValue(raw, dim.Field, dim.Alias, "")
		if !ok && i == 0 {
			// Structured procedure results key the grouping axis "dimension".
			value, _ = lookupValue(raw, "dimension", "", "")
		}
		row.Dimensions[dim.Alias] = normalizeDimensionValue(value)
	}
	for _, measure := range plan.Measures {
		composite := string(measure.Aggregation) + "_" + measure.Field
		value, _ := lookupValue(raw, measure.Field, measure.Alias, composite)
		row.Measures[measure.Alias] = coerceNumeric(value)
	}
	return row
}

func lookupValue(raw map[string]any, names ...string) (any, bool) {
	for _, name := range names {
		if name == "" {
			continue
		}
		if value, ok := raw[name]; ok {
			return value, true
		}
	}
	return nil, false
}

// coerceNumeric normalizes a measure value. Non-numeric-looking values
// (empty string, "-", nil) become nil rather than NaN so charts stay
// renderable.
func coerceNumeric(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" || trimmed == "-" {
			return nil
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil
		}
		return parsed
	default:
		return nil
	}
}

// normalizeDimensionValue truncates dates and timestamps to a calendar-date
// string so grouping stays consistent across execution stages.
func normalizeDimensionValue(value any) any {
	switch v := value.(type) {
	case time.Time:
		return v.Format("2006-01-02")
	case *time.Time:
		if v == nil {
			return nil
		}
		return v.Format("2006-01-02")
	case string:
		if parsed, ok := parseTimestamp(v); ok {
			return parsed.Format("2006-01-02")
		}
		return v
	default:
		return value
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func parseTimestamp(value string) (time.Time, bool) {
	trimmed := strings.TrimSpace(value)
	// Bare dates pass through untouched; only values carrying a time of day
	// need truncation.
	if len(trimmed) <= len("2006-01-02") {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
