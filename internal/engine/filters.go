package engine

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/sporelab/reportql/internal/domain"
)

// CompileFilter converts a typed filter into a SQL predicate fragment. The
// operator map is total: an unrecognized operator degrades to equality, and
// that degradation is logged because it silently changes query semantics.
// Scalar values are interpolated, never parametrized; the DDL/DML guard at
// the execution boundary is the required companion of this function.
func CompileFilter(filter domain.Filter) string {
	field := filter.Field
	if filter.TargetTable != "" {
		field = filter.TargetTable + "." + filter.Field
	}

	switch filter.Operator {
	case domain.OperatorEquals:
		return fmt.Sprintf("%s = %s", field, sqlLiteral(filter.Value))
	case domain.OperatorNotEquals:
		return fmt.Sprintf("%s != %s", field, sqlLiteral(filter.Value))
	case domain.OperatorGreaterThan:
		return fmt.Sprintf("%s > %s", field, sqlLiteral(filter.Value))
	case domain.OperatorGreaterThanOrEqual:
		return fmt.Sprintf("%s >= %s", field, sqlLiteral(filter.Value))
	case domain.OperatorLessThan:
		return fmt.Sprintf("%s < %s", field, sqlLiteral(filter.Value))
	case domain.OperatorLessThanOrEqual:
		return fmt.Sprintf("%s <= %s", field, sqlLiteral(filter.Value))
	case domain.OperatorContains:
		return fmt.Sprintf("%s ILIKE '%%%s%%'", field, escapeString(stringValue(filter.Value)))
	case domain.OperatorNotContains:
		return fmt.Sprintf("%s NOT ILIKE '%%%s%%'", field, escapeString(stringValue(filter.Value)))
	case domain.OperatorStartsWith:
		return fmt.Sprintf("%s ILIKE '%s%%'", field, escapeString(stringValue(filter.Value)))
	case domain.OperatorEndsWith:
		return fmt.Sprintf("%s ILIKE '%%%s'", field, escapeString(stringValue(filter.Value)))
	case domain.OperatorIn:
		return fmt.Sprintf("%s IN (%s)", field, literalList(filter.Value))
	case domain.OperatorNotIn:
		return fmt.Sprintf("%s NOT IN (%s)", field, literalList(filter.Value))
	case domain.OperatorIsNull:
		return fmt.Sprintf("%s IS NULL", field)
	case domain.OperatorIsNotNull:
		return fmt.Sprintf("%s IS NOT NULL", field)
	case domain.OperatorBetween, domain.OperatorRange:
		low, high, ok := rangeBounds(filter.Value)
		if !ok {
			// Malformed range values degenerate to equality on the raw value.
			return fmt.Sprintf("%s = %s", field, sqlLiteral(filter.Value))
		}
		return fmt.Sprintf("%s >= %s AND %s <= %s", field, low, field, high)
	default:
		log.Printf("[engine] unrecognized filter operator %q on field %s, falling back to equality", filter.Operator, filter.Field)
		return fmt.Sprintf("%s = %s", field, sqlLiteral(filter.Value))
	}
}

// rangeBounds extracts the two bounds of a between/range value, which may be
// a comma-delimited "a,b" string or a two-element array.
func rangeBounds(value any) (string, string, bool) {
	switch v := value.(type) {
	case string:
		parts := strings.SplitN(v, ",", 2)
		if len(parts) != 2 {
			return "", "", false
		}
		return sqlLiteral(strings.TrimSpace(parts[0])), sqlLiteral(strings.TrimSpace(parts[1])), true
	case []any:
		if len(v) != 2 {
			return "", "", false
		}
		return sqlLiteral(v[0]), sqlLiteral(v[1]), true
	case []string:
		if len(v) != 2 {
			return "", "", false
		}
		return sqlLiteral(v[0]), sqlLiteral(v[1]), true
	default:
		return "", "", false
	}
}

// literalList renders an in/not_in value, which may be a scalar or an array,
// as a literal list.
func literalList(value any) string {
	switch v := value.(type) {
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, sqlLiteral(item))
		}
		return strings.Join(parts, ", ")
	case []string:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, sqlLiteral(item))
		}
		return strings.Join(parts, ", ")
	default:
		return sqlLiteral(v)
	}
}

// sqlLiteral renders a Go value as a SQL literal. Numeric-looking strings
// render bare so range comparisons stay numeric; everything else is quoted
// with embedded single quotes doubled.
func sqlLiteral(value any) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return strconv.FormatFloat(n, 'f', -1, 64)
		}
		return "'" + escapeString(v) + "'"
	default:
		return "'" + escapeString(fmt.Sprintf("%v", v)) + "'"
	}
}

func stringValue(value any) string {
	if value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}

func escapeString(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}
