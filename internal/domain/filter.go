package domain

// FilterOperator enumerates the predicate operators the compiler accepts.
type FilterOperator string

const (
	OperatorEquals             FilterOperator = "equals"
	OperatorNotEquals          FilterOperator = "not_equals"
	OperatorGreaterThan        FilterOperator = "greater_than"
	OperatorGreaterThanOrEqual FilterOperator = "greater_than_or_equal"
	OperatorLessThan           FilterOperator = "less_than"
	OperatorLessThanOrEqual    FilterOperator = "less_than_or_equal"
	OperatorContains           FilterOperator = "contains"
	OperatorNotContains        FilterOperator = "not_contains"
	OperatorStartsWith         FilterOperator = "starts_with"
	OperatorEndsWith           FilterOperator = "ends_with"
	OperatorIn                 FilterOperator = "in"
	OperatorNotIn              FilterOperator = "not_in"
	OperatorIsNull             FilterOperator = "is_null"
	OperatorIsNotNull          FilterOperator = "is_not_null"
	OperatorBetween            FilterOperator = "between"
	OperatorRange              FilterOperator = "range"
)

// JoinType enumerates SQL join kinds for relationship steps.
type JoinType string

const (
	JoinTypeInner JoinType = "INNER"
	JoinTypeLeft  JoinType = "LEFT"
	JoinTypeRight JoinType = "RIGHT"
)

// RelationshipStep is one hop of a join path between two tables.
type RelationshipStep struct {
	FromTable    string   `json:"fromTable"`
	ToTable      string   `json:"toTable"`
	JoinField    string   `json:"joinField"`
	ForeignField string   `json:"foreignField"`
	JoinType     JoinType `json:"joinType,omitempty"`
}

// EffectiveJoinType returns the step's join kind, defaulting to INNER.
func (s RelationshipStep) EffectiveJoinType() JoinType {
	if s.JoinType == "" {
		return JoinTypeInner
	}
	return s.JoinType
}

// Filter is a single typed predicate against a field. Value may be a scalar,
// a comma-joined pair for between/range, or an array for in/not_in.
type Filter struct {
	ID       string         `json:"id"`
	Field    string         `json:"field"`
	SourceID string         `json:"sourceId,omitempty"`
	Operator FilterOperator `json:"operator"`
	Value    any            `json:"value,omitempty"`
	// RelationshipPath describes how to reach the filter's table from the
	// primary table when the field is not on it.
	RelationshipPath []RelationshipStep `json:"relationshipPath,omitempty"`
	// TargetTable qualifies the field when it originates from a joined table.
	TargetTable string `json:"targetTable,omitempty"`
}
