package domain

// FieldType represents the semantic type of a queryable field
type FieldType string

const (
	FieldTypeText      FieldType = "text"
	FieldTypeNumeric   FieldType = "numeric"
	FieldTypeInteger   FieldType = "integer"
	FieldTypeBoolean   FieldType = "boolean"
	FieldTypeDate      FieldType = "date"
	FieldTypeTimestamp FieldType = "timestamp"
	FieldTypeEnum      FieldType = "enum"
	FieldTypeUUID      FieldType = "uuid"
	FieldTypeJSON      FieldType = "json"
)

// Field describes a queryable column exposed by a data source
type Field struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName,omitempty"`
	Type        FieldType `json:"type"`
	Nullable    bool      `json:"nullable"`
	// EnumValues lists the known values when Type is enum.
	EnumValues []string `json:"enumValues,omitempty"`
}

// IsTemporal reports whether the field can carry a time granularity.
func (f Field) IsTemporal() bool {
	return f.Type == FieldTypeDate || f.Type == FieldTypeTimestamp
}

// IsNumericLike reports whether the field can be aggregated numerically.
func (f Field) IsNumericLike() bool {
	return f.Type == FieldTypeNumeric || f.Type == FieldTypeInteger
}
