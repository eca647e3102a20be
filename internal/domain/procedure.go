package domain

// ProcedureMetric is one aggregated field in a structured procedure payload.
type ProcedureMetric struct {
	Field    string `json:"field"`
	Function string `json:"function"`
}

// ProcedureFilter is one predicate in a structured procedure payload.
type ProcedureFilter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// ProcedurePayload is the normalized request shape for the pre-declared
// aggregation procedure.
type ProcedurePayload struct {
	Entity     string            `json:"entity"`
	Dimensions []string          `json:"dimensions"`
	Metrics    []ProcedureMetric `json:"metrics"`
	Filters    []ProcedureFilter `json:"filters"`
}

// ProcedureResponse is the structured procedure's reply envelope.
type ProcedureResponse struct {
	Success bool             `json:"success"`
	Data    []map[string]any `json:"data"`
	Message string           `json:"message,omitempty"`
}
