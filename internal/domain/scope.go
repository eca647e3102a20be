package domain

import (
	"github.com/google/uuid"
)

// ExecutionScope carries the per-request identity and slicing context a
// report runs under. It feeds the cache key so two users never share a
// cached result.
type ExecutionScope struct {
	UserID    uuid.UUID `json:"userId"`
	CompanyID uuid.UUID `json:"companyId"`
	// ProgramIDs restricts execution to a set of programs; order is not
	// significant for caching.
	ProgramIDs []string `json:"programIds,omitempty"`
	DateStart  string   `json:"dateStart,omitempty"`
	DateEnd    string   `json:"dateEnd,omitempty"`
	Timezone   string   `json:"timezone,omitempty"`
}
