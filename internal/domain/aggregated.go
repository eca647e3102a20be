package domain

// RowKind tags a raw row set with the shape its rows carry. The execution
// strategy decides the kind once per plan; the shaper never infers it from
// field presence.
type RowKind string

const (
	// RowKindRawRecord marks full entity records fetched without grouping.
	RowKindRawRecord RowKind = "raw_record"
	// RowKindAggregated marks pre-aggregated rows keyed by logical names.
	RowKindAggregated RowKind = "aggregated"
)

// RawRowSet couples raw result rows with the kind their producer assigned.
type RawRowSet struct {
	Kind RowKind
	Rows []map[string]any
}

// ResultRow is one normalized output row.
type ResultRow struct {
	Dimensions map[string]any `json:"dimensions"`
	Measures   map[string]any `json:"measures"`
	Metadata   map[string]any `json:"metadata"`
}

// ResultMetadata echoes the dimensions, measures, and filters an execution
// used, so consumers can label series without re-reading the config.
type ResultMetadata struct {
	Dimensions []string `json:"dimensions"`
	Measures   []string `json:"measures"`
	Filters    []string `json:"filters"`
	ChartType  string   `json:"chartType,omitempty"`
}

// AggregatedData is the uniform result shape regardless of which execution
// stage produced it.
type AggregatedData struct {
	Rows            []ResultRow    `json:"data"`
	TotalCount      int            `json:"totalCount"`
	FilteredCount   int            `json:"filteredCount"`
	ExecutionTimeMS int64          `json:"executionTime"`
	CacheHit        bool           `json:"cacheHit"`
	Metadata        ResultMetadata `json:"metadata"`
}
