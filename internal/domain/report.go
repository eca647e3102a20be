package domain

import (
	"strings"

	"github.com/google/uuid"
)

// TimeGranularity represents the bucketing applied to temporal dimensions
type TimeGranularity string

const (
	GranularityDay     TimeGranularity = "day"
	GranularityWeek    TimeGranularity = "week"
	GranularityMonth   TimeGranularity = "month"
	GranularityQuarter TimeGranularity = "quarter"
	GranularityYear    TimeGranularity = "year"
)

// Aggregation represents a measure's aggregation function
type Aggregation string

const (
	AggregationSum   Aggregation = "sum"
	AggregationAvg   Aggregation = "avg"
	AggregationMin   Aggregation = "min"
	AggregationMax   Aggregation = "max"
	AggregationCount Aggregation = "count"
)

// ChartType identifies the visualization a report feeds. The engine only
// consults it for sample-data shaping and configuration tolerance checks.
type ChartType string

const (
	ChartTypeBar       ChartType = "bar"
	ChartTypeLine      ChartType = "line"
	ChartTypePie       ChartType = "pie"
	ChartTypeHeatmap   ChartType = "heatmap"
	ChartTypeBoxPlot   ChartType = "box_plot"
	ChartTypeScatter   ChartType = "scatter"
	ChartTypeHistogram ChartType = "histogram"
	ChartTypeTable     ChartType = "table"
)

// DataSource identifies a queryable table or view registered with the engine.
type DataSource struct {
	ID    string `json:"id"`
	Table string `json:"table"`
	// Fields is the ordered list of queryable fields. May be empty when the
	// catalog supplies the field list at plan time.
	Fields    []Field `json:"fields,omitempty"`
	IsPrimary bool    `json:"isPrimary"`
	// SelectedFields restricts the raw-record SELECT list when set.
	SelectedFields []string `json:"selectedFields,omitempty"`
}

// FieldRef points a dimension or measure at a field on a data source.
type FieldRef struct {
	SourceID string `json:"sourceId"`
	Field    string `json:"field"`
}

// Dimension is a categorical or temporal grouping axis.
type Dimension struct {
	ID          string          `json:"id"`
	Source      FieldRef        `json:"source"`
	DisplayName string          `json:"displayName,omitempty"`
	DataType    FieldType       `json:"dataType,omitempty"`
	Granularity TimeGranularity `json:"granularity,omitempty"`
	EnumValues  []string        `json:"enumValues,omitempty"`
}

// Measure is a numeric projection produced by an aggregation over a field.
type Measure struct {
	ID          string      `json:"id"`
	Source      FieldRef    `json:"source"`
	DisplayName string      `json:"displayName,omitempty"`
	Aggregation Aggregation `json:"aggregation"`
	DataType    FieldType   `json:"dataType,omitempty"`
	// Expression overrides the generated aggregate SQL when set.
	Expression string `json:"expression,omitempty"`
}

// Alias returns the logical column name the measure is selected under.
func (m Measure) Alias() string {
	if m.ID != "" {
		return m.ID
	}
	return string(m.Aggregation) + "_" + m.Source.Field
}

// Alias returns the logical column name the dimension is selected under.
func (d Dimension) Alias() string {
	if d.ID != "" {
		return d.ID
	}
	return d.Source.Field
}

// ReportConfig is the aggregate root consumed by the engine. It is built
// transiently per request and treated as immutable for one execution.
type ReportConfig struct {
	ID          uuid.UUID    `json:"id"`
	Name        string       `json:"name"`
	DataSources []DataSource `json:"dataSources"`
	Dimensions  []Dimension  `json:"dimensions"`
	Measures    []Measure    `json:"measures"`
	Filters     []Filter     `json:"filters"`
	// SegmentBy promotes field names to implicit grouping dimensions without
	// mutating the dimension list.
	SegmentBy []string `json:"segmentBy,omitempty"`
	// IsolationFilters restricts results to specific value sets per field for
	// drill-down views.
	IsolationFilters map[string][]string `json:"isolationFilters,omitempty"`
	ChartType        ChartType           `json:"chartType"`
	// Visualization settings are opaque to the engine.
	Visualization   map[string]any `json:"visualization,omitempty"`
	CacheTTLSeconds int            `json:"queryCacheTtl,omitempty"`
}

// PrimarySource returns the report's primary data source. When no source is
// explicitly marked primary the first one is treated as primary.
func (c ReportConfig) PrimarySource() (DataSource, bool) {
	if len(c.DataSources) == 0 {
		return DataSource{}, false
	}
	for _, ds := range c.DataSources {
		if ds.IsPrimary {
			return ds, true
		}
	}
	return c.DataSources[0], true
}

// SourceByID looks up a data source by id.
func (c ReportConfig) SourceByID(id string) (DataSource, bool) {
	for _, ds := range c.DataSources {
		if ds.ID == id {
			return ds, true
		}
	}
	return DataSource{}, false
}

// WithSource returns a new config with the data source appended. If the new
// source is marked primary, any existing primary flag is cleared so that at
// most one source is primary at any time.
func (c ReportConfig) WithSource(source DataSource) ReportConfig {
	sources := make([]DataSource, 0, len(c.DataSources)+1)
	for _, ds := range c.DataSources {
		if source.IsPrimary {
			ds.IsPrimary = false
		}
		sources = append(sources, ds)
	}
	sources = append(sources, source)
	next := c
	next.DataSources = sources
	return next
}

// WithoutSource returns a new config without the identified data source.
// Removing the primary source promotes the next remaining source.
func (c ReportConfig) WithoutSource(id string) ReportConfig {
	sources := make([]DataSource, 0, len(c.DataSources))
	removedPrimary := false
	for _, ds := range c.DataSources {
		if ds.ID == id {
			if ds.IsPrimary {
				removedPrimary = true
			}
			continue
		}
		sources = append(sources, ds)
	}
	if removedPrimary && len(sources) > 0 {
		sources[0].IsPrimary = true
	}
	next := c
	next.DataSources = sources
	return next
}

// ConsolidatedDimensions de-duplicates dimensions referencing the same field,
// preferring the more descriptive display name. Order of first appearance is
// preserved.
func (c ReportConfig) ConsolidatedDimensions() []Dimension {
	result := make([]Dimension, 0, len(c.Dimensions))
	index := make(map[string]int)
	for _, dim := range c.Dimensions {
		key := dim.Source.Field
		pos, seen := index[key]
		if !seen {
			index[key] = len(result)
			result = append(result, dim)
			continue
		}
		if moreDescriptive(dim, result[pos]) {
			dim.ID = result[pos].ID
			result[pos] = dim
		}
	}
	return result
}

// moreDescriptive prefers a display name that differs from the raw field
// name; among two descriptive names the longer wins.
func moreDescriptive(candidate, current Dimension) bool {
	candidateNamed := isDescriptiveName(candidate.DisplayName, candidate.Source.Field)
	currentNamed := isDescriptiveName(current.DisplayName, current.Source.Field)
	if candidateNamed != currentNamed {
		return candidateNamed
	}
	return len(candidate.DisplayName) > len(current.DisplayName)
}

func isDescriptiveName(displayName, field string) bool {
	trimmed := strings.TrimSpace(displayName)
	return trimmed != "" && !strings.EqualFold(trimmed, field)
}

// HasAggregation reports whether any measure carries an aggregation.
func (c ReportConfig) HasAggregation() bool {
	for _, m := range c.Measures {
		if m.Aggregation != "" {
			return true
		}
	}
	return false
}

// CrossSource reports whether the report references fields outside the
// primary data source through its dimensions or measures.
func (c ReportConfig) CrossSource() bool {
	if len(c.DataSources) <= 1 {
		return false
	}
	primary, ok := c.PrimarySource()
	if !ok {
		return false
	}
	for _, d := range c.Dimensions {
		if d.Source.SourceID != "" && d.Source.SourceID != primary.ID {
			return true
		}
	}
	for _, m := range c.Measures {
		if m.Source.SourceID != "" && m.Source.SourceID != primary.ID {
			return true
		}
	}
	return false
}

// HasRelationshipFilters reports whether any filter must be reached through a
// join path rather than the primary table.
func (c ReportConfig) HasRelationshipFilters() bool {
	for _, f := range c.Filters {
		if len(f.RelationshipPath) > 0 {
			return true
		}
	}
	return false
}
