package engine

import (
	"testing"

	"github.com/sporelab/reportql/internal/domain"
)

func TestSampleHeatmapCoversFullGrid(t *testing.T) {
	gen := NewSeededSampleGenerator(1)
	data := gen.Generate(domain.ReportConfig{ChartType: domain.ChartTypeHeatmap})

	if len(data.Rows) != 7*6 {
		t.Fatalf("expected 42 grid cells, got %d", len(data.Rows))
	}
	for _, row := range data.Rows {
		value, ok := row.Measures["value"].(float64)
		if !ok {
			t.Fatalf("expected float64 measure, got %T", row.Measures["value"])
		}
		if value < 0 || value > 100 {
			t.Fatalf("heatmap value %f out of 0-100", value)
		}
		if row.Metadata["sample"] != true {
			t.Fatal("sample rows must be flagged in metadata")
		}
	}
}

func TestSampleBoxPlotGroups(t *testing.T) {
	gen := NewSeededSampleGenerator(2)
	data := gen.Generate(domain.ReportConfig{ChartType: domain.ChartTypeBoxPlot})

	groups := make(map[any]int)
	for _, row := range data.Rows {
		groups[row.Dimensions["group"]]++
	}
	if len(groups) != 5 {
		t.Fatalf("expected 5 box plot groups, got %d", len(groups))
	}
	for group, count := range groups {
		if count != 50 {
			t.Fatalf("group %v has %d samples, expected 50", group, count)
		}
	}
}

func TestSampleScatterGroupCount(t *testing.T) {
	gen := NewSeededSampleGenerator(3)
	data := gen.Generate(domain.ReportConfig{ChartType: domain.ChartTypeScatter})

	if len(data.Rows) != 200 {
		t.Fatalf("expected 200 scatter points, got %d", len(data.Rows))
	}
	groups := make(map[any]struct{})
	for _, row := range data.Rows {
		groups[row.Dimensions["group"]] = struct{}{}
	}
	if len(groups) != 4 {
		t.Fatalf("expected 4 scatter groups, got %d", len(groups))
	}
}

func TestSampleHistogramSize(t *testing.T) {
	gen := NewSeededSampleGenerator(4)
	data := gen.Generate(domain.ReportConfig{ChartType: domain.ChartTypeHistogram})
	if len(data.Rows) != 500 {
		t.Fatalf("expected 500 histogram samples, got %d", len(data.Rows))
	}
}

func TestSampleGenericUsesEnumValues(t *testing.T) {
	gen := NewSeededSampleGenerator(5)
	stages := []string{"None", "Trace", "Low", "High", "TNTC"}
	config := domain.ReportConfig{
		ChartType: domain.ChartTypeBar,
		Dimensions: []domain.Dimension{{
			ID:         "stage",
			Source:     domain.FieldRef{Field: "growth_stage"},
			EnumValues: stages,
		}},
		Measures: []domain.Measure{{
			ID:          "avg_index",
			Source:      domain.FieldRef{Field: "growth_index"},
			Aggregation: domain.AggregationAvg,
		}},
	}

	data := gen.Generate(config)
	if len(data.Rows) != len(stages) {
		t.Fatalf("expected one row per enum value, got %d", len(data.Rows))
	}
	for i, row := range data.Rows {
		if row.Dimensions["stage"] != stages[i] {
			t.Fatalf("expected category %q, got %v", stages[i], row.Dimensions["stage"])
		}
		if _, ok := row.Measures["avg_index"]; !ok {
			t.Fatalf("expected measure keyed by alias, got %v", row.Measures)
		}
	}
}

func TestSampleCountsMatchRows(t *testing.T) {
	gen := NewSeededSampleGenerator(6)
	data := gen.Generate(domain.ReportConfig{ChartType: domain.ChartTypePie})
	if data.TotalCount != len(data.Rows) || data.FilteredCount != len(data.Rows) {
		t.Fatalf("counts must match row count: total=%d filtered=%d rows=%d",
			data.TotalCount, data.FilteredCount, len(data.Rows))
	}
	if data.CacheHit {
		t.Fatal("sample data must not claim a cache hit")
	}
}
