package engine

import (
	"testing"
	"time"

	"github.com/sporelab/reportql/internal/domain"
)

func TestShapeAggregatedRows(t *testing.T) {
	plan := Plan{
		Kind: domain.RowKindAggregated,
		Dimensions: []PlanColumn{
			{Alias: "growth_stage", Field: "growth_stage"},
		},
		Measures: []PlanColumn{
			{Alias: "avg_growth_index", Field: "growth_index", Aggregation: domain.AggregationAvg},
		},
	}
	set := domain.RawRowSet{
		Kind: domain.RowKindAggregated,
		Rows: []map[string]any{
			{"growth_stage": "High", "avg_growth_index": "42.5"},
			{"growth_stage": "Low", "avg_growth_index": int64(7)},
		},
	}

	rows := ShapeRows(set, plan)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Dimensions["growth_stage"] != "High" {
		t.Fatalf("unexpected dimension value: %v", rows[0].Dimensions["growth_stage"])
	}
	if rows[0].Measures["avg_growth_index"] != 42.5 {
		t.Fatalf("expected string measure coerced to 42.5, got %v", rows[0].Measures["avg_growth_index"])
	}
	if rows[1].Measures["avg_growth_index"] != 7.0 {
		t.Fatalf("expected int measure coerced to 7.0, got %v", rows[1].Measures["avg_growth_index"])
	}
}

func TestShapeAggregatedCompositeFallback(t *testing.T) {
	plan := Plan{
		Kind: domain.RowKindAggregated,
		Measures: []PlanColumn{
			{Alias: "m1", Field: "growth_index", Aggregation: domain.AggregationSum},
		},
	}
	set := domain.RawRowSet{
		Kind: domain.RowKindAggregated,
		Rows: []map[string]any{{"sum_growth_index": 12.0}},
	}

	rows := ShapeRows(set, plan)
	if rows[0].Measures["m1"] != 12.0 {
		t.Fatalf("expected composite key fallback to yield 12.0, got %v", rows[0].Measures["m1"])
	}
}

func TestShapeAggregatedGenericDimensionKey(t *testing.T) {
	plan := Plan{
		Kind: domain.RowKindAggregated,
		Dimensions: []PlanColumn{
			{Alias: "site", Field: "site_name"},
		},
	}
	set := domain.RawRowSet{
		Kind: domain.RowKindAggregated,
		Rows: []map[string]any{{"dimension": "North Greenhouse"}},
	}

	rows := ShapeRows(set, plan)
	if rows[0].Dimensions["site"] != "North Greenhouse" {
		t.Fatalf("expected generic dimension key fallback, got %v", rows[0].Dimensions["site"])
	}
}

func TestShapeRawRecordCarriesMetadata(t *testing.T) {
	plan := Plan{
		Kind: domain.RowKindRawRecord,
		Dimensions: []PlanColumn{
			{Alias: "petri_code", Field: "petri_code"},
		},
	}
	set := domain.RawRowSet{
		Kind: domain.RowKindRawRecord,
		Rows: []map[string]any{{
			"petri_code":     "P-14",
			"observation_id": "obs-1",
			"submission_id":  "sub-1",
			"unrelated":      "x",
		}},
	}

	rows := ShapeRows(set, plan)
	if rows[0].Dimensions["petri_code"] != "P-14" {
		t.Fatalf("unexpected dimension: %v", rows[0].Dimensions)
	}
	if rows[0].Metadata["observation_id"] != "obs-1" || rows[0].Metadata["submission_id"] != "sub-1" {
		t.Fatalf("expected parent identifiers in metadata, got %v", rows[0].Metadata)
	}
	if _, ok := rows[0].Metadata["unrelated"]; ok {
		t.Fatal("non-identifier columns must not leak into metadata")
	}
}

func TestCoerceNumeric(t *testing.T) {
	cases := []struct {
		in   any
		want any
	}{
		{nil, nil},
		{"", nil},
		{"-", nil},
		{"not a number", nil},
		{"3.25", 3.25},
		{int(4), 4.0},
		{int64(5), 5.0},
		{float64(6.5), 6.5},
	}
	for _, tc := range cases {
		if got := coerceNumeric(tc.in); got != tc.want {
			t.Fatalf("coerceNumeric(%v): expected %v, got %v", tc.in, tc.want, got)
		}
	}
}

func TestNormalizeDimensionValueTruncatesTimestamps(t *testing.T) {
	ts := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	if got := normalizeDimensionValue(ts); got != "2025-03-14" {
		t.Fatalf("expected truncated time.Time, got %v", got)
	}
	if got := normalizeDimensionValue("2025-03-14T15:09:26Z"); got != "2025-03-14" {
		t.Fatalf("expected truncated timestamp string, got %v", got)
	}
	if got := normalizeDimensionValue("2025-03-14"); got != "2025-03-14" {
		t.Fatalf("bare dates must pass through, got %v", got)
	}
	if got := normalizeDimensionValue("High"); got != "High" {
		t.Fatalf("non-temporal strings must pass through, got %v", got)
	}
}
