package engine

import (
	"testing"

	"github.com/sporelab/reportql/internal/domain"
)

func TestCompileFilterEquality(t *testing.T) {
	got := CompileFilter(domain.Filter{
		Field:    "fungicide_used",
		Operator: domain.OperatorEquals,
		Value:    "Yes",
	})
	want := "fungicide_used = 'Yes'"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestCompileFilterBetweenString(t *testing.T) {
	got := CompileFilter(domain.Filter{
		Field:    "growth_index",
		Operator: domain.OperatorBetween,
		Value:    "10,20",
	})
	want := "growth_index >= 10 AND growth_index <= 20"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestCompileFilterBetweenSlice(t *testing.T) {
	got := CompileFilter(domain.Filter{
		Field:    "temperature",
		Operator: domain.OperatorRange,
		Value:    []any{15.5, 30},
	})
	want := "temperature >= 15.5 AND temperature <= 30"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestCompileFilterBetweenMalformedFallsBackToEquality(t *testing.T) {
	got := CompileFilter(domain.Filter{
		Field:    "growth_index",
		Operator: domain.OperatorBetween,
		Value:    "justone",
	})
	want := "growth_index = 'justone'"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestCompileFilterIn(t *testing.T) {
	got := CompileFilter(domain.Filter{
		Field:    "growth_stage",
		Operator: domain.OperatorIn,
		Value:    []string{"High", "Very High"},
	})
	want := "growth_stage IN ('High', 'Very High')"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestCompileFilterContainsUsesILIKE(t *testing.T) {
	got := CompileFilter(domain.Filter{
		Field:    "notes",
		Operator: domain.OperatorContains,
		Value:    "o'neill",
	})
	want := "notes ILIKE '%o''neill%'"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestCompileFilterTargetTableQualifiesField(t *testing.T) {
	got := CompileFilter(domain.Filter{
		Field:       "name",
		TargetTable: "sites",
		Operator:    domain.OperatorEquals,
		Value:       "North Greenhouse",
	})
	want := "sites.name = 'North Greenhouse'"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestCompileFilterUnknownOperatorFallsBackToEquality(t *testing.T) {
	got := CompileFilter(domain.Filter{
		Field:    "placement",
		Operator: "approximately",
		Value:    "corner",
	})
	want := "placement = 'corner'"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestCompileFilterNullChecks(t *testing.T) {
	if got := CompileFilter(domain.Filter{Field: "notes", Operator: domain.OperatorIsNull}); got != "notes IS NULL" {
		t.Fatalf("unexpected is_null predicate: %q", got)
	}
	if got := CompileFilter(domain.Filter{Field: "notes", Operator: domain.OperatorIsNotNull}); got != "notes IS NOT NULL" {
		t.Fatalf("unexpected is_not_null predicate: %q", got)
	}
}
