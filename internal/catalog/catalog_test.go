package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/sporelab/reportql/internal/domain"
)

func TestTablesAreRegistered(t *testing.T) {
	c := New()
	tables := c.Tables()
	want := []string{"gasifier_observations", "petri_observations", "pilot_programs", "sites", "submissions"}
	if len(tables) != len(want) {
		t.Fatalf("expected %d tables, got %v", len(want), tables)
	}
	for i, name := range want {
		if tables[i] != name {
			t.Fatalf("expected table %q at position %d, got %q", name, i, tables[i])
		}
	}
}

func TestFieldsStaticFallback(t *testing.T) {
	c := New()
	fields, err := c.Fields(context.Background(), "petri_observations")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	byName := make(map[string]domain.Field, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}
	stage, ok := byName["petri_growth_stage"]
	if !ok {
		t.Fatal("expected petri_growth_stage in static fields")
	}
	if stage.Type != domain.FieldTypeEnum || len(stage.EnumValues) != 10 {
		t.Fatalf("expected 10 growth stage enum values, got %+v", stage)
	}
	if stage.EnumValues[0] != "None" || stage.EnumValues[9] != "TNTC" {
		t.Fatalf("growth stages out of order: %v", stage.EnumValues)
	}
}

func TestFieldsUnknownTable(t *testing.T) {
	c := New()
	if _, err := c.Fields(context.Background(), "no_such_table"); err == nil {
		t.Fatal("expected error for unknown table")
	}
}

type failingIntrospector struct{}

func (failingIntrospector) GetColumns(ctx context.Context, table string) ([]domain.Field, error) {
	return nil, errors.New("connection refused")
}

func TestFieldsIntrospectionFailureFallsBack(t *testing.T) {
	c := New(WithIntrospector(failingIntrospector{}))
	fields, err := c.Fields(context.Background(), "sites")
	if err != nil {
		t.Fatalf("introspection failure must fall back to static fields: %v", err)
	}
	if len(fields) == 0 {
		t.Fatal("expected static fields after introspection failure")
	}
}

type liveIntrospector struct{}

func (liveIntrospector) GetColumns(ctx context.Context, table string) ([]domain.Field, error) {
	return []domain.Field{
		{Name: "fungicide_used", Type: domain.FieldTypeText},
		{Name: "extra_column", Type: domain.FieldTypeText},
	}, nil
}

func TestFieldsMergesStaticEnumsOntoLiveColumns(t *testing.T) {
	c := New(WithIntrospector(liveIntrospector{}))
	fields, err := c.Fields(context.Background(), "petri_observations")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var fungicide domain.Field
	for _, f := range fields {
		if f.Name == "fungicide_used" {
			fungicide = f
		}
	}
	if fungicide.Type != domain.FieldTypeEnum {
		t.Fatalf("expected enum overlay on live column, got %s", fungicide.Type)
	}
	if len(fungicide.EnumValues) != 2 {
		t.Fatalf("expected Yes/No enum values, got %v", fungicide.EnumValues)
	}
}

func TestJoinPathDeclaredGraph(t *testing.T) {
	c := New()
	steps, ok := c.JoinPath("petri_observations", "sites")
	if !ok || len(steps) == 0 {
		t.Fatal("expected declared join path from petri_observations to sites")
	}
	if steps[0].JoinField != "site_id" || steps[0].ForeignField != "site_id" {
		t.Fatalf("unexpected join keys: %+v", steps[0])
	}
}

func TestJoinPathUndeclaredPair(t *testing.T) {
	c := New()
	if _, ok := c.JoinPath("sites", "gasifier_observations"); ok {
		t.Fatal("reverse paths are not declared; caller falls back to inference")
	}
}
