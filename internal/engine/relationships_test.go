package engine

import (
	"testing"

	"github.com/sporelab/reportql/internal/domain"
)

func TestResolveRelationshipsDeduplicatesSteps(t *testing.T) {
	step := domain.RelationshipStep{
		FromTable:    "petri_observations",
		ToTable:      "submissions",
		JoinField:    "submission_id",
		ForeignField: "submission_id",
	}
	filters := []domain.Filter{
		{Field: "temperature", RelationshipPath: []domain.RelationshipStep{step}},
		{Field: "humidity", RelationshipPath: []domain.RelationshipStep{step}},
	}

	joins, tables := ResolveRelationships(filters, "petri_observations")
	if len(joins) != 1 {
		t.Fatalf("expected 1 join clause, got %d: %v", len(joins), joins)
	}
	want := "INNER JOIN submissions ON petri_observations.submission_id = submissions.submission_id"
	if joins[0] != want {
		t.Fatalf("expected %q, got %q", want, joins[0])
	}
	if _, ok := tables["petri_observations"]; !ok {
		t.Fatal("primary table missing from required table set")
	}
	if _, ok := tables["submissions"]; !ok {
		t.Fatal("joined table missing from required table set")
	}
}

func TestResolveRelationshipsNoFilters(t *testing.T) {
	joins, tables := ResolveRelationships(nil, "sites")
	if len(joins) != 0 {
		t.Fatalf("expected no join clauses, got %v", joins)
	}
	if len(tables) != 1 {
		t.Fatalf("expected only the primary table, got %v", tables)
	}
}

func TestResolveRelationshipsHonorsJoinType(t *testing.T) {
	filters := []domain.Filter{{
		Field: "name",
		RelationshipPath: []domain.RelationshipStep{{
			FromTable:    "submissions",
			ToTable:      "sites",
			JoinField:    "site_id",
			ForeignField: "site_id",
			JoinType:     domain.JoinTypeLeft,
		}},
	}}
	joins, _ := ResolveRelationships(filters, "submissions")
	want := "LEFT JOIN sites ON submissions.site_id = sites.site_id"
	if len(joins) != 1 || joins[0] != want {
		t.Fatalf("expected %q, got %v", want, joins)
	}
}
