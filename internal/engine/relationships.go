package engine

import (
	"fmt"

	"github.com/sporelab/reportql/internal/domain"
)

// ResolveRelationships walks the relationship paths of the given filters and
// produces the JOIN clauses needed to reach them from the primary table.
// A join between a given (fromTable, toTable) pair is emitted once; output
// preserves insertion order. The returned table set always contains the
// primary table.
func ResolveRelationships(filters []domain.Filter, primaryTable string) ([]string, map[string]struct{}) {
	joinClauses := make([]string, 0)
	requiredTables := map[string]struct{}{primaryTable: {}}
	seen := make(map[string]struct{})

	for _, filter := range filters {
		for _, step := range filter.RelationshipPath {
			key := step.FromTable + "->" + step.ToTable
			if _, exists := seen[key]; exists {
				continue
			}
			seen[key] = struct{}{}
			joinClauses = append(joinClauses, joinClause(step))
			requiredTables[step.FromTable] = struct{}{}
			requiredTables[step.ToTable] = struct{}{}
		}
	}

	return joinClauses, requiredTables
}

func joinClause(step domain.RelationshipStep) string {
	return fmt.Sprintf("%s JOIN %s ON %s.%s = %s.%s",
		step.EffectiveJoinType(), step.ToTable,
		step.FromTable, step.JoinField,
		step.ToTable, step.ForeignField)
}
