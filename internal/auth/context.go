package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sporelab/reportql/internal/domain"
)

type contextKey string

const executionScopeKey contextKey = "executionScope"

// ContextWithScope returns a new context that carries the authenticated
// execution scope.
func ContextWithScope(ctx context.Context, scope domain.ExecutionScope) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, executionScopeKey, scope)
}

// ScopeFromContext retrieves the authenticated execution scope from the
// context, if any.
func ScopeFromContext(ctx context.Context) (domain.ExecutionScope, bool) {
	if ctx == nil {
		return domain.ExecutionScope{}, false
	}
	value := ctx.Value(executionScopeKey)
	if value == nil {
		return domain.ExecutionScope{}, false
	}
	scope, ok := value.(domain.ExecutionScope)
	if !ok {
		return domain.ExecutionScope{}, false
	}
	if scope.CompanyID == uuid.Nil {
		return domain.ExecutionScope{}, false
	}
	return scope, true
}

// EnforceCompanyScope ensures the provided company matches the authenticated
// scope when present.
func EnforceCompanyScope(ctx context.Context, companyID uuid.UUID) error {
	if companyID == uuid.Nil {
		return fmt.Errorf("companyId is required")
	}
	scope, ok := ScopeFromContext(ctx)
	if !ok {
		return nil
	}
	if scope.CompanyID != companyID {
		return fmt.Errorf("companyId %s does not match authenticated scope", companyID)
	}
	return nil
}
