package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/sporelab/reportql/internal/auth"
	"github.com/sporelab/reportql/internal/domain"
)

// ScopeMiddleware lifts the caller's identity headers into an execution
// scope on the request context. Requests without a company header pass
// through unscoped; handlers decide whether that is acceptable.
func ScopeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		companyID, err := uuid.Parse(strings.TrimSpace(r.Header.Get("X-Company-Id")))
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		scope := domain.ExecutionScope{
			CompanyID: companyID,
			DateStart: strings.TrimSpace(r.Header.Get("X-Date-Start")),
			DateEnd:   strings.TrimSpace(r.Header.Get("X-Date-End")),
			Timezone:  strings.TrimSpace(r.Header.Get("X-Timezone")),
		}
		if userID, err := uuid.Parse(strings.TrimSpace(r.Header.Get("X-User-Id"))); err == nil {
			scope.UserID = userID
		}
		if raw := strings.TrimSpace(r.Header.Get("X-Program-Ids")); raw != "" {
			for _, id := range strings.Split(raw, ",") {
				if id = strings.TrimSpace(id); id != "" {
					scope.ProgramIDs = append(scope.ProgramIDs, id)
				}
			}
		}

		next.ServeHTTP(w, r.WithContext(auth.ContextWithScope(r.Context(), scope)))
	})
}
