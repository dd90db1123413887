package middleware

import (
	"net/http"

	"bracket-pool-services/internal/metrics"
)

// CronAuthorizer is satisfied by *cron.Authorizer.
type CronAuthorizer interface {
	IsAuthorized(r *http.Request) bool
}

// CronAuth lets a request through only when the authorizer approves it.
// The reason for a denial is never disclosed to the caller.
func CronAuth(authorizer CronAuthorizer, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed := authorizer.IsAuthorized(r)
			m.CronAuth(allowed)
			if !allowed {
				writeAuthError(w, http.StatusUnauthorized, "Invalid cron token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
