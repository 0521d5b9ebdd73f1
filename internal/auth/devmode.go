package auth

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// DefaultOrganizationID is the seed organization used in development.
var DefaultOrganizationID = uuid.MustParse("00000000-0000-0000-0000-000000000099")

// DevPrincipal is the synthetic identity injected when auth is disabled.
func DevPrincipal() *Principal {
	return &Principal{
		Sub:            "dev-user",
		OrganizationID: DefaultOrganizationID,
		Scopes: map[string]bool{
			"openid":    true,
			ScopeRead:   true,
			ScopeReplay: true,
			ScopeAdmin:  true,
		},
		Roles:    map[string]bool{RoleAdmin: true},
		ClientID: "dev",
		Issuer:   "dev",
		Email:    "dev@reviewgate.local",
	}
}

// DevModeMiddleware injects DevPrincipal into every request.
// Use only when AUTH_ENABLED=false.
func DevModeMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	logger.Warn("DEV MODE: authentication disabled, all requests get an admin principal")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithPrincipal(r.Context(), DevPrincipal())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
