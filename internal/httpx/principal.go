package httpx

import (
	"context"
	"net/http"
	"strings"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"

	RoleAdmin = "ADMIN"
)

// Principal is the caller as asserted by the gateway in front of the API.
type Principal struct {
	ID   string
	Role string
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

type principalKey struct{}

func WithPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := Principal{
			ID:   strings.TrimSpace(r.Header.Get(HeaderUserID)),
			Role: strings.ToUpper(strings.TrimSpace(r.Header.Get(HeaderUserRole))),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
	})
}

func PrincipalFrom(ctx context.Context) Principal {
	p, _ := ctx.Value(principalKey{}).(Principal)
	return p
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFrom(r.Context())
		switch {
		case p.ID == "":
			writeProblem(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		case !p.IsAdmin():
			writeProblem(w, http.StatusForbidden, "forbidden", "admin role required")
		default:
			next.ServeHTTP(w, r)
		}
	})
}
