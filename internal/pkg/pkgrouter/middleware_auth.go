package pkgrouter

import (
	"context"
	"net/http"
	"strings"

	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/pkg/pkgerror"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/pkg/pkglog"
)

// Authenticator resolves a bearer token to the identified owner.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (owner string, ok bool)
}

// StaticTokens is an Authenticator backed by a fixed token -> owner table.
type StaticTokens map[string]string

func (s StaticTokens) Authenticate(_ context.Context, token string) (string, bool) {
	owner, ok := s[token]
	if !ok || strings.TrimSpace(owner) == "" {
		return "", false
	}
	return strings.TrimSpace(owner), true
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found {
		return ""
	}
	if !strings.EqualFold(scheme, "Bearer") && !strings.EqualFold(scheme, "Token") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Authenticated rejects requests without a known bearer token and stores the
// resolved owner in the request context (see GetOwner).
func Authenticated(auth Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" || auth == nil {
				writeJSON(w, errorResponse{Message: "unauthorized", Code: pkgerror.CodeUnauthorized.String()}, http.StatusUnauthorized)
				return
			}

			owner, ok := auth.Authenticate(r.Context(), token)
			if !ok {
				writeJSON(w, errorResponse{Message: "unauthorized", Code: pkgerror.CodeUnauthorized.String()}, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(pkglog.SetOwner(r.Context(), owner)))
		})
	}
}

// GetOwner returns the owner resolved by the Authenticated middleware.
func GetOwner(ctx context.Context) string {
	return pkglog.GetOwner(ctx)
}
