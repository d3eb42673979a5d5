package identity

import (
	"net/http"
	"strings"

	"github.com/goliatone/go-router"
)

// AuthContextKey is where middleware stores the resolved AuthContext in
// router locals.
var AuthContextKey = "identity"

// bearerScheme is the only accepted Authorization scheme.
const bearerScheme = "Bearer"

// RequireAuth resolves the bearer token on each request and rejects the
// request when it is missing or invalid. The resolved AuthContext lands both
// in router locals and in the request context.
func RequireAuth(resolver *Resolver) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			auth, err := resolver.Resolve(ctx.Context(), bearerToken(ctx))
			if err != nil {
				return ctx.JSON(http.StatusUnauthorized, map[string]string{
					"error": "missing or invalid access token",
				})
			}

			ctx.Locals(AuthContextKey, auth)
			ctx.SetContext(WithAuthContext(ctx.Context(), auth))

			return next(ctx)
		}
	}
}

// RequireAdmin is RequireAuth plus an admin grant check.
func RequireAdmin(resolver *Resolver) router.MiddlewareFunc {
	requireAuth := RequireAuth(resolver)
	return func(next router.HandlerFunc) router.HandlerFunc {
		return requireAuth(func(ctx router.Context) error {
			auth, ok := AuthContextFrom(ctx.Context())
			if !ok || !auth.IsAdmin {
				return ctx.JSON(http.StatusForbidden, map[string]string{
					"error": "administrator access required",
				})
			}

			return next(ctx)
		})
	}
}

// RequireApprovedAuthor is RequireAuth plus a check that the caller is an
// author in good standing.
func RequireApprovedAuthor(resolver *Resolver) router.MiddlewareFunc {
	requireAuth := RequireAuth(resolver)
	return func(next router.HandlerFunc) router.HandlerFunc {
		return requireAuth(func(ctx router.Context) error {
			auth, ok := AuthContextFrom(ctx.Context())
			if !ok || !auth.IsAuthor {
				return ctx.JSON(http.StatusForbidden, map[string]string{
					"error": "approved author access required",
				})
			}

			return next(ctx)
		})
	}
}

// bearerToken pulls the raw access token from the Authorization header.
func bearerToken(ctx router.Context) string {
	header := ctx.GetString(router.HeaderAuthorization, "")
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], bearerScheme) {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
