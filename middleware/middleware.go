// Package middleware provides HTTP authorization middleware for Bastion.
package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/bastion"
)

// RequireCommand gates a route behind a namespaced command. The actor is
// the Forge user ID from the request context; requests without one resolve
// as an actor holding no roles and are denied. Denials answer 403 and
// failures to load authorization state answer 503.
func RequireCommand(eng *bastion.Engine, command string) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			result, err := eng.Check(ctx.Context(), resolveActor(ctx), command)
			if err != nil {
				return writeError(ctx, http.StatusInternalServerError, err.Error())
			}
			if !result.Allowed {
				return deny(ctx, result)
			}
			return next(ctx)
		}
	}
}

// RequireAny allows the request if ANY of the commands is allowed.
func RequireAny(eng *bastion.Engine, commands ...string) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			actor := resolveActor(ctx)
			var last *bastion.Result
			for _, c := range commands {
				result, err := eng.Check(ctx.Context(), actor, c)
				if err != nil {
					return writeError(ctx, http.StatusInternalServerError, err.Error())
				}
				if result.Allowed {
					return next(ctx)
				}
				last = result
			}
			if last == nil {
				return writeError(ctx, http.StatusForbidden, "access denied")
			}
			return deny(ctx, last)
		}
	}
}

// resolveActor extracts the actor from context (Forge user ID, if any).
func resolveActor(ctx forge.Context) string {
	return forge.UserIDFromContext(ctx.Context())
}

func deny(ctx forge.Context, result *bastion.Result) error {
	if result.Decision == bastion.DecisionDenyInfraFailure {
		return writeError(ctx, http.StatusServiceUnavailable, "authorization unavailable")
	}
	return writeError(ctx, http.StatusForbidden, "access denied: "+string(result.Decision))
}

func writeError(ctx forge.Context, status int, msg string) error {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.Response().WriteHeader(status)
	return json.NewEncoder(ctx.Response()).Encode(map[string]string{"error": msg})
}
