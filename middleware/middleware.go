// Package middleware provides HTTP authorization middleware for authsome.
package middleware

import (
	"encoding/json"

	"github.com/xraph/forge"

	"github.com/xraph/authsome"
	"github.com/xraph/authsome/claim"
	"github.com/xraph/authsome/id"
)

// Require enforces authorization. It resolves the acting account from the
// request context and checks whether it can perform the given action on
// the resource.
func Require(eng *authsome.Engine, action claim.Action, resource string) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			accountID, ok := resolveAccount(ctx)
			if !ok {
				return denyResponse(ctx)
			}

			_, err := eng.Enforce(ctx.Context(), &authsome.AuthRequest{
				AccountID: accountID,
				Action:    action,
				Resource:  resource,
			})
			if err != nil {
				return denyResponse(ctx)
			}
			return next(ctx)
		}
	}
}

// RequireAny allows the request if ANY of the checks pass.
func RequireAny(eng *authsome.Engine, checks ...authsome.AuthRequest) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			accountID, ok := resolveAccount(ctx)
			if !ok {
				return denyResponse(ctx)
			}
			for i := range checks {
				c := checks[i]
				c.AccountID = accountID
				if _, err := eng.Enforce(ctx.Context(), &c); err == nil {
					return next(ctx)
				}
			}
			return denyResponse(ctx)
		}
	}
}

// RequireAll allows the request only if ALL checks pass.
func RequireAll(eng *authsome.Engine, checks ...authsome.AuthRequest) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			accountID, ok := resolveAccount(ctx)
			if !ok {
				return denyResponse(ctx)
			}
			for i := range checks {
				c := checks[i]
				c.AccountID = accountID
				if _, err := eng.Enforce(ctx.Context(), &c); err != nil {
					return denyResponse(ctx)
				}
			}
			return next(ctx)
		}
	}
}

// resolveAccount extracts the acting account from the Forge user identity.
func resolveAccount(ctx forge.Context) (id.AccountID, bool) {
	userID := forge.UserIDFromContext(ctx.Context())
	if userID == "" {
		return id.Nil, false
	}
	accountID, err := id.ParseAccountID(userID)
	if err != nil {
		return id.Nil, false
	}
	return accountID, true
}

func denyResponse(ctx forge.Context) error {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.Response().WriteHeader(403)
	return json.NewEncoder(ctx.Response()).Encode(map[string]string{"error": "access denied"})
}
