package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/jihoonkang/ptbook/libs/auth"
	"github.com/jihoonkang/ptbook/libs/httpx"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/model"
)

type ctxKey int

const ctxKeyActor ctxKey = iota

// ActorFromContext returns the authenticated caller; the zero Actor means
// the request never passed RequireAuth.
func ActorFromContext(ctx context.Context) model.Actor {
	a, _ := ctx.Value(ctxKeyActor).(model.Actor)
	return a
}

// RequireAuth verifies the Bearer token and stashes the caller as an Actor.
func RequireAuth(secret string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(raw, "Bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			claims, err := auth.ParseAndVerifyHS256(strings.TrimPrefix(raw, "Bearer "), secret)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			actor := model.Actor{ID: claims.Sub, Role: model.Role(claims.Role)}
			if actor.ID == "" || (actor.Role != model.RoleMember && actor.Role != model.RoleTrainer) {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyActor, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireRole gates a handler to one role; used for member-only checkout
// endpoints.
func requireRole(role model.Role, w http.ResponseWriter, r *http.Request) (model.Actor, bool) {
	actor := ActorFromContext(r.Context())
	if actor.Role != role {
		http.Error(w, "forbidden", http.StatusForbidden)
		return model.Actor{}, false
	}
	return actor, true
}
