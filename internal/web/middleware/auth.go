package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/sheetshare/internal/config"
	"github.com/JonMunkholm/sheetshare/internal/core"
)

// APIKeyAuth returns middleware that resolves the X-API-Key header to an
// actor and stores it in the request context.
//
// If RequireAPIKey is false, requests without a recognised key act as
// LocalActor with the publisher role. If RequireAPIKey is true, a missing key
// is rejected with 401 and an unknown key with 403.
func APIKeyAuth(cfg *config.SecurityConfig, keys []config.APIKey) func(http.Handler) http.Handler {
	local := core.Actor{ID: cfg.LocalActor, Role: core.RolePublisher}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-API-Key")

			actor, ok := lookupAPIKey(apiKey, keys)
			if !ok && !cfg.RequireAPIKey {
				actor, ok = local, true
			}

			if !ok {
				if apiKey == "" {
					slog.Warn("auth: missing API key",
						"path", r.URL.Path,
						"method", r.Method,
						"remote_addr", r.RemoteAddr,
					)
					http.Error(w, `{"error":"missing API key","code":"AUTH001"}`, http.StatusUnauthorized)
					return
				}
				slog.Warn("auth: invalid API key",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				http.Error(w, `{"error":"invalid API key","code":"AUTH001"}`, http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(core.ContextWithActor(r.Context(), actor)))
		})
	}
}

// RequirePublisher rejects requests whose actor lacks the publisher role.
func RequirePublisher(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := core.ActorFromContext(r.Context())
		switch {
		case !actor.Authenticated():
			http.Error(w, `{"error":"not authenticated","code":"AUTH001"}`, http.StatusUnauthorized)
			return
		case !actor.CanPublish():
			slog.Warn("auth: publisher role required",
				"path", r.URL.Path,
				"actor", actor.ID,
				"role", actor.Role,
			)
			http.Error(w, `{"error":"publisher role required","code":"AUTH002"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// lookupAPIKey finds the actor for key. Every configured key is compared so
// the time taken does not depend on which key matches.
func lookupAPIKey(key string, keys []config.APIKey) (core.Actor, bool) {
	if key == "" {
		return core.Actor{}, false
	}

	match := -1
	for i, k := range keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(k.Key)) == 1 {
			match = i
		}
	}
	if match < 0 {
		return core.Actor{}, false
	}
	return core.Actor{ID: keys[match].ActorID, Role: core.Role(keys[match].Role)}, true
}
