package web

import (
	"net/http"

	"github.com/JonMunkholm/sheetshare/internal/core"
)

// actorFrom returns the actor resolved by the auth middleware.
func actorFrom(r *http.Request) core.Actor {
	return core.ActorFromContext(r.Context())
}
