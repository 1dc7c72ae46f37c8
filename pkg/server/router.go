// pkg/server/router.go
package server

import (
	"net/http"

	chimd "github.com/go-chi/chi/v5/middleware"

	"github.com/nanobridge/nanobridge/pkg/middleware/auth"
	"github.com/nanobridge/nanobridge/pkg/middleware/logger"
	"github.com/nanobridge/nanobridge/pkg/middleware/metrics"
	"github.com/nanobridge/nanobridge/pkg/transport/httpx"
)

// BuildRouter mounts the fixed routes of one bridge instance.
// Provided to fx with ParamTags (`name:"metrics"` on m) and ResultTags
// (`name:"app"`); see bridgefx.
func BuildRouter(
	a *auth.Middleware,
	lm *logger.Middleware,
	m http.Handler,
	h *Handlers,
	r httpx.Router,
) http.Handler {
	r.Use(chimd.RequestID)
	r.Use(lm.Middleware())
	r.Use(metrics.Collect())

	r.Post("/api/nanobridge/converse", http.HandlerFunc(h.Converse))
	r.Post("/api/nanobridge/register", a.RequireBearer(http.HandlerFunc(h.Register)))
	r.Post("/api/webhook/{webhookID}", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		h.Webhook(w, req, r.URLParam(req, "webhookID"))
	}))
	r.Get("/healthz", http.HandlerFunc(h.Health))
	r.Handle(http.MethodGet, "/metrics", m)

	return r.Mux()
}
