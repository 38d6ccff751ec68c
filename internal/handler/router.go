package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/research-relay/internal/handler/relay"
	middlewarePkg "github.com/zhouzirui/research-relay/internal/middleware"
	"github.com/zhouzirui/research-relay/internal/session"
	"github.com/zhouzirui/research-relay/pkg/utils"
)

// NewRouter wires HTTP routes to the session manager. Paths other than /ws and
// /healthz are served from staticDir; an empty staticDir disables the fallback.
func NewRouter(manager *session.Manager, staticDir string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	relay.NewWebSocketHandler(manager).RegisterRoutes(r)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, utils.HealthStatus{
			Status:   "ok",
			Sessions: manager.Registry().Count(),
		})
	})

	if staticDir == "" {
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			utils.RespondError(w, http.StatusNotFound, "not found")
		})
		return r
	}

	// 前端构建产物（dist）作为兜底路由。
	r.Handle("/*", http.FileServer(http.Dir(staticDir)))

	return r
}
