package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GouveiaZx/vendeuonline-sub004/pkg/authgw"
	"github.com/GouveiaZx/vendeuonline-sub004/pkg/users"
)

// NewRouter assembles the auth API. Route groups map directly to the
// gateway's route classes: the public group still passes through the
// gateway for rate limiting, the private group requires any identity,
// and the admin group requires the ADMIN role.
func NewRouter(h *Handlers, gate *authgw.Gate) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Group(func(pub chi.Router) {
			pub.Use(gate.Middleware(authgw.Options{AllowAnonymous: true}))
			pub.Post("/auth/login", h.Login)
			pub.Post("/auth/register", h.Register)
			pub.Get("/auth/google", h.GoogleLogin)
			pub.Get("/auth/google/callback", h.GoogleCallback)
		})
		api.Group(func(priv chi.Router) {
			priv.Use(gate.Middleware(authgw.Options{}))
			priv.Get("/auth/me", h.Me)
			priv.Post("/auth/logout", h.Logout)
		})
		api.Route("/admin", func(adm chi.Router) {
			adm.Use(gate.Middleware(authgw.Options{
				RequiredRoles: []users.Role{users.RoleAdmin},
			}))
			adm.Get("/authgw/stats", h.AdminStats)
			adm.Post("/authgw/block", h.AdminBlock)
		})
	})

	return r
}
