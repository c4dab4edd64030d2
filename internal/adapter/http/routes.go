package http

import (
	"github.com/go-chi/chi/v5"

	"github.com/agentmesh/agentmesh/internal/port/a2a"
)

// MountRoutes registers all routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)
	r.Get(a2a.WellKnownPath, h.AgentCard)

	// Task submission protocol.
	r.Post("/", h.HandleRPC)

	// Directory management surface.
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/agents", h.ListAgents)
		r.Post("/agents", h.AddAgent)
		r.Delete("/agents/{name}", h.RemoveAgent)

		r.Get("/artifacts/{name}", h.GetArtifact)
	})
}
