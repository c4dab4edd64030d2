package http

import (
	"net/http"

	"github.com/agentmesh/agentmesh/internal/directory"
	"github.com/agentmesh/agentmesh/internal/port/a2a"
	"github.com/agentmesh/agentmesh/internal/port/artifactstore"
	"github.com/agentmesh/agentmesh/internal/service"
)

const maxBodySize = 1 << 20

// Handlers bundles the dependencies of all HTTP endpoints.
type Handlers struct {
	dir           *directory.Directory
	executor      *service.Executor
	artifacts     artifactstore.Store
	card          a2a.AgentCard
	engineHealthy func() bool
}

// NewHandlers creates the handler set.
func NewHandlers(dir *directory.Directory, executor *service.Executor, artifacts artifactstore.Store, card a2a.AgentCard) *Handlers {
	return &Handlers{dir: dir, executor: executor, artifacts: artifacts, card: card}
}

// SetEngineHealth attaches an availability check for the decision engine,
// surfaced through the health endpoint.
func (h *Handlers) SetEngineHealth(check func() bool) {
	h.engineHealthy = check
}

// Health reports process liveness, the registered agent count, and the
// decision engine's availability when a check is attached.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{
		"status": "ok",
		"agents": h.dir.Len(),
	}
	if h.engineHealthy != nil {
		if h.engineHealthy() {
			payload["llm"] = "ok"
		} else {
			payload["llm"] = "unavailable"
			payload["status"] = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, payload)
}

// ListAgents returns the registered agents as {name, description} pairs.
func (h *Handlers) ListAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.dir.List())
}

type addAgentRequest struct {
	Address string `json:"address"`
}

// AddAgent resolves the card at the given address and registers the agent.
func (h *Handlers) AddAgent(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[addAgentRequest](w, r, maxBodySize)
	if !ok {
		return
	}
	if !requireField(w, req.Address, "address") {
		return
	}

	card, err := h.dir.AddByAddress(r.Context(), req.Address)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, directory.AgentInfo{
		Name:        card.Name,
		Description: card.Description,
	})
}

// RemoveAgent deregisters the named agent.
func (h *Handlers) RemoveAgent(w http.ResponseWriter, r *http.Request) {
	name := urlParam(r, "name")
	if !requireField(w, name, "name") {
		return
	}

	if err := h.dir.Deregister(r.Context(), name); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetArtifact serves a stored file artifact by its name.
func (h *Handlers) GetArtifact(w http.ResponseWriter, r *http.Request) {
	name := urlParam(r, "name")
	if !requireField(w, name, "name") {
		return
	}

	artifact, found, err := h.artifacts.Load(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "artifact not found")
		return
	}

	contentType := artifact.MIMEType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifact.Data)
}

// AgentCard serves this router's own card at the well-known path.
func (h *Handlers) AgentCard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.card)
}
