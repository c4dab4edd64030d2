// Package a2aclient provides the outbound A2A transport: agent card
// resolution and JSON-RPC message exchange, unary or server-streamed.
package a2aclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/agentmesh/agentmesh/internal/domain"
	"github.com/agentmesh/agentmesh/internal/port/a2a"
)

// CardResolver fetches agent cards from their well-known endpoint.
type CardResolver struct {
	httpClient *http.Client
}

// NewCardResolver creates a resolver with a bounded fetch timeout.
func NewCardResolver(timeout time.Duration) *CardResolver {
	return &CardResolver{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Resolve fetches and decodes the agent card at the given base address.
// Failures wrap domain.ErrCardResolution so the management surface can map
// them to an upstream-failure response.
func (r *CardResolver) Resolve(ctx context.Context, address string) (*a2a.AgentCard, error) {
	url := strings.TrimRight(address, "/") + a2a.WellKnownPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCardResolution, err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", domain.ErrCardResolution, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch %s: status %d", domain.ErrCardResolution, url, resp.StatusCode)
	}

	var card a2a.AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("%w: decode card from %s: %v", domain.ErrCardResolution, url, err)
	}
	if card.Name == "" {
		return nil, fmt.Errorf("%w: card from %s has no name", domain.ErrCardResolution, url)
	}

	return &card, nil
}
