// Package directory maintains the process-wide registry of remote agents:
// their connections, capability cards, and registered addresses. The
// registry is shared by design so that management-surface mutations are
// immediately visible to in-flight and future delegations.
package directory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/agentmesh/agentmesh/internal/domain"
	"github.com/agentmesh/agentmesh/internal/port/a2a"
	"github.com/agentmesh/agentmesh/internal/port/broadcast"
)

// Resolver fetches an agent card from a base address. Satisfied by the
// a2aclient card resolver.
type Resolver interface {
	Resolve(ctx context.Context, address string) (*a2a.AgentCard, error)
}

// DialFunc creates the transport for a freshly registered card.
type DialFunc func(card a2a.AgentCard) Transport

// AgentInfo is the caller-visible directory listing entry.
type AgentInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Directory is the shared agent registry. The connections, cards, and
// addresses collections are kept in lockstep: an entry exists in one iff it
// exists in all. A single mutex scopes every mutation end to end.
type Directory struct {
	resolver Resolver
	dial     DialFunc
	events   broadcast.Broadcaster

	mu        sync.RWMutex
	conns     map[string]*Connection
	cards     map[string]a2a.AgentCard
	addresses []string
	summary   string

	group singleflight.Group
}

// New creates an empty directory.
func New(resolver Resolver, dial DialFunc) *Directory {
	return &Directory{
		resolver: resolver,
		dial:     dial,
		conns:    make(map[string]*Connection),
		cards:    make(map[string]a2a.AgentCard),
	}
}

// SetBroadcaster attaches an optional event broadcaster for directory changes.
func (d *Directory) SetBroadcaster(b broadcast.Broadcaster) {
	d.events = b
}

// AddByAddress resolves the card served at address and registers it.
// Registering an address twice fails with domain.ErrAlreadyRegistered;
// unreachable or malformed cards fail with domain.ErrCardResolution.
// Concurrent adds for the same address share one card fetch.
func (d *Directory) AddByAddress(ctx context.Context, address string) (*a2a.AgentCard, error) {
	address = strings.TrimRight(strings.TrimSpace(address), "/")
	if address == "" {
		return nil, fmt.Errorf("%w: empty address", domain.ErrCardResolution)
	}

	d.mu.RLock()
	registered := d.hasAddressLocked(address)
	d.mu.RUnlock()
	if registered {
		return nil, domain.ErrAlreadyRegistered
	}

	v, err, _ := d.group.Do(address, func() (any, error) {
		return d.resolver.Resolve(ctx, address)
	})
	if err != nil {
		return nil, err
	}
	card := v.(*a2a.AgentCard)

	d.mu.Lock()
	defer d.mu.Unlock()

	// Re-check under the write lock: another add may have won the race.
	if d.hasAddressLocked(address) {
		return nil, domain.ErrAlreadyRegistered
	}

	d.registerLocked(*card, address)

	slog.Info("agent registered", "name", card.Name, "address", address)
	if d.events != nil {
		d.events.Publish(ctx, broadcast.SubjectAgentRegistered, AgentInfo{
			Name:        card.Name,
			Description: card.Description,
		})
	}
	return card, nil
}

// Register inserts or replaces the connection and card keyed by card.Name.
// Re-registering a name replaces the prior connection.
func (d *Directory) Register(card a2a.AgentCard) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.registerLocked(card, strings.TrimRight(card.URL, "/"))
}

// registerLocked must be called with d.mu held for writing.
func (d *Directory) registerLocked(card a2a.AgentCard, address string) {
	if prev, ok := d.cards[card.Name]; ok {
		// Replacing a name drops its old address from the list.
		d.removeAddressLocked(strings.TrimRight(prev.URL, "/"))
	}
	d.conns[card.Name] = NewConnection(card, d.dial(card))
	d.cards[card.Name] = card
	if address != "" && !d.hasAddressLocked(address) {
		d.addresses = append(d.addresses, address)
	}
	d.summary = d.buildSummaryLocked()
}

// Deregister removes the named agent, its card, and its address. Removing an
// unknown name fails with domain.ErrNotFound and leaves the directory
// unchanged.
func (d *Directory) Deregister(ctx context.Context, name string) error {
	d.mu.Lock()
	conn, ok := d.conns[name]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrNotFound, name)
	}

	delete(d.conns, name)
	delete(d.cards, name)
	// Address release follows the card's declared URL. A registration
	// address that differs from it stays claimed until restart.
	d.removeAddressLocked(strings.TrimRight(conn.Card().URL, "/"))
	d.summary = d.buildSummaryLocked()
	d.mu.Unlock()

	slog.Info("agent deregistered", "name", name)
	if d.events != nil {
		d.events.Publish(ctx, broadcast.SubjectAgentRemoved, AgentInfo{Name: name})
	}
	return nil
}

// Resolve returns the connection registered under name.
func (d *Directory) Resolve(name string) (*Connection, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	conn, ok := d.conns[name]
	return conn, ok
}

// List returns a snapshot of {name, description} pairs. Order is not
// guaranteed across add/remove cycles.
func (d *Directory) List() []AgentInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()

	infos := make([]AgentInfo, 0, len(d.cards))
	for _, card := range d.cards {
		infos = append(infos, AgentInfo{Name: card.Name, Description: card.Description})
	}
	return infos
}

// Summary returns the cached roster text used to prime the decision engine:
// one "name: description" line per registered agent.
func (d *Directory) Summary() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.summary
}

// Len returns the number of registered agents.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.cards)
}

// buildSummaryLocked must be called with d.mu held.
func (d *Directory) buildSummaryLocked() string {
	lines := make([]string, 0, len(d.cards))
	for _, card := range d.cards {
		lines = append(lines, fmt.Sprintf("- %s: %s", card.Name, card.Description))
	}
	return strings.Join(lines, "\n")
}

func (d *Directory) hasAddressLocked(address string) bool {
	for _, a := range d.addresses {
		if a == address {
			return true
		}
	}
	return false
}

func (d *Directory) removeAddressLocked(address string) {
	for i, a := range d.addresses {
		if a == address {
			d.addresses = append(d.addresses[:i], d.addresses[i+1:]...)
			return
		}
	}
}
