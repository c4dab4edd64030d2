package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/agentmesh/agentmesh/internal/domain"
	"github.com/agentmesh/agentmesh/internal/port/a2a"
)

// fakeResolver maps addresses to cards. Safe for concurrent use.
type fakeResolver struct {
	cards map[string]*a2a.AgentCard
	err   error

	mu    sync.Mutex
	calls int
}

func (r *fakeResolver) Resolve(_ context.Context, address string) (*a2a.AgentCard, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	card, ok := r.cards[address]
	if !ok {
		return nil, fmt.Errorf("%w: no card at %s", domain.ErrCardResolution, address)
	}
	return card, nil
}

// fakeTransport is a no-op transport for registration tests.
type fakeTransport struct{}

func (fakeTransport) SendMessage(context.Context, a2a.MessageSendParams) (a2a.SendResult, error) {
	return nil, errors.New("not implemented")
}

func (fakeTransport) StreamMessage(context.Context, a2a.MessageSendParams) (<-chan a2a.StreamItem, error) {
	return nil, errors.New("not implemented")
}

func newTestDirectory(resolver Resolver) *Directory {
	return New(resolver, func(a2a.AgentCard) Transport { return fakeTransport{} })
}

func card(name, url string) *a2a.AgentCard {
	return &a2a.AgentCard{Name: name, Description: name + " agent", URL: url}
}

// checkConsistent verifies the lockstep invariant across the three
// collections.
func checkConsistent(t *testing.T, d *Directory) {
	t.Helper()
	d.mu.RLock()
	defer d.mu.RUnlock()

	if len(d.conns) != len(d.cards) {
		t.Fatalf("conns (%d) and cards (%d) out of sync", len(d.conns), len(d.cards))
	}
	if len(d.addresses) != len(d.cards) {
		t.Fatalf("addresses (%d) and cards (%d) out of sync", len(d.addresses), len(d.cards))
	}
	for name, c := range d.cards {
		if _, ok := d.conns[name]; !ok {
			t.Fatalf("card %q has no connection", name)
		}
		found := false
		for _, a := range d.addresses {
			if a == c.URL {
				found = true
			}
		}
		if !found {
			t.Fatalf("card %q address %q missing from address list", name, c.URL)
		}
	}
}

func TestDirectoryConsistencyAcrossMutations(t *testing.T) {
	resolver := &fakeResolver{cards: map[string]*a2a.AgentCard{
		"http://a": card("Alpha", "http://a"),
		"http://b": card("Beta", "http://b"),
		"http://c": card("Gamma", "http://c"),
	}}
	d := newTestDirectory(resolver)
	ctx := context.Background()

	for _, addr := range []string{"http://a", "http://b", "http://c"} {
		if _, err := d.AddByAddress(ctx, addr); err != nil {
			t.Fatalf("add %s: %v", addr, err)
		}
		checkConsistent(t, d)
	}

	if err := d.Deregister(ctx, "Beta"); err != nil {
		t.Fatalf("deregister: %v", err)
	}
	checkConsistent(t, d)

	if _, err := d.AddByAddress(ctx, "http://b"); err != nil {
		t.Fatalf("re-add: %v", err)
	}
	checkConsistent(t, d)
}

func TestDirectoryConcurrentMutationKeepsLockstep(t *testing.T) {
	const agents = 8
	cards := make(map[string]*a2a.AgentCard, agents)
	for i := 0; i < agents; i++ {
		addr := fmt.Sprintf("http://agent-%d", i)
		cards[addr] = card(fmt.Sprintf("Agent%d", i), addr)
	}
	d := newTestDirectory(&fakeResolver{cards: cards})
	ctx := context.Background()

	// Each agent gets a mutating goroutine plus readers racing against it.
	var wg sync.WaitGroup
	for i := 0; i < agents; i++ {
		addr := fmt.Sprintf("http://agent-%d", i)
		name := fmt.Sprintf("Agent%d", i)

		wg.Add(3)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if _, err := d.AddByAddress(ctx, addr); err != nil {
					t.Errorf("add %s: %v", addr, err)
				}
				if err := d.Deregister(ctx, name); err != nil {
					t.Errorf("deregister %s: %v", name, err)
				}
			}
			if _, err := d.AddByAddress(ctx, addr); err != nil {
				t.Errorf("final add %s: %v", addr, err)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				d.List()
				d.Summary()
				d.Len()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if conn, ok := d.Resolve(name); ok && conn.Card().Name != name {
					t.Errorf("resolve %s returned card %q", name, conn.Card().Name)
				}
			}
		}()
	}
	wg.Wait()

	checkConsistent(t, d)
	if d.Len() != agents {
		t.Fatalf("expected %d agents after final adds, got %d", agents, d.Len())
	}
}

func TestDirectoryConcurrentSameAddressSingleWinner(t *testing.T) {
	resolver := &fakeResolver{cards: map[string]*a2a.AgentCard{
		"http://a": card("Alpha", "http://a"),
	}}
	d := newTestDirectory(resolver)

	const callers = 16
	start := make(chan struct{})
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := d.AddByAddress(context.Background(), "http://a")
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	var succeeded, rejected int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrAlreadyRegistered):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one winning add, got %d", succeeded)
	}
	if rejected != callers-1 {
		t.Fatalf("expected %d rejected adds, got %d", callers-1, rejected)
	}
	if d.Len() != 1 {
		t.Fatalf("expected 1 registered agent, got %d", d.Len())
	}
	checkConsistent(t, d)
}

func TestDirectoryListOrderIndependent(t *testing.T) {
	names := func(d *Directory) []string {
		var out []string
		for _, info := range d.List() {
			out = append(out, info.Name+"|"+info.Description)
		}
		sort.Strings(out)
		return out
	}

	d1 := newTestDirectory(nil)
	d1.Register(*card("Alpha", "http://a"))
	d1.Register(*card("Beta", "http://b"))

	d2 := newTestDirectory(nil)
	d2.Register(*card("Beta", "http://b"))
	d2.Register(*card("Alpha", "http://a"))

	got1, got2 := names(d1), names(d2)
	if len(got1) != 2 || len(got2) != 2 {
		t.Fatalf("expected 2 entries each, got %d and %d", len(got1), len(got2))
	}
	for i := range got1 {
		if got1[i] != got2[i] {
			t.Fatalf("listings differ: %v vs %v", got1, got2)
		}
	}
}

func TestDirectoryDuplicateAddRejected(t *testing.T) {
	resolver := &fakeResolver{cards: map[string]*a2a.AgentCard{
		"http://a": card("Alpha", "http://a"),
	}}
	d := newTestDirectory(resolver)
	ctx := context.Background()

	if _, err := d.AddByAddress(ctx, "http://a"); err != nil {
		t.Fatalf("first add: %v", err)
	}
	_, err := d.AddByAddress(ctx, "http://a")
	if !errors.Is(err, domain.ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
	if d.Len() != 1 {
		t.Fatalf("directory size changed on duplicate add: %d", d.Len())
	}
}

func TestDirectoryDeregisterUnknownFailsClosed(t *testing.T) {
	d := newTestDirectory(nil)
	d.Register(*card("Alpha", "http://a"))

	err := d.Deregister(context.Background(), "Nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if d.Len() != 1 {
		t.Fatalf("directory changed on failed deregister: %d", d.Len())
	}
	checkConsistent(t, d)
}

func TestDeregisterReleasesAddressByCardURL(t *testing.T) {
	resolver := &fakeResolver{cards: map[string]*a2a.AgentCard{
		"http://proxy": card("Alpha", "http://canonical"),
	}}
	d := newTestDirectory(resolver)
	ctx := context.Background()

	if _, err := d.AddByAddress(ctx, "http://proxy"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := d.Deregister(ctx, "Alpha"); err != nil {
		t.Fatalf("deregister: %v", err)
	}
	if d.Len() != 0 {
		t.Fatalf("agent not removed, size %d", d.Len())
	}

	// Address release keys on the card's declared URL, so a registration
	// address that differs from it remains claimed after removal.
	_, err := d.AddByAddress(ctx, "http://proxy")
	if !errors.Is(err, domain.ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered for the stale address, got %v", err)
	}
}

func TestDirectoryCardResolutionFailure(t *testing.T) {
	resolver := &fakeResolver{err: fmt.Errorf("%w: connection refused", domain.ErrCardResolution)}
	d := newTestDirectory(resolver)

	_, err := d.AddByAddress(context.Background(), "http://down")
	if !errors.Is(err, domain.ErrCardResolution) {
		t.Fatalf("expected ErrCardResolution, got %v", err)
	}
	if d.Len() != 0 {
		t.Fatalf("failed add must not register anything, size %d", d.Len())
	}
}

func TestDirectorySummary(t *testing.T) {
	d := newTestDirectory(nil)
	if d.Summary() != "" {
		t.Fatalf("empty directory should have empty summary, got %q", d.Summary())
	}

	d.Register(*card("Alpha", "http://a"))
	want := "- Alpha: Alpha agent"
	if d.Summary() != want {
		t.Fatalf("expected %q, got %q", want, d.Summary())
	}

	if err := d.Deregister(context.Background(), "Alpha"); err != nil {
		t.Fatalf("deregister: %v", err)
	}
	if d.Summary() != "" {
		t.Fatalf("summary not recomputed after deregister: %q", d.Summary())
	}
}

func TestDirectoryResolve(t *testing.T) {
	d := newTestDirectory(nil)
	d.Register(*card("Alpha", "http://a"))

	conn, ok := d.Resolve("Alpha")
	if !ok || conn == nil {
		t.Fatal("expected connection for Alpha")
	}
	if conn.Card().Name != "Alpha" {
		t.Fatalf("wrong card: %q", conn.Card().Name)
	}
	if _, ok := d.Resolve("Beta"); ok {
		t.Fatal("unexpected connection for unregistered name")
	}
}
