package directory

import (
	"context"
	"fmt"

	"github.com/agentmesh/agentmesh/internal/domain"
	"github.com/agentmesh/agentmesh/internal/port/a2a"
)

// Transport is the outbound message exchange a Connection relies on. It is
// satisfied by the a2aclient adapter and by fakes in tests.
type Transport interface {
	SendMessage(ctx context.Context, params a2a.MessageSendParams) (a2a.SendResult, error)
	StreamMessage(ctx context.Context, params a2a.MessageSendParams) (<-chan a2a.StreamItem, error)
}

// TaskObserver receives every task event observed during an exchange with a
// remote agent. It is called once per event and not after a final event.
type TaskObserver interface {
	OnTaskEvent(ev a2a.Event, card a2a.AgentCard)
}

// NopObserver ignores all task events.
type NopObserver struct{}

func (NopObserver) OnTaskEvent(a2a.Event, a2a.AgentCard) {}

// Connection binds one registered agent card to one transport handle. It is
// created on registration and discarded on removal; never shared across
// agents.
type Connection struct {
	card      a2a.AgentCard
	transport Transport
}

// NewConnection creates a connection for the given card.
func NewConnection(card a2a.AgentCard, transport Transport) *Connection {
	return &Connection{card: card, transport: transport}
}

// Card returns the agent card this connection is bound to.
func (c *Connection) Card() a2a.AgentCard {
	return c.card
}

// Send delivers a message to the remote agent and normalizes the response.
// When streaming is requested and the card declares support, the exchange is
// server-streamed: every task event is handed to the observer and the most
// recently observed task snapshot is returned once a final-flagged event
// arrives or the stream ends. A terminal Message ends the exchange
// immediately. Otherwise a single blocking send is issued.
func (c *Connection) Send(ctx context.Context, params a2a.MessageSendParams, observer TaskObserver, streaming bool) (a2a.SendResult, error) {
	if observer == nil {
		observer = NopObserver{}
	}

	if streaming && c.card.Capabilities.Streaming {
		return c.sendStreaming(ctx, params, observer)
	}
	return c.sendBlocking(ctx, params, observer)
}

func (c *Connection) sendBlocking(ctx context.Context, params a2a.MessageSendParams, observer TaskObserver) (a2a.SendResult, error) {
	result, err := c.transport.SendMessage(ctx, params)
	if err != nil {
		return nil, err
	}

	switch v := result.(type) {
	case *a2a.Message:
		return v, nil
	case *a2a.Task:
		observer.OnTaskEvent(v, c.card)
		return v, nil
	default:
		return nil, fmt.Errorf("%w: unexpected send result %T", domain.ErrTransport, result)
	}
}

func (c *Connection) sendStreaming(ctx context.Context, params a2a.MessageSendParams, observer TaskObserver) (a2a.SendResult, error) {
	items, err := c.transport.StreamMessage(ctx, params)
	if err != nil {
		return nil, err
	}

	var snapshot *a2a.Task
	for item := range items {
		if item.Err != nil {
			return nil, item.Err
		}

		// A Message ends the interaction; everything else is part of the
		// Task + TaskUpdate cycle.
		if msg, ok := item.Event.(*a2a.Message); ok {
			return msg, nil
		}

		observer.OnTaskEvent(item.Event, c.card)
		snapshot = mergeEvent(snapshot, item.Event)

		if a2a.IsFinal(item.Event) {
			break
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: stream aborted: %v", domain.ErrTransport, err)
	}
	if snapshot == nil {
		return nil, fmt.Errorf("%w: stream ended without a task", domain.ErrTransport)
	}
	return snapshot, nil
}

// mergeEvent folds a stream event into the running task snapshot.
func mergeEvent(snapshot *a2a.Task, ev a2a.Event) *a2a.Task {
	switch v := ev.(type) {
	case *a2a.Task:
		copied := *v
		return &copied
	case *a2a.TaskStatusUpdateEvent:
		if snapshot == nil {
			snapshot = &a2a.Task{Kind: a2a.KindTask, ID: v.TaskID, ContextID: v.ContextID}
		}
		snapshot.Status = v.Status
		if snapshot.ContextID == "" {
			snapshot.ContextID = v.ContextID
		}
		return snapshot
	case *a2a.TaskArtifactUpdateEvent:
		if snapshot == nil {
			snapshot = &a2a.Task{Kind: a2a.KindTask, ID: v.TaskID, ContextID: v.ContextID}
		}
		snapshot.Artifacts = append(snapshot.Artifacts, v.Artifact)
		return snapshot
	}
	return snapshot
}
