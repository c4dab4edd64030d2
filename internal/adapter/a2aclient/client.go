package a2aclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/agentmesh/agentmesh/internal/domain"
	"github.com/agentmesh/agentmesh/internal/port/a2a"
	"github.com/agentmesh/agentmesh/internal/resilience"
)

// Client speaks JSON-RPC to one remote agent endpoint.
type Client struct {
	baseURL     string
	sendTimeout time.Duration
	httpClient  *http.Client
	breaker     *resilience.Breaker
}

// NewClient creates a client bound to the agent's base URL. sendTimeout
// bounds unary sends; streamed exchanges are bounded by the caller's context.
func NewClient(baseURL string, sendTimeout time.Duration) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		sendTimeout: sendTimeout,
		// No client-level timeout: it would sever long-lived streams.
		httpClient: &http.Client{Transport: otelhttp.NewTransport(nil)},
	}
}

// SetBreaker attaches a circuit breaker to outgoing calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// SendMessage issues one blocking message/send and returns the decoded
// Message-or-Task union. The call is bounded by the client's send timeout.
func (c *Client) SendMessage(ctx context.Context, params a2a.MessageSendParams) (a2a.SendResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.sendTimeout)
	defer cancel()

	var result a2a.SendResult
	call := func() error {
		resp, err := c.post(ctx, a2a.MethodMessageSend, params)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		var envelope a2a.Response
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return fmt.Errorf("%w: decode response: %v", domain.ErrTransport, err)
		}

		result, err = envelope.DecodeSendResult()
		if err != nil {
			var rpcErr *a2a.RPCError
			if errors.As(err, &rpcErr) {
				return err
			}
			return fmt.Errorf("%w: %v", domain.ErrTransport, err)
		}
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			return nil, wrapTransport(err)
		}
		return result, nil
	}
	if err := call(); err != nil {
		return nil, wrapTransport(err)
	}
	return result, nil
}

// StreamMessage opens a message/stream exchange and delivers decoded events
// on the returned channel. The channel closes after a final-flagged event, a
// terminal Message, stream end, or an error; the consumer owns cancellation
// via ctx.
func (c *Client) StreamMessage(ctx context.Context, params a2a.MessageSendParams) (<-chan a2a.StreamItem, error) {
	var resp *http.Response
	open := func() error {
		r, err := c.post(ctx, a2a.MethodMessageStream, params)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(open)
	} else {
		err = open()
	}
	if err != nil {
		return nil, wrapTransport(err)
	}

	out := make(chan a2a.StreamItem)
	go c.consume(ctx, resp, out)
	return out, nil
}

// consume reads SSE frames from the response body until a final event, EOF,
// or context cancellation, then closes the channel.
func (c *Client) consume(ctx context.Context, resp *http.Response, out chan<- a2a.StreamItem) {
	defer close(out)
	defer func() { _ = resp.Body.Close() }()

	// Stop the read promptly when the caller gives up.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = resp.Body.Close()
		case <-done:
		}
	}()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), 4<<20)

	var data bytes.Buffer
	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "data:") {
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			continue
		}
		if line != "" || data.Len() == 0 {
			continue
		}

		// Blank line: one complete frame accumulated.
		frame := data.Bytes()
		data = bytes.Buffer{}

		var envelope a2a.Response
		if err := json.Unmarshal(frame, &envelope); err != nil {
			out <- a2a.StreamItem{Err: fmt.Errorf("%w: decode stream frame: %v", domain.ErrTransport, err)}
			return
		}
		ev, err := envelope.DecodeEvent()
		if err != nil {
			out <- a2a.StreamItem{Err: wrapTransport(err)}
			return
		}

		select {
		case out <- a2a.StreamItem{Event: ev}:
		case <-ctx.Done():
			return
		}
		if a2a.IsFinal(ev) {
			return
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		out <- a2a.StreamItem{Err: fmt.Errorf("%w: read stream: %v", domain.ErrTransport, err)}
	}
}

// post issues one JSON-RPC POST to the agent endpoint.
func (c *Client) post(ctx context.Context, method string, params a2a.MessageSendParams) (*http.Response, error) {
	rpcReq, err := a2a.NewRequest(uuid.NewString(), method, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	body, err := json.Marshal(rpcReq)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", domain.ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if method == a2a.MethodMessageStream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrTransport, resp.StatusCode, payload)
	}
	return resp, nil
}

// wrapTransport ensures non-protocol failures carry the transport sentinel.
// An open circuit maps to the client-unavailable sentinel instead, so callers
// can tell a shed call from a failed one.
func wrapTransport(err error) error {
	var rpcErr *a2a.RPCError
	if errors.As(err, &rpcErr) || errors.Is(err, domain.ErrTransport) {
		return err
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return fmt.Errorf("%w: %v", domain.ErrClientUnavailable, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrTransport, err)
}
