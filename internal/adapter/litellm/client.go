// Package litellm implements the decision engine port against an
// OpenAI-compatible chat completions endpoint, such as a LiteLLM proxy.
package litellm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/agentmesh/agentmesh/internal/config"
	"github.com/agentmesh/agentmesh/internal/port/llm"
	"github.com/agentmesh/agentmesh/internal/resilience"
)

// Client calls the chat completions API and maps responses onto the tagged
// Decision union.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// New creates a client from the LLM configuration section.
func New(cfg config.LLM) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		httpClient: &http.Client{},
	}
}

// SetBreaker attaches a circuit breaker to outgoing calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// Healthy reports whether the engine's circuit currently admits calls. A
// client without a breaker is always healthy.
func (c *Client) Healthy() bool {
	return c.breaker == nil || c.breaker.Healthy()
}

// chat completions wire types, limited to the fields AgentMesh uses.

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type chatToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatToolSpec `json:"function"`
}

type chatToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	Tools     []chatTool    `json:"tools,omitempty"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Decide issues one chat completion round-trip.
func (c *Client) Decide(ctx context.Context, req llm.Request) (*llm.Decision, error) {
	payload := chatRequest{
		Model:     c.model,
		Messages:  c.buildMessages(req),
		Tools:     buildTools(req.Tools),
		MaxTokens: c.maxTokens,
	}

	var decision *llm.Decision
	call := func() error {
		resp, err := c.post(ctx, payload)
		if err != nil {
			return err
		}
		decision = resp
		return nil
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(call)
	} else {
		err = call()
	}
	if err != nil {
		return nil, err
	}
	return decision, nil
}

func (c *Client) buildMessages(req llm.Request) []chatMessage {
	msgs := make([]chatMessage, 0, len(req.Turns)+1)
	if req.System != "" {
		msgs = append(msgs, chatMessage{Role: string(llm.RoleSystem), Content: req.System})
	}
	for _, turn := range req.Turns {
		msgs = append(msgs, toChatMessage(turn))
	}
	return msgs
}

func toChatMessage(turn llm.Turn) chatMessage {
	msg := chatMessage{Role: string(turn.Role)}

	switch content := turn.Content.(type) {
	case nil:
	case string:
		msg.Content = content
	default:
		data, err := json.Marshal(content)
		if err != nil {
			msg.Content = fmt.Sprint(content)
		} else {
			msg.Content = string(data)
		}
	}

	if turn.ToolCall != nil {
		switch turn.Role {
		case llm.RoleAssistant:
			msg.ToolCalls = []chatToolCall{{
				ID:   turn.ToolCall.ID,
				Type: "function",
				Function: chatFunction{
					Name:      turn.ToolCall.Name,
					Arguments: string(turn.ToolCall.Args),
				},
			}}
		case llm.RoleTool:
			msg.ToolCallID = turn.ToolCall.ID
		}
	}
	return msg
}

func buildTools(specs []llm.ToolSpec) []chatTool {
	tools := make([]chatTool, 0, len(specs))
	for _, spec := range specs {
		tools = append(tools, chatTool{
			Type: "function",
			Function: chatToolSpec{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  spec.Parameters,
			},
		})
	}
	return tools
}

func (c *Client) post(ctx context.Context, payload chatRequest) (*llm.Decision, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("completion request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("completion request: status %d: %s", resp.StatusCode, detail)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode completion response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("completion error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return &llm.Decision{Kind: llm.DecisionEmpty}, nil
	}

	return toDecision(parsed.Choices[0].Message), nil
}

// toDecision maps the choice message onto the Decision union. A tool call
// wins over text when both are present.
func toDecision(msg chatMessage) *llm.Decision {
	if len(msg.ToolCalls) > 0 {
		call := msg.ToolCalls[0]
		return &llm.Decision{
			Kind: llm.DecisionToolCall,
			Call: &llm.ToolCall{
				ID:   call.ID,
				Name: call.Function.Name,
				Args: json.RawMessage(call.Function.Arguments),
			},
		}
	}
	if strings.TrimSpace(msg.Content) != "" {
		return &llm.Decision{Kind: llm.DecisionText, Text: msg.Content}
	}
	return &llm.Decision{Kind: llm.DecisionEmpty}
}
