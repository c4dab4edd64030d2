package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/agentmesh/agentmesh/internal/domain"
	"github.com/agentmesh/agentmesh/internal/port/a2a"
	"github.com/agentmesh/agentmesh/internal/service"
)

// HandleRPC is the JSON-RPC task submission endpoint. message/stream answers
// with an SSE event sequence; every other method answers with one envelope.
func (h *Handlers) HandleRPC(w http.ResponseWriter, r *http.Request) {
	var req a2a.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		writeRPC(w, a2a.NewErrorResponse(nil, a2a.CodeParseError, "parse error"))
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		writeRPC(w, a2a.NewErrorResponse(req.ID, a2a.CodeInvalidRequest, "invalid request"))
		return
	}

	switch req.Method {
	case a2a.MethodMessageSend:
		h.handleSend(w, r, req)
	case a2a.MethodMessageStream:
		h.handleStream(w, r, req)
	case a2a.MethodTasksGet:
		h.handleTasksGet(w, req)
	case a2a.MethodTasksCancel:
		h.handleTasksCancel(w, r, req)
	default:
		writeRPC(w, a2a.NewErrorResponse(req.ID, a2a.CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method)))
	}
}

// handleSend runs the turn to completion and answers with the final task.
func (h *Handlers) handleSend(w http.ResponseWriter, r *http.Request, req a2a.Request) {
	msg, ok := decodeSendParams(w, req)
	if !ok {
		return
	}

	q := service.NewEventQueue(32)
	go h.executor.Execute(r.Context(), msg, q)

	var taskID string
	for ev := range q.Events() {
		if t, ok := ev.(*a2a.Task); ok && taskID == "" {
			taskID = t.ID
		}
	}

	task, found := h.executor.Get(taskID)
	if !found {
		writeRPC(w, a2a.NewErrorResponse(req.ID, a2a.CodeInternalError, "task was not created"))
		return
	}
	writeRPCResult(w, req.ID, task)
}

// handleStream runs the turn while relaying every event as one SSE frame.
func (h *Handlers) handleStream(w http.ResponseWriter, r *http.Request, req a2a.Request) {
	msg, ok := decodeSendParams(w, req)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeRPC(w, a2a.NewErrorResponse(req.ID, a2a.CodeInternalError, "streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	q := service.NewEventQueue(32)
	go h.executor.Execute(r.Context(), msg, q)

	for ev := range q.Events() {
		resp, err := a2a.NewResultResponse(req.ID, ev)
		if err != nil {
			continue
		}
		frame, err := json.Marshal(resp)
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", frame); err != nil {
			return
		}
		flusher.Flush()
	}
}

func (h *Handlers) handleTasksGet(w http.ResponseWriter, req a2a.Request) {
	var params a2a.TaskQueryParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.ID == "" {
		writeRPC(w, a2a.NewErrorResponse(req.ID, a2a.CodeInvalidParams, "invalid task query params"))
		return
	}

	task, found := h.executor.Get(params.ID)
	if !found {
		writeRPC(w, a2a.NewErrorResponse(req.ID, a2a.CodeTaskNotFound, fmt.Sprintf("task %s not found", params.ID)))
		return
	}
	writeRPCResult(w, req.ID, task)
}

// handleTasksCancel surfaces the executor's refusal to cancel. Cancel must
// fail loudly rather than pretend success.
func (h *Handlers) handleTasksCancel(w http.ResponseWriter, r *http.Request, req a2a.Request) {
	var params a2a.TaskQueryParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.ID == "" {
		writeRPC(w, a2a.NewErrorResponse(req.ID, a2a.CodeInvalidParams, "invalid task query params"))
		return
	}

	if err := h.executor.Cancel(r.Context(), params.ID); err != nil {
		if errors.Is(err, domain.ErrUnsupportedOperation) {
			writeRPC(w, a2a.NewErrorResponse(req.ID, a2a.CodeUnsupportedOperation, "cancel is not supported"))
			return
		}
		writeRPC(w, a2a.NewErrorResponse(req.ID, a2a.CodeInternalError, err.Error()))
		return
	}
	task, _ := h.executor.Get(params.ID)
	writeRPCResult(w, req.ID, task)
}

func decodeSendParams(w http.ResponseWriter, req a2a.Request) (*a2a.Message, bool) {
	var params a2a.MessageSendParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Message == nil {
		writeRPC(w, a2a.NewErrorResponse(req.ID, a2a.CodeInvalidParams, "invalid message send params"))
		return nil, false
	}
	for _, part := range params.Message.Parts {
		if err := part.Validate(); err != nil {
			writeRPC(w, a2a.NewErrorResponse(req.ID, a2a.CodeInvalidParams, err.Error()))
			return nil, false
		}
	}
	return params.Message, true
}

func writeRPC(w http.ResponseWriter, resp *a2a.Response) {
	writeJSON(w, http.StatusOK, resp)
}

func writeRPCResult(w http.ResponseWriter, id json.RawMessage, result any) {
	resp, err := a2a.NewResultResponse(id, result)
	if err != nil {
		writeRPC(w, a2a.NewErrorResponse(id, a2a.CodeInternalError, "marshal result"))
		return
	}
	writeRPC(w, resp)
}
