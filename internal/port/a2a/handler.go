package a2a

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	a2ago "github.com/a2aproject/a2a-go/a2a"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Strob0t/agentmesh/internal/domain/agent"
	"github.com/Strob0t/agentmesh/internal/domain/task"
)

// maxRequestBody caps an inbound JSON-RPC request.
const maxRequestBody = 1 << 20

// legacyCardPath is the pre-0.3 well-known location, still probed by older clients.
const legacyCardPath = "/.well-known/agent.json"

// Handler serves the A2A protocol endpoints of one agent.
type Handler struct {
	card *a2ago.AgentCard
	exec Executor
}

// NewHandler creates an A2A handler serving card and running tasks on exec.
func NewHandler(card *a2ago.AgentCard, exec Executor) *Handler {
	return &Handler{card: card, exec: exec}
}

// MountRoutes registers A2A routes on the given chi router.
// These are mounted at the root level: the card under the well-known path
// and JSON-RPC on POST /.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get(agent.CardPath, h.handleAgentCard)
	r.Get(legacyCardPath, h.handleAgentCard)
	r.Post("/", h.handleRPC)
}

func (h *Handler) handleAgentCard(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.card)
}

func (h *Handler) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		writeRPCError(w, nil, CodeParseError, "read request body")
		return
	}
	if len(body) > maxRequestBody {
		writeRPCError(w, nil, CodeInvalidRequest, "request body too large")
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeRPCError(w, nil, CodeParseError, "invalid JSON")
		return
	}
	if req.JSONRPC != JSONRPCVersion || req.Method == "" {
		writeRPCError(w, req.ID, CodeInvalidRequest, "invalid JSON-RPC request")
		return
	}

	switch req.Method {
	case MethodMessageSend:
		h.handleMessageSend(w, r, &req)
	case MethodMessageStream:
		h.handleMessageStream(w, r, &req)
	case MethodTasksCancel:
		h.handleTasksCancel(w, r, &req)
	case MethodTasksGet:
		// Tasks live only for the HTTP exchange that created them.
		writeRPCError(w, req.ID, CodeTaskNotFound, "task not found")
	default:
		writeRPCError(w, req.ID, CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
}

// requestContext decodes message params and fills missing ids.
func requestContext(req *Request) (RequestContext, error) {
	var params MessageSendParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return RequestContext{}, fmt.Errorf("decode params: %w", err)
	}
	if len(params.Message.Parts) == 0 {
		return RequestContext{}, fmt.Errorf("message has no parts")
	}
	rc := RequestContext{
		TaskID:    params.Message.TaskID,
		ContextID: params.Message.ContextID,
		Message:   params.Message,
	}
	if rc.TaskID == "" {
		rc.TaskID = uuid.NewString()
	}
	if rc.ContextID == "" {
		rc.ContextID = uuid.NewString()
	}
	return rc, nil
}

func (h *Handler) handleMessageSend(w http.ResponseWriter, r *http.Request, req *Request) {
	rc, err := requestContext(req)
	if err != nil {
		writeRPCError(w, req.ID, CodeInvalidParams, err.Error())
		return
	}

	var collector TaskCollector
	h.exec.Execute(r.Context(), rc, &collector)

	writeJSON(w, Response{JSONRPC: JSONRPCVersion, ID: req.ID, Result: collector.Task()})
}

func (h *Handler) handleMessageStream(w http.ResponseWriter, r *http.Request, req *Request) {
	rc, err := requestContext(req)
	if err != nil {
		writeRPCError(w, req.ID, CodeInvalidParams, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeRPCError(w, req.ID, CodeInternalError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	stream := &sseStream{w: w, flusher: flusher, id: req.ID}
	h.exec.Execute(r.Context(), rc, stream)
}

func (h *Handler) handleTasksCancel(w http.ResponseWriter, r *http.Request, req *Request) {
	var params TaskIDParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeRPCError(w, req.ID, CodeInvalidParams, fmt.Sprintf("decode params: %v", err))
		return
	}
	if params.ID == "" {
		writeRPCError(w, req.ID, CodeInvalidParams, "task id is required")
		return
	}
	if err := h.exec.Cancel(r.Context(), params.ID); err != nil {
		slog.WarnContext(r.Context(), "a2a cancel", "task_id", params.ID, "error", err)
	}
	writeRPCError(w, req.ID, CodeTaskNotCancelable, "task cannot be canceled")
}

// sseStream writes each published event as one JSON-RPC response frame.
type sseStream struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	id      json.RawMessage
}

func (s *sseStream) Publish(_ context.Context, ev task.Event) error { //nolint:gocritic // events are passed by value across the engine
	data, err := json.Marshal(Response{JSONRPC: JSONRPCVersion, ID: s.id, Result: EventToWire(ev)})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	s.flusher.Flush()
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeRPCError answers with HTTP 200 and a JSON-RPC error object, as the
// protocol carries failures in-band.
func writeRPCError(w http.ResponseWriter, id json.RawMessage, code int, msg string) {
	if id == nil {
		id = json.RawMessage("null")
	}
	writeJSON(w, Response{JSONRPC: JSONRPCVersion, ID: id, Error: &RPCError{Code: code, Message: msg}})
}
