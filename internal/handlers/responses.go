package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"respgate/internal/auth"
	"respgate/internal/responses"
	"respgate/internal/respsec"
	"respgate/pkg/logging/logging"
)

// ResponsesHandler serves the /v1/responses surface. Every entry point
// resolves caller-supplied response ids through the gate before dispatch
// and tags freshly produced ids before they leave the gateway.
type ResponsesHandler struct {
	Gate     *respsec.Gate
	Upstream responses.Client
}

func NewResponsesHandler(gate *respsec.Gate, upstream responses.Client) *ResponsesHandler {
	return &ResponsesHandler{
		Gate:     gate,
		Upstream: upstream,
	}
}

// Create handles POST /v1/responses.
func (h *ResponsesHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)

	var req responses.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid request", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	caller, _ := auth.CallerFromContext(ctx)

	// Pre-dispatch: a continuation references a previously issued id.
	if req.PreviousResponseID != "" {
		resolved, err := h.Gate.Resolve(ctx, req.PreviousResponseID, caller)
		if err != nil {
			writeResolveError(w, err)
			return
		}
		req.PreviousResponseID = resolved
	}

	if req.Stream {
		h.createStream(w, r, &req, caller)
		return
	}

	resp, err := h.Upstream.CreateResponse(ctx, &req)
	if err != nil {
		logger.Error("upstream create failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "upstream error")
		return
	}

	h.Gate.TagResponse(ctx, resp, caller)
	writeJSON(w, resp)
}

// createStream relays the upstream SSE stream through the gate.
func (h *ResponsesHandler) createStream(w http.ResponseWriter, r *http.Request, req *responses.CreateRequest, caller auth.CallerIdentity) {
	ctx := r.Context()
	logger := logging.L(ctx)

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	upstream, err := h.Upstream.CreateResponseStream(ctx, req)
	if err != nil {
		logger.Error("upstream stream connect failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "upstream error")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for res := range h.Gate.TagStream(ctx, upstream, caller) {
		if res.Err != nil {
			logger.Error("stream relay error", zap.Error(res.Err))
			break
		}

		payload, err := json.Marshal(res.Event)
		if err != nil {
			logger.Error("marshal stream event", zap.Error(err))
			break
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			// Client went away; the context cancellation stops the
			// upstream pull.
			logger.Debug("client disconnected mid-stream", zap.Error(err))
			return
		}
		flusher.Flush()
	}

	_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// Get handles GET /v1/responses/{id}.
func (h *ResponsesHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.fetch(w, r, h.Upstream.GetResponse)
}

// Cancel handles POST /v1/responses/{id}/cancel.
func (h *ResponsesHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.fetch(w, r, h.Upstream.CancelResponse)
}

// fetch is the shared shape of the id-addressed single-response
// operations: resolve the presented id, call upstream, tag the result.
func (h *ResponsesHandler) fetch(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, responseID string) (*responses.Response, error),
) {
	ctx := r.Context()
	logger := logging.L(ctx)
	caller, _ := auth.CallerFromContext(ctx)

	resolved, err := h.Gate.Resolve(ctx, chi.URLParam(r, "id"), caller)
	if err != nil {
		writeResolveError(w, err)
		return
	}

	resp, err := op(ctx, resolved)
	if err != nil {
		logger.Error("upstream call failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "upstream error")
		return
	}

	h.Gate.TagResponse(ctx, resp, caller)
	writeJSON(w, resp)
}

// Delete handles DELETE /v1/responses/{id}.
func (h *ResponsesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)
	caller, _ := auth.CallerFromContext(ctx)

	resolved, err := h.Gate.Resolve(ctx, chi.URLParam(r, "id"), caller)
	if err != nil {
		writeResolveError(w, err)
		return
	}

	deleted, err := h.Upstream.DeleteResponse(ctx, resolved)
	if err != nil {
		logger.Error("upstream delete failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "upstream error")
		return
	}

	h.Gate.TagResponse(ctx, deleted, caller)
	writeJSON(w, deleted)
}

// writeResolveError translates gate failures into protocol responses; the
// only failure the gate surfaces is an ownership denial.
func writeResolveError(w http.ResponseWriter, err error) {
	var denied *respsec.AccessDeniedError
	if errors.As(err, &denied) {
		writeError(w, http.StatusForbidden, denied.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"message": message,
		},
	})
}
