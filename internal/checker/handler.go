package checker

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/EgorSmi/hack-fake-news/pkg/errors"
	"github.com/EgorSmi/hack-fake-news/pkg/logger"
	"github.com/EgorSmi/hack-fake-news/pkg/metrics"
)

// Handler serves the public check endpoint.
type Handler struct {
	service *Service
	cache   *VerdictCache
	m       *metrics.Metrics
}

// NewHandler creates the HTTP handler over the check service and verdict
// cache.
func NewHandler(service *Service, cache *VerdictCache, m *metrics.Metrics) *Handler {
	return &Handler{service: service, cache: cache, m: m}
}

// Register mounts the handler's routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/check", h.Check)
}

// CheckRequest is the public check payload: an article title (optional) and
// its body text.
type CheckRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Check handles POST /api/v1/check.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx).With("component", "check-handler")

	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.countRequest("error")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		h.countRequest("error")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "content must not be empty"})
		return
	}

	result, cacheStatus, err := h.cache.GetOrCompute(ctx, req.Title+"\n"+req.Content,
		func(ctx context.Context) (*CheckResult, error) {
			return h.service.Check(ctx, req.Title, req.Content)
		})
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		log.Error("check failed", "status", status, "error", err)
		h.countRequest("error")
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	outcome := "no_match"
	if result.Matched {
		outcome = "match"
	}
	h.countRequest(outcome)
	if h.m != nil {
		h.m.CheckLatency.WithLabelValues(string(cacheStatus)).Observe(time.Since(start).Seconds())
	}
	log.Info("check served",
		"outcome", outcome,
		"result", result.Result,
		"cache", cacheStatus,
		"elapsed", time.Since(start),
	)
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithComponent("check-handler").Error("encoding response failed", "error", err)
	}
}

func (h *Handler) countRequest(outcome string) {
	if h.m != nil {
		h.m.CheckRequestsTotal.WithLabelValues(outcome).Inc()
	}
}
