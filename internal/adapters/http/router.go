// Package httpadapter exposes the pipeline and query engine over HTTP.
package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mzwaMoj/bedrock-rag/internal/core/domain"
	"github.com/mzwaMoj/bedrock-rag/internal/core/ports"
	"github.com/mzwaMoj/bedrock-rag/internal/observability/metrics"
)

type Router struct {
	baseCtx context.Context
	queries ports.QueryService
	runner  ports.PipelineRunner
	queue   ports.ReindexQueue
	metrics *metrics.ServerMetrics
	service string
	modelID string
}

// NewRouter wires the HTTP surface. baseCtx is the server lifecycle
// context; background work spawned by handlers stops with it. queue may
// be nil; reindex requests then rebuild in-process instead of being
// published.
func NewRouter(
	baseCtx context.Context,
	queries ports.QueryService,
	runner ports.PipelineRunner,
	queue ports.ReindexQueue,
	serverMetrics *metrics.ServerMetrics,
	service string,
	modelID string,
) *Router {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Router{
		baseCtx: baseCtx,
		queries: queries,
		runner:  runner,
		queue:   queue,
		metrics: serverMetrics,
		service: service,
		modelID: modelID,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/pipeline/status", rt.pipelineStatus)
	mux.HandleFunc("/v1/pipeline/reindex", rt.reindex)
	mux.HandleFunc("/v1/chat/query", rt.chatQuery)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	return instrument(rt.metrics, rt.service, mux)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) pipelineStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "status", "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, rt.runner.Status())
}

func (rt *Router) reindex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "reindex", "method not allowed")
		return
	}

	reason := "api request " + requestIDFromContext(r.Context())
	if rt.queue != nil {
		if err := rt.queue.PublishReindex(r.Context(), reason); err != nil {
			writeError(w, mapErrorToHTTPStatus(err), "reindex", err.Error())
			return
		}
	} else {
		go func() {
			if err := rt.runner.Run(rt.baseCtx); err != nil {
				slog.Error("in-process reindex failed", "reason", reason, "error", err)
			}
		}()
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "reindex requested"})
}

func (rt *Router) chatQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "query", "method not allowed")
		return
	}

	var req struct {
		Question string `json:"question"`
		Mode     string `json:"mode"`
		TopK     int    `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "query", "invalid json")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "query", "question is required")
		return
	}

	mode := domain.QueryMode(req.Mode)
	start := time.Now()
	result, err := rt.queries.Query(r.Context(), ports.QueryRequest{
		Question: req.Question,
		Mode:     mode,
		TopK:     req.TopK,
	})
	if err != nil {
		rt.recordQuery(mode, "error", 0, time.Since(start))
		writeError(w, mapErrorToHTTPStatus(err), "query", err.Error())
		return
	}

	rt.recordQuery(mode, "ok", result.NumSources, time.Since(start))
	if rt.metrics != nil {
		rt.metrics.RecordTokenUsage(rt.service, rt.modelID, result.Usage.PromptTokens, result.Usage.ResponseTokens)
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) recordQuery(mode domain.QueryMode, status string, sources int, took time.Duration) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordQuery(rt.service, mode, status, sources, took)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, stage, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
		"stage": stage,
	})
}
