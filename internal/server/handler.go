// Package server implements the HTTP handlers for the document index and
// match API.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/morphdex/morphdex/internal/analytics"
	"github.com/morphdex/morphdex/internal/engine"
	"github.com/morphdex/morphdex/internal/ingest"
	"github.com/morphdex/morphdex/internal/matchcache"
	"github.com/morphdex/morphdex/internal/tokenizer"
	"github.com/morphdex/morphdex/pkg/config"
	apperrors "github.com/morphdex/morphdex/pkg/errors"
	"github.com/morphdex/morphdex/pkg/logger"
	"github.com/morphdex/morphdex/pkg/metrics"
	"github.com/morphdex/morphdex/pkg/tracing"
)

// MatchResult is the JSON body returned by the match endpoint.
type MatchResult struct {
	Query     string  `json:"query"`
	IDs       []int64 `json:"ids"`
	Count     int     `json:"count"`
	LatencyMs int64   `json:"latency_ms"`
}

// DocumentResult is the JSON body returned by the document lookup endpoint.
type DocumentResult struct {
	DocumentID int64             `json:"document_id"`
	Fields     map[string]string `json:"fields"`
}

type Handler struct {
	engine    *engine.Engine
	cache     *matchcache.Cache
	collector *analytics.Collector
	metrics   *metrics.Metrics
	engineCfg config.EngineConfig
	matchCfg  config.MatchConfig
	logger    *slog.Logger
}

func New(eng *engine.Engine, cache *matchcache.Cache, collector *analytics.Collector, m *metrics.Metrics, engineCfg config.EngineConfig, matchCfg config.MatchConfig) *Handler {
	return &Handler{
		engine:    eng,
		cache:     cache,
		collector: collector,
		metrics:   m,
		engineCfg: engineCfg,
		matchCfg:  matchCfg,
		logger:    slog.Default().With("component", "api-handler"),
	}
}

// IndexDocument stores the request's field map under the path id, replacing
// any document previously indexed there.
func (h *Handler) IndexDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "document id must be an integer")
		return
	}

	var req ingest.IndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := ingest.ValidateIndexRequest(&req, h.engineCfg); err != nil {
		var validationErr *ingest.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, span := tracing.StartSpan(ctx, "index_document", logger.RequestID(ctx))
	start := time.Now()
	_, replaced := h.engine.Document(id)
	terms := h.engine.Index(engine.Document(req.Fields), id)
	span.SetAttr("doc_id", id)
	span.SetAttr("replaced", replaced)
	span.End()

	if h.cache != nil {
		if err := h.cache.Invalidate(ctx); err != nil {
			log.Warn("match cache invalidation failed", "error", err)
		}
	}
	if h.collector != nil {
		h.collector.Track(analytics.IndexEvent{
			Type:       analytics.EventIndexDoc,
			DocumentID: id,
			Fields:     len(req.Fields),
			Replaced:   replaced,
			LatencyMs:  time.Since(start).Milliseconds(),
			Timestamp:  time.Now().UTC(),
		})
	}

	log.Info("document indexed",
		"doc_id", id,
		"fields", len(req.Fields),
		"terms", terms,
		"replaced", replaced,
	)
	h.writeJSON(w, http.StatusAccepted, ingest.IndexResponse{
		DocumentID: id,
		Status:     "indexed",
		Replaced:   replaced,
		Terms:      terms,
	})
}

// GetDocument returns the engine's stored copy of a document.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "document id must be an integer")
		return
	}
	doc, ok := h.engine.Document(id)
	if !ok {
		err := apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound, "document %d", id)
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, DocumentResult{
		DocumentID: id,
		Fields:     doc,
	})
}

// Match returns the ids of documents containing any word of the query.
func (h *Handler) Match(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	if len(query) > h.matchCfg.MaxQueryLength {
		h.writeError(w, http.StatusBadRequest, "query too long")
		return
	}

	ctx, span := tracing.StartSpan(ctx, "match", logger.RequestID(ctx))
	var ids []int64
	var err error
	cacheHit := false

	if h.cache != nil {
		ids, cacheHit, err = h.cache.GetOrCompute(ctx, query, func() ([]int64, error) {
			return h.engine.Match(query), nil
		})
	} else {
		ids = h.engine.Match(query)
	}
	span.SetAttr("matched", len(ids))
	span.SetAttr("cache_hit", cacheHit)
	span.End()

	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("match failed",
			"query", query,
			"status_code", statusCode,
			"error", err,
		)
		h.writeError(w, statusCode, "match failed")
		return
	}
	if ids == nil {
		ids = []int64{}
	}

	latencyMs := time.Since(start).Milliseconds()
	h.observeMatch(len(ids), cacheHit, time.Since(start))

	log.Info("match completed",
		"query", query,
		"matched", len(ids),
		"cache_hit", cacheHit,
		"latency_ms", latencyMs,
	)
	if h.collector != nil {
		eventType := analytics.EventCacheMiss
		if cacheHit {
			eventType = analytics.EventCacheHit
		}
		h.collector.Track(analytics.MatchEvent{
			Type:      eventType,
			Query:     query,
			Words:     tokenizer.QueryWords(query),
			Matched:   len(ids),
			LatencyMs: latencyMs,
			CacheHit:  cacheHit,
			Timestamp: time.Now().UTC(),
			RequestID: logger.RequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, MatchResult{
		Query:     query,
		IDs:       ids,
		Count:     len(ids),
		LatencyMs: latencyMs,
	})
}

// Stats returns the engine's document and term counts.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.Stats())
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) observeMatch(matched int, cacheHit bool, elapsed time.Duration) {
	if h.metrics == nil {
		return
	}
	resultType := "hit"
	if matched == 0 {
		resultType = "zero_result"
	}
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
	}
	h.metrics.MatchQueriesTotal.WithLabelValues(resultType).Inc()
	h.metrics.MatchLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
	h.metrics.MatchResultsCount.Observe(float64(matched))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
