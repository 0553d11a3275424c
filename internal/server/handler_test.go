package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/morphdex/morphdex/internal/engine"
	"github.com/morphdex/morphdex/internal/morphology"
	"github.com/morphdex/morphdex/pkg/config"
)

func newTestHandler(t *testing.T) (*Handler, *engine.Engine) {
	t.Helper()
	eng := engine.New(morphology.Nop{})
	h := New(eng, nil, nil, nil,
		config.EngineConfig{Morphology: "off", MaxFieldBytes: 1 << 20, MaxFields: 64},
		config.MatchConfig{MaxQueryLength: 1024, RequestsPerMin: 0},
	)
	return h, eng
}

func newTestMux(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/v1/documents/{id}", h.IndexDocument)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.GetDocument)
	mux.HandleFunc("GET /api/v1/match", h.Match)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	return mux
}

func doRequest(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestIndexDocument(t *testing.T) {
	h, eng := newTestHandler(t)
	mux := newTestMux(h)

	rec := doRequest(mux, http.MethodPut, "/api/v1/documents/7", `{"fields":{"title":"A long time ago"}}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusAccepted, rec.Body.String())
	}

	var resp struct {
		DocumentID int64  `json:"document_id"`
		Status     string `json:"status"`
		Replaced   bool   `json:"replaced"`
		Terms      int    `json:"terms"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.DocumentID != 7 || resp.Status != "indexed" || resp.Replaced {
		t.Errorf("unexpected response %+v", resp)
	}
	// "A long time ago" holds four distinct words and morphology is off.
	if resp.Terms != 4 {
		t.Errorf("terms = %d, want 4", resp.Terms)
	}
	if got := eng.DocCount(); got != 1 {
		t.Errorf("DocCount = %d, want 1", got)
	}
}

func TestIndexDocumentReplacementFlag(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := newTestMux(h)

	doRequest(mux, http.MethodPut, "/api/v1/documents/3", `{"fields":{"body":"first"}}`)
	rec := doRequest(mux, http.MethodPut, "/api/v1/documents/3", `{"fields":{"body":"second"}}`)

	var resp struct {
		Replaced bool `json:"replaced"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !resp.Replaced {
		t.Error("second index of same id should report replaced=true")
	}
}

func TestIndexDocumentBadRequests(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := newTestMux(h)

	tests := []struct {
		name   string
		target string
		body   string
	}{
		{"non-integer id", "/api/v1/documents/abc", `{"fields":{}}`},
		{"invalid json", "/api/v1/documents/1", `{"fields":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(mux, http.MethodPut, tt.target, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestIndexDocumentValidationFailure(t *testing.T) {
	h, _ := newTestHandler(t)
	h.engineCfg.MaxFields = 1
	mux := newTestMux(h)

	rec := doRequest(mux, http.MethodPut, "/api/v1/documents/1", `{"fields":{"a":"x","b":"y"}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	var resp struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error != "validation failed" || len(resp.Fields) == 0 {
		t.Errorf("unexpected validation response %+v", resp)
	}
}

func TestGetDocument(t *testing.T) {
	h, eng := newTestHandler(t)
	mux := newTestMux(h)

	eng.Index(engine.Document{"speech": "nobody calls me chicken"}, 42)

	rec := doRequest(mux, http.MethodGet, "/api/v1/documents/42", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp DocumentResult
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.DocumentID != 42 || resp.Fields["speech"] != "nobody calls me chicken" {
		t.Errorf("unexpected document %+v", resp)
	}

	rec = doRequest(mux, http.MethodGet, "/api/v1/documents/99", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing document: status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestMatch(t *testing.T) {
	h, eng := newTestHandler(t)
	mux := newTestMux(h)

	eng.Index(engine.Document{"title": "the expanding universe"}, 1)
	eng.Index(engine.Document{"title": "galaxies drifting apart"}, 2)

	rec := doRequest(mux, http.MethodGet, "/api/v1/match?q=UNIVERSE+galaxies", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	var resp MatchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Count != 2 || len(resp.IDs) != 2 {
		t.Fatalf("Count = %d, IDs = %v, want both documents", resp.Count, resp.IDs)
	}
	if resp.IDs[0] != 1 || resp.IDs[1] != 2 {
		t.Errorf("IDs = %v, want sorted [1 2]", resp.IDs)
	}
}

func TestMatchNoResults(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := newTestMux(h)

	rec := doRequest(mux, http.MethodGet, "/api/v1/match?q=nothing", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp MatchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Count != 0 || resp.IDs == nil {
		t.Errorf("empty match must return an empty (non-null) id list, got %+v", resp)
	}
}

func TestMatchQueryValidation(t *testing.T) {
	h, _ := newTestHandler(t)
	h.matchCfg.MaxQueryLength = 8
	mux := newTestMux(h)

	rec := doRequest(mux, http.MethodGet, "/api/v1/match", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing q: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = doRequest(mux, http.MethodGet, "/api/v1/match?q=aaaaaaaaaaaaaaaa", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("oversized q: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestMatchUsesVariantsFromIndexSide(t *testing.T) {
	eng := engine.New(morphology.Static{Table: map[string]map[string][]string{
		"prove": {"v": {"prove", "proves", "proved", "proving"}},
	}})
	h := New(eng, nil, nil, nil,
		config.EngineConfig{MaxFieldBytes: 1 << 20, MaxFields: 64},
		config.MatchConfig{MaxQueryLength: 1024},
	)
	mux := newTestMux(h)

	eng.Index(engine.Document{"line": "hard to prove"}, 5)

	rec := doRequest(mux, http.MethodGet, "/api/v1/match?q=proving", "")
	var resp MatchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Count != 1 || resp.IDs[0] != 5 {
		t.Errorf("variant query should hit document 5, got %+v", resp)
	}
}

func TestStats(t *testing.T) {
	h, eng := newTestHandler(t)
	mux := newTestMux(h)

	eng.Index(engine.Document{"a": "one two"}, 1)

	rec := doRequest(mux, http.MethodGet, "/api/v1/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp struct {
		Documents int `json:"documents"`
		Terms     int `json:"terms"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Documents != 1 || resp.Terms == 0 {
		t.Errorf("unexpected stats %+v", resp)
	}
}

func TestCacheEndpointsWithoutCache(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := newTestMux(h)

	rec := doRequest(mux, http.MethodGet, "/api/v1/cache/stats", "")
	if rec.Code != http.StatusOK {
		t.Errorf("cache stats: status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = doRequest(mux, http.MethodPost, "/api/v1/cache/invalidate", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("cache invalidate: status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
