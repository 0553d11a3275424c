// Package engine implements the in-memory document store and inverted index.
// Indexing normalizes every field value into literal words, expands them
// through the morphology provider, and maintains posting lists keyed by term.
// Matching is a direct key lookup over lower-cased query words.
package engine

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/morphdex/morphdex/internal/morphology"
	"github.com/morphdex/morphdex/internal/tokenizer"
	"github.com/morphdex/morphdex/pkg/metrics"
)

// Document is a flat field-name → field-text mapping. Field names are never
// searched, only values.
type Document map[string]string

// Clone returns an independent copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return Document{}
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Stats summarises the engine's current state.
type Stats struct {
	Documents int `json:"documents"`
	Terms     int `json:"terms"`
}

// Engine owns the document store and the inverted index. A single writer
// lock serialises Index calls; Match calls may run concurrently with each
// other but block behind an in-flight Index.
type Engine struct {
	mu      sync.RWMutex
	docs    map[int64]Document
	index   map[string]map[int64]struct{}
	morph   morphology.Provider
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics attaches Prometheus collectors to index operations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New creates an empty Engine using the given morphology provider.
func New(morph morphology.Provider, opts ...Option) *Engine {
	e := &Engine{
		docs:   make(map[int64]Document),
		index:  make(map[string]map[int64]struct{}),
		morph:  morph,
		logger: slog.Default().With("component", "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Index stores doc under id and makes its words, and their morphological
// variants, retrievable via Match. Indexing under an existing id fully
// replaces the prior document: the old document's contribution is removed
// from the posting lists before the new one is added. The engine keeps its
// own copy of doc, so later caller mutation has no effect. Empty documents
// are legal and contribute no terms. Returns the number of index terms the
// document contributed, variants included.
func (e *Engine) Index(doc Document, id int64) int {
	start := time.Now()
	stored := doc.Clone()
	words := tokenizer.DocumentWords(stored)

	terms := make(map[string]struct{}, len(words)*4)
	for w := range words {
		terms[w] = struct{}{}
		for _, forms := range e.morph.Forms(w) {
			for _, f := range forms {
				terms[f] = struct{}{}
			}
		}
	}

	e.mu.Lock()
	replaced := e.removeLocked(id)
	e.docs[id] = stored
	for t := range terms {
		ids, ok := e.index[t]
		if !ok {
			ids = make(map[int64]struct{})
			e.index[t] = ids
		}
		ids[id] = struct{}{}
	}
	docCount := len(e.docs)
	termCount := len(e.index)
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.DocsIndexedTotal.Inc()
		if replaced {
			e.metrics.DocReplacementsTotal.Inc()
		}
		e.metrics.IndexedDocs.Set(float64(docCount))
		e.metrics.IndexedTerms.Set(float64(termCount))
		e.metrics.ExpansionFanout.Observe(float64(len(terms)))
		e.metrics.IndexLatency.Observe(time.Since(start).Seconds())
	}
	e.logger.Debug("document indexed",
		"doc_id", id,
		"literal_words", len(words),
		"terms", len(terms),
		"replaced", replaced,
	)
	return len(terms)
}

// removeLocked drops the stored document's contribution to the posting
// lists and deletes keys whose lists become empty. Removal is keyed on the
// old document's literal normalized words only, not the expanded variants
// inserted for it. Callers must hold the write lock.
func (e *Engine) removeLocked(id int64) bool {
	old, ok := e.docs[id]
	if !ok {
		return false
	}
	for w := range tokenizer.DocumentWords(old) {
		ids, ok := e.index[w]
		if !ok {
			continue
		}
		delete(ids, id)
		if len(ids) == 0 {
			delete(e.index, w)
		}
	}
	return true
}

// Match returns the distinct ids of documents whose indexed term set
// intersects the lower-cased whitespace tokens of text. The result is a
// snapshot, sorted ascending; mutating it cannot corrupt index state. An
// unknown word simply contributes no matches.
func (e *Engine) Match(text string) []int64 {
	seen := make(map[int64]struct{})
	e.mu.RLock()
	for _, w := range tokenizer.QueryWords(text) {
		for id := range e.index[w] {
			seen[id] = struct{}{}
		}
	}
	e.mu.RUnlock()

	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Document returns a copy of the document stored under id.
func (e *Engine) Document(id int64) (Document, bool) {
	e.mu.RLock()
	doc, ok := e.docs[id]
	e.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return doc.Clone(), true
}

// DocCount returns the number of stored documents.
func (e *Engine) DocCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.docs)
}

// TermCount returns the number of distinct index keys.
func (e *Engine) TermCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.index)
}

// Stats returns the current document and term counts.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Stats{
		Documents: len(e.docs),
		Terms:     len(e.index),
	}
}
