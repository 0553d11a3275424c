// Package analytics tracks match and index activity. Events flow through a
// buffered collector onto a Kafka topic; the aggregator consumes them into
// running statistics that are periodically snapshotted to PostgreSQL.
package analytics

import "time"

type EventType string

const (
	EventMatch     EventType = "match"
	EventCacheHit  EventType = "cache_hit"
	EventCacheMiss EventType = "cache_miss"
	EventIndexDoc  EventType = "index_document"
	EventZeroMatch EventType = "zero_match"
)

type MatchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Words     []string  `json:"words"`
	Matched   int       `json:"matched"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

type IndexEvent struct {
	Type       EventType `json:"type"`
	DocumentID int64     `json:"document_id"`
	Fields     int       `json:"fields"`
	Terms      int       `json:"terms"`
	Replaced   bool      `json:"replaced"`
	LatencyMs  int64     `json:"latency_ms"`
	Timestamp  time.Time `json:"timestamp"`
}
