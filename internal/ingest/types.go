// Package ingest defines the request and Kafka event types that feed the
// index engine, the transcript document source, and the consumer that drives
// indexing from the document topic.
package ingest

import "time"

// IndexRequest is the JSON body accepted by the document index endpoint.
type IndexRequest struct {
	Fields map[string]string `json:"fields"`
}

// IndexResponse is returned to the caller after a document is indexed.
type IndexResponse struct {
	DocumentID int64  `json:"document_id"`
	Status     string `json:"status"`
	Replaced   bool   `json:"replaced"`
	Terms      int    `json:"terms"`
}

// IndexEvent is the Kafka message payload carrying one document to index.
type IndexEvent struct {
	DocumentID int64             `json:"document_id"`
	Fields     map[string]string `json:"fields"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
}
