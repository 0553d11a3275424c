package analytics

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestAggregatorRecordsMatchEvents(t *testing.T) {
	agg := NewAggregator(nil)
	handle := HandleEvent(agg)

	events := []MatchEvent{
		{Type: EventCacheMiss, Query: "universe", Matched: 2, LatencyMs: 3},
		{Type: EventCacheHit, Query: "universe", Matched: 2, LatencyMs: 1, CacheHit: true},
		{Type: EventCacheMiss, Query: "xylophone", Matched: 0, LatencyMs: 2},
	}
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if err := handle(context.Background(), []byte("analytics"), data); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}

	stats := agg.Stats()
	if stats.TotalMatches != 3 {
		t.Errorf("TotalMatches = %d, want 3", stats.TotalMatches)
	}
	if stats.CacheHits != 1 || stats.CacheMisses != 2 {
		t.Errorf("CacheHits/Misses = %d/%d, want 1/2", stats.CacheHits, stats.CacheMisses)
	}
	if stats.ZeroMatchCount != 1 {
		t.Errorf("ZeroMatchCount = %d, want 1", stats.ZeroMatchCount)
	}
	if len(stats.TopQueries) == 0 || stats.TopQueries[0].Query != "universe" {
		t.Errorf("TopQueries = %v, want universe first", stats.TopQueries)
	}
	if len(stats.ZeroMatchQueries) != 1 || stats.ZeroMatchQueries[0].Query != "xylophone" {
		t.Errorf("ZeroMatchQueries = %v, want [xylophone]", stats.ZeroMatchQueries)
	}
}

func TestAggregatorRecordsIndexEvents(t *testing.T) {
	agg := NewAggregator(nil)
	handle := HandleEvent(agg)

	for i, replaced := range []bool{false, false, true} {
		ev := IndexEvent{
			Type:       EventIndexDoc,
			DocumentID: int64(i),
			Fields:     1,
			Replaced:   replaced,
			Timestamp:  time.Now().UTC(),
		}
		data, err := json.Marshal(ev)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if err := handle(context.Background(), []byte("analytics"), data); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}

	stats := agg.Stats()
	if stats.TotalDocsIndexed != 3 {
		t.Errorf("TotalDocsIndexed = %d, want 3", stats.TotalDocsIndexed)
	}
	if stats.TotalReplacements != 1 {
		t.Errorf("TotalReplacements = %d, want 1", stats.TotalReplacements)
	}
	if stats.TotalMatches != 0 {
		t.Errorf("TotalMatches = %d, index events must not count as matches", stats.TotalMatches)
	}
}

func TestAggregatorSkipsCorruptPayload(t *testing.T) {
	agg := NewAggregator(nil)
	handle := HandleEvent(agg)

	if err := handle(context.Background(), nil, []byte("{not json")); err != nil {
		t.Fatalf("corrupt payload must be skipped, not retried: %v", err)
	}
	if stats := agg.Stats(); stats.TotalMatches != 0 || stats.TotalDocsIndexed != 0 {
		t.Errorf("corrupt payload changed stats: %+v", stats)
	}
}

func TestLatencyPercentiles(t *testing.T) {
	agg := NewAggregator(nil)
	for i := 1; i <= 100; i++ {
		agg.recordMatchEvent(MatchEvent{Query: "q", Matched: 1, LatencyMs: int64(i)})
	}

	stats := agg.Stats()
	if stats.P50LatencyMs < 45 || stats.P50LatencyMs > 55 {
		t.Errorf("P50 = %d, want ~50", stats.P50LatencyMs)
	}
	if stats.P99LatencyMs < 95 {
		t.Errorf("P99 = %d, want >= 95", stats.P99LatencyMs)
	}
	if stats.AvgLatencyMs < 50 || stats.AvgLatencyMs > 51 {
		t.Errorf("Avg = %.1f, want 50.5", stats.AvgLatencyMs)
	}
}
