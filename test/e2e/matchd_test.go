// Package e2e contains end-to-end tests that exercise a running match
// service over HTTP, with real Kafka, Redis, and PostgreSQL behind it.
//
// Prerequisites:
//   - matchd running (default http://localhost:8080)
//   - Kafka, Redis, and PostgreSQL running for the full pipeline
//
// Run with:
//
//	go test -v -timeout=120s ./test/e2e/...
package e2e

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"
)

type e2eConfig struct {
	ServiceURL string
}

func loadE2EConfig() e2eConfig {
	return e2eConfig{
		ServiceURL: envOrDefault("E2E_MATCHD_URL", "http://localhost:8080"),
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func skipIfUnavailable(t *testing.T, client *http.Client, baseURL string) {
	t.Helper()
	resp, err := client.Get(baseURL + "/health/live")
	if err != nil {
		t.Skipf("match service unavailable: %v", err)
	}
	resp.Body.Close()
}

func putDoc(t *testing.T, client *http.Client, baseURL string, id int64, field, value string) {
	t.Helper()
	body := fmt.Sprintf(`{"fields":{%q:%q}}`, field, value)
	req, err := http.NewRequest(http.MethodPut,
		fmt.Sprintf("%s/api/v1/documents/%d", baseURL, id),
		strings.NewReader(body),
	)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("put document %d: %v", id, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("put document %d: status %d", id, resp.StatusCode)
	}
}

func matchIDs(t *testing.T, client *http.Client, baseURL, query string) []int64 {
	t.Helper()
	resp, err := client.Get(baseURL + "/api/v1/match?q=" + url.QueryEscape(query))
	if err != nil {
		t.Fatalf("match %q: %v", query, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("match %q: status %d", query, resp.StatusCode)
	}
	var result struct {
		IDs []int64 `json:"ids"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decoding match response: %v", err)
	}
	return result.IDs
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// TestServiceHealth verifies liveness, readiness, and stats endpoints.
func TestServiceHealth(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 5 * time.Second}
	skipIfUnavailable(t, client, cfg.ServiceURL)

	for _, path := range []string{"/health/live", "/health/ready", "/api/v1/stats"} {
		t.Run(path, func(t *testing.T) {
			resp, err := client.Get(cfg.ServiceURL + path)
			if err != nil {
				t.Fatalf("%s: %v", path, err)
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Errorf("%s: status = %d, want %d", path, resp.StatusCode, http.StatusOK)
			}
		})
	}
}

// TestIndexReplaceMatch runs the canonical sequence against a live service,
// using high ids to avoid colliding with loaded data.
func TestIndexReplaceMatch(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 10 * time.Second}
	skipIfUnavailable(t, client, cfg.ServiceURL)

	base := time.Now().UnixNano()
	id1, id2 := base, base+1
	marker := fmt.Sprintf("e2emarker%d", base)

	putDoc(t, client, cfg.ServiceURL, id1, "line 1", marker+" our whole universe was in a hot dense state")
	putDoc(t, client, cfg.ServiceURL, id2, "line 2", marker+" that all started with the big bang")

	ids := matchIDs(t, client, cfg.ServiceURL, marker)
	if !contains(ids, id1) || !contains(ids, id2) {
		t.Fatalf("marker query: ids = %v, want both %d and %d", ids, id1, id2)
	}

	putDoc(t, client, cfg.ServiceURL, id1, "line 1", "replaced content without the marker")
	ids = matchIDs(t, client, cfg.ServiceURL, marker)
	if contains(ids, id1) {
		t.Errorf("marker query after replace: ids = %v, document %d should no longer match", ids, id1)
	}
	if !contains(ids, id2) {
		t.Errorf("marker query after replace: ids = %v, document %d should still match", ids, id2)
	}
}

// TestMatchCaching issues the same query twice and expects cache stats to
// move when Redis is configured.
func TestMatchCaching(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 10 * time.Second}
	skipIfUnavailable(t, client, cfg.ServiceURL)

	resp, err := client.Get(cfg.ServiceURL + "/api/v1/cache/stats")
	if err != nil {
		t.Fatalf("cache stats: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if strings.Contains(string(body), "disabled") {
		t.Skip("match cache disabled in this deployment")
	}

	query := fmt.Sprintf("cachemarker%d", time.Now().UnixNano())
	matchIDs(t, client, cfg.ServiceURL, query)
	matchIDs(t, client, cfg.ServiceURL, query)

	resp, err = client.Get(cfg.ServiceURL + "/api/v1/cache/stats")
	if err != nil {
		t.Fatalf("cache stats: %v", err)
	}
	defer resp.Body.Close()
	var stats struct {
		Hits   int64 `json:"hits"`
		Misses int64 `json:"misses"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decoding cache stats: %v", err)
	}
	if stats.Hits == 0 {
		t.Error("expected at least one cache hit after repeating a query")
	}
}

// TestAnalyticsStats checks that the analytics endpoint reports activity
// after some traffic. The Kafka round trip is asynchronous, so the test
// polls briefly.
func TestAnalyticsStats(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 10 * time.Second}
	skipIfUnavailable(t, client, cfg.ServiceURL)

	resp, err := client.Get(cfg.ServiceURL + "/api/v1/analytics")
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		t.Skip("analytics disabled in this deployment")
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	matchIDs(t, client, cfg.ServiceURL, "universe")

	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := client.Get(cfg.ServiceURL + "/api/v1/analytics")
		if err != nil {
			t.Fatalf("analytics: %v", err)
		}
		var stats struct {
			TotalMatches int64 `json:"total_matches"`
		}
		err = json.NewDecoder(resp.Body).Decode(&stats)
		resp.Body.Close()
		if err == nil && stats.TotalMatches > 0 {
			return
		}
		time.Sleep(time.Second)
	}
	t.Error("analytics never reported any matches")
}
