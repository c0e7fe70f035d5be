package notifier

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewResilientClient(t *testing.T) {
	config := DefaultResilientClientConfig()
	client := NewResilientClient(30*time.Second, config)

	if client == nil {
		t.Fatal("NewResilientClient returned nil")
	}

	if client.client == nil {
		t.Error("HTTP client is nil")
	}

	if config.EnableCircuitBreaker && client.breaker == nil {
		t.Error("Circuit breaker is nil when enabled")
	}
}

func TestResilientClient_SuccessfulRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	config := ResilientClientConfig{
		EnableCircuitBreaker: true,
		MaxFailures:          5,
		CircuitTimeout:       30 * time.Second,
		MaxRetries:           3,
		InitialInterval:      100 * time.Millisecond,
		MaxInterval:          1 * time.Second,
	}
	client := NewResilientClient(5*time.Second, config)

	req, err := http.NewRequest("GET", server.URL, nil)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
}

func TestResilientClient_Retry5xxErrors(t *testing.T) {
	attempts := 0

	// Fails twice, then succeeds
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	config := ResilientClientConfig{
		EnableCircuitBreaker: false,
		MaxRetries:           3,
		InitialInterval:      10 * time.Millisecond,
		MaxInterval:          50 * time.Millisecond,
	}
	client := NewResilientClient(5*time.Second, config)

	req, err := http.NewRequest("GET", server.URL, nil)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Request failed after retries: %v", err)
	}
	defer resp.Body.Close()

	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
}

func TestResilientClient_NoRetryOn4xxErrors(t *testing.T) {
	attempts := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "bad request"}`))
	}))
	defer server.Close()

	config := ResilientClientConfig{
		EnableCircuitBreaker: false,
		MaxRetries:           3,
		InitialInterval:      10 * time.Millisecond,
		MaxInterval:          50 * time.Millisecond,
	}
	client := NewResilientClient(5*time.Second, config)

	req, err := http.NewRequest("GET", server.URL, nil)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	_, err = client.Do(req)
	if err == nil {
		t.Fatal("Expected error for 400 response")
	}

	if attempts != 1 {
		t.Errorf("Expected 1 attempt (no retry on 4xx), got %d", attempts)
	}
}

func TestResilientClient_Retry429(t *testing.T) {
	attempts := 0

	// Slack rate limits aggressively; 429 must be retried.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	config := ResilientClientConfig{
		EnableCircuitBreaker: false,
		MaxRetries:           3,
		InitialInterval:      10 * time.Millisecond,
		MaxInterval:          50 * time.Millisecond,
	}
	client := NewResilientClient(5*time.Second, config)

	req, err := http.NewRequest("GET", server.URL, nil)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Request failed after retries: %v", err)
	}
	defer resp.Body.Close()

	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
}

func TestResilientClient_CircuitBreakerOpens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	config := ResilientClientConfig{
		EnableCircuitBreaker: true,
		MaxFailures:          2,
		CircuitTimeout:       30 * time.Second,
		MaxRetries:           0,
		InitialInterval:      10 * time.Millisecond,
		MaxInterval:          50 * time.Millisecond,
	}
	client := NewResilientClient(5*time.Second, config)

	// Trip the breaker
	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest("GET", server.URL, nil)
		client.Do(req)
	}

	// Next request should fail fast without hitting the server
	req, _ := http.NewRequest("GET", server.URL, nil)
	_, err := client.Do(req)
	if err == nil {
		t.Fatal("Expected error with open circuit")
	}
}
