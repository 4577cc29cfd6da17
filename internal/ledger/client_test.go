package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, url string, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithBaseDelay(time.Millisecond)}, opts...)
	client, err := NewClient(url, "platform-test", []byte("test-secret"), nil, opts...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func serveRecords(t *testing.T, records []Record) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewEncoder(w).Encode(getResponse{Records: records, Total: len(records)}); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}
}

func TestQueryByTransactionRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		serveRecords(t, []Record{{TransactionID: "txn-1", StatusBuyerDiscom: DiscomCompleted}})(w, r)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	record, err := client.QueryByTransaction(context.Background(), "txn-1", "")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if record == nil {
		t.Fatal("expected record after retry")
	}
	if record.TransactionID != "txn-1" {
		t.Fatalf("unexpected transaction id %q", record.TransactionID)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 calls, got %d", got)
	}
}

func TestQueryByTransactionRetriesRequestTimeout(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			time.Sleep(300 * time.Millisecond)
			return
		}
		serveRecords(t, []Record{{TransactionID: "txn-slow", StatusBuyerDiscom: DiscomCompleted}})(w, r)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, WithTimeout(50*time.Millisecond))
	record, err := client.QueryByTransaction(context.Background(), "txn-slow", "")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if record == nil {
		t.Fatal("expected record after timed-out first attempt")
	}
	if record.TransactionID != "txn-slow" {
		t.Fatalf("unexpected transaction id %q", record.TransactionID)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 calls, got %d", got)
	}
}

func TestQueryByTransactionStopsOnCallerDeadline(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(300 * time.Millisecond)
		serveRecords(t, nil)(w, r)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := newTestClient(t, server.URL)
	record, err := client.QueryByTransaction(ctx, "txn-1", "")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if record != nil {
		t.Fatal("expected nil record when caller deadline expires")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 call, got %d", got)
	}
}

func TestQueryByTransactionDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	record, err := client.QueryByTransaction(context.Background(), "txn-1", "")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if record != nil {
		t.Fatal("expected nil record on client error")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 call, got %d", got)
	}
}

func TestQueryByTransactionExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, WithMaxAttempts(3))
	record, err := client.QueryByTransaction(context.Background(), "txn-1", "")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if record != nil {
		t.Fatal("expected nil record after exhausted retries")
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
}

func TestQueryByTransactionNoRecord(t *testing.T) {
	server := httptest.NewServer(serveRecords(t, nil))
	defer server.Close()

	client := newTestClient(t, server.URL)
	record, err := client.QueryByTransaction(context.Background(), "txn-missing", "")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if record != nil {
		t.Fatal("expected nil record")
	}
}

func TestQueryByTransactionEmptyID(t *testing.T) {
	client := newTestClient(t, "http://localhost:1")
	if _, err := client.QueryByTransaction(context.Background(), "", ""); err == nil {
		t.Fatal("expected error for empty transaction id")
	}
}

func TestQuerySendsBearerToken(t *testing.T) {
	var header atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header.Store(r.Header.Get("Authorization"))
		serveRecords(t, nil)(w, r)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	if _, err := client.QueryByTransaction(context.Background(), "txn-1", ""); err != nil {
		t.Fatalf("query: %v", err)
	}
	got, _ := header.Load().(string)
	if !strings.HasPrefix(got, "Bearer ") {
		t.Fatalf("expected bearer token, got %q", got)
	}
}

func TestQueryManyWalksPages(t *testing.T) {
	page := func(ids ...string) []Record {
		records := make([]Record, 0, len(ids))
		for _, id := range ids {
			records = append(records, Record{TransactionID: id})
		}
		return records
	}
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req getRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		calls.Add(1)
		var records []Record
		if req.Offset == 0 {
			records = page("txn-1", "txn-2")
		} else if req.Offset == 2 {
			records = page("txn-3")
		}
		_ = json.NewEncoder(w).Encode(getResponse{Records: records, Total: 3})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	records, err := client.QueryMany(context.Background(), Filter{Limit: 2})
	if err != nil {
		t.Fatalf("query many: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[2].TransactionID != "txn-3" {
		t.Fatalf("unexpected last record %q", records[2].TransactionID)
	}
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(serveRecords(t, nil))
	client := newTestClient(t, server.URL)

	health, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if !health.OK {
		t.Fatal("expected healthy ledger")
	}

	server.Close()
	health, err = client.Health(context.Background())
	if err != nil {
		t.Fatalf("health after close: %v", err)
	}
	if health.OK {
		t.Fatal("expected unhealthy ledger")
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return false }

func TestRetryableClassification(t *testing.T) {
	if retryable(&statusError{status: http.StatusBadRequest}) {
		t.Fatal("4xx must not be retryable")
	}
	if !retryable(&statusError{status: http.StatusServiceUnavailable}) {
		t.Fatal("5xx must be retryable")
	}
	if retryable(context.Canceled) {
		t.Fatal("cancellation must not be retryable")
	}
	if !retryable(timeoutError{}) {
		t.Fatal("request timeout must be retryable")
	}
	if retryable(nil) {
		t.Fatal("nil error must not be retryable")
	}
}
