package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"energytrade-cloud/internal/observability/metrics"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
	defaultPageSize    = 100
	maxPages           = 50
)

// Client is a resilient REST client for the external settlement ledger.
//
// Read paths never surface transport errors: a query that fails after retries
// is logged and reported as "no data" so a flaky ledger cannot corrupt local
// settlement state.
type Client struct {
	baseURL     string
	platformID  string
	secret      []byte
	client      *http.Client
	maxAttempts int
	baseDelay   time.Duration
	logger      *log.Logger
}

// Option configures the client.
type Option func(*Client)

// WithMaxAttempts overrides the retry budget.
func WithMaxAttempts(attempts int) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.maxAttempts = attempts
		}
	}
}

// WithBaseDelay overrides the linear backoff base delay.
func WithBaseDelay(delay time.Duration) Option {
	return func(c *Client) {
		if delay > 0 {
			c.baseDelay = delay
		}
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.client.Timeout = timeout
		}
	}
}

// NewClient constructs a ledger client.
func NewClient(baseURL, platformID string, secret []byte, logger *log.Logger, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("ledger: empty base url")
	}
	if platformID == "" {
		return nil, errors.New("ledger: empty platform id")
	}
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		platformID:  platformID,
		secret:      secret,
		client:      &http.Client{Timeout: defaultTimeout},
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Health reports ledger reachability and round-trip latency.
type Health struct {
	OK        bool
	LatencyMS int64
}

type getRequest struct {
	TransactionID string `json:"transactionId,omitempty"`
	DiscomIDBuyer string `json:"discomIdBuyer,omitempty"`
	Limit         int    `json:"limit"`
	Offset        int    `json:"offset"`
	Sort          string `json:"sort,omitempty"`
	SortOrder     string `json:"sortOrder,omitempty"`
}

type getResponse struct {
	Records []Record `json:"records"`
	Total   int      `json:"total"`
}

// QueryByTransaction returns the ledger record for a transaction, or nil when
// the ledger has none or the query could not be completed.
func (c *Client) QueryByTransaction(ctx context.Context, transactionID, discomID string) (*Record, error) {
	if transactionID == "" {
		return nil, errors.New("ledger: empty transaction id")
	}
	start := time.Now()
	resp, err := c.fetch(ctx, getRequest{
		TransactionID: transactionID,
		DiscomIDBuyer: discomID,
		Limit:         1,
	})
	if err != nil {
		metrics.ObserveLedgerQuery(metrics.ResultError, time.Since(start))
		c.logf("ledger query failed: transaction=%s err=%v", transactionID, err)
		return nil, nil
	}
	metrics.ObserveLedgerQuery(metrics.ResultSuccess, time.Since(start))
	if len(resp.Records) == 0 {
		return nil, nil
	}
	record := resp.Records[0]
	return &record, nil
}

// QueryMany returns all ledger records matching the filter, walking pages up
// to an internal bound. A failed walk returns the records collected so far.
func (c *Client) QueryMany(ctx context.Context, filter Filter) ([]Record, error) {
	pageSize := filter.Limit
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	offset := filter.Offset
	var records []Record
	for page := 0; page < maxPages; page++ {
		start := time.Now()
		resp, err := c.fetch(ctx, getRequest{
			TransactionID: filter.TransactionID,
			DiscomIDBuyer: filter.DiscomIDBuyer,
			Limit:         pageSize,
			Offset:        offset,
			Sort:          filter.Sort,
			SortOrder:     filter.SortOrder,
		})
		if err != nil {
			metrics.ObserveLedgerQuery(metrics.ResultError, time.Since(start))
			c.logf("ledger list failed: offset=%d err=%v", offset, err)
			return records, nil
		}
		metrics.ObserveLedgerQuery(metrics.ResultSuccess, time.Since(start))
		records = append(records, resp.Records...)
		offset += len(resp.Records)
		if len(resp.Records) < pageSize || len(records) >= resp.Total {
			break
		}
	}
	return records, nil
}

// Health probes the ledger with a minimal query.
func (c *Client) Health(ctx context.Context) (Health, error) {
	start := time.Now()
	_, err := c.post(ctx, getRequest{Limit: 1})
	latency := time.Since(start)
	if err != nil {
		return Health{OK: false, LatencyMS: latency.Milliseconds()}, nil
	}
	return Health{OK: true, LatencyMS: latency.Milliseconds()}, nil
}

// fetch runs one ledger query with the retry policy: up to maxAttempts tries,
// retrying only classified-transient failures, linear backoff baseDelay*attempt.
func (c *Client) fetch(ctx context.Context, req getRequest) (*getResponse, error) {
	for attempt := 1; ; attempt++ {
		resp, err := c.post(ctx, req)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		if !retryable(err) {
			return nil, err
		}
		if attempt >= c.maxAttempts {
			return nil, fmt.Errorf("ledger: retries exhausted after %d attempts: %w", attempt, err)
		}
		metrics.IncLedgerRetry()
		if sleepErr := sleepContext(ctx, c.baseDelay*time.Duration(attempt)); sleepErr != nil {
			return nil, sleepErr
		}
	}
}

func (c *Client) post(ctx context.Context, body getRequest) (*getResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ledger/get", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if len(c.secret) > 0 {
		token, err := mintToken(c.platformID, c.secret, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, &statusError{status: resp.StatusCode}
	}
	var out getResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("ledger: http %d", e.status)
}

// retryable classifies transient failures: connection reset/refused, timeout,
// DNS failure, or a 5xx response. Client errors and cancellation are not
// retried. Per-request timeouts from http.Client also unwrap to
// context.DeadlineExceeded, so caller-side deadlines are handled in fetch via
// ctx.Err() rather than matched on the error here.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.status >= 500
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
