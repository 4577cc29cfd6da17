package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"energytrade-cloud/internal/ledger"
	settlement "energytrade-cloud/internal/settlement/domain"
	pollmetrics "energytrade-cloud/internal/settlement/metrics"
	"energytrade-cloud/internal/settlement/notify"
)

const defaultPollInterval = time.Minute

// LedgerQuerier is the slice of the ledger client the poller needs.
type LedgerQuerier interface {
	QueryByTransaction(ctx context.Context, transactionID, discomID string) (*ledger.Record, error)
}

// Summary reports one poll cycle.
type Summary struct {
	RunID        string
	Checked      int
	Updated      int
	NewlySettled []string
	Errors       []string
}

// Status reports poller state for the routing layer.
type Status struct {
	Enabled         bool
	Running         bool
	CycleInProgress bool
	Interval        time.Duration
	LastRunAt       *time.Time
	LastRunID       string
}

// Poller periodically reconciles local settlement state with the ledger and
// fires the on-settle callback exactly once per settlement.
type Poller struct {
	store    *Store
	ledger   LedgerQuerier
	notifier notify.Notifier
	metrics  *pollmetrics.Metrics
	logger   *log.Logger
	interval time.Duration
	enabled  bool
	clock    func() time.Time

	// cycleRunning guards against overlapping cycles. Owned by this instance
	// so pollers in different tests never interfere.
	cycleRunning atomic.Bool

	mu        sync.Mutex
	stop      chan struct{}
	done      chan struct{}
	lastRunAt *time.Time
	lastRunID string
}

// PollerOption configures the poller.
type PollerOption func(*Poller)

// WithInterval overrides the poll interval.
func WithInterval(interval time.Duration) PollerOption {
	return func(p *Poller) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

// WithEnabled toggles scheduled polling. When disabled, Start and Stop are
// no-ops; manual PollOnce still works.
func WithEnabled(enabled bool) PollerOption {
	return func(p *Poller) {
		p.enabled = enabled
	}
}

// WithPollerClock overrides the time source.
func WithPollerClock(clock func() time.Time) PollerOption {
	return func(p *Poller) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// NewPoller constructs a poller.
func NewPoller(store *Store, ledgerClient LedgerQuerier, notifier notify.Notifier, metrics *pollmetrics.Metrics, logger *log.Logger, opts ...PollerOption) (*Poller, error) {
	if store == nil {
		return nil, errors.New("settlement poller: nil store")
	}
	if ledgerClient == nil {
		return nil, errors.New("settlement poller: nil ledger client")
	}
	p := &Poller{
		store:    store,
		ledger:   ledgerClient,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		interval: defaultPollInterval,
		enabled:  true,
		clock:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// PollOnce runs one reconciliation cycle. A call arriving while a cycle is in
// progress is a no-op returning an empty summary.
func (p *Poller) PollOnce(ctx context.Context) Summary {
	if !p.cycleRunning.CompareAndSwap(false, true) {
		p.logf("settlement poll skipped: cycle already in progress")
		return Summary{}
	}
	defer p.cycleRunning.Store(false)

	summary := Summary{RunID: uuid.NewString()}
	start := p.clock()
	if p.metrics != nil {
		p.metrics.Cycles.Inc()
		defer func() {
			p.metrics.CycleDuration.Observe(p.clock().Sub(start).Seconds())
		}()
	}
	defer func() {
		p.mu.Lock()
		finished := p.clock()
		p.lastRunAt = &finished
		p.lastRunID = summary.RunID
		p.mu.Unlock()
	}()

	pending, err := p.store.ListPendingReconciliation(ctx)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("list settlements: %v", err))
		p.countError()
		return summary
	}

	for _, leg := range pending {
		summary.Checked++
		if p.metrics != nil {
			p.metrics.Checked.Inc()
		}
		p.reconcileLeg(ctx, leg, &summary)
	}

	p.logf("settlement poll done: run=%s checked=%d updated=%d settled=%d errors=%d",
		summary.RunID, summary.Checked, summary.Updated, len(summary.NewlySettled), len(summary.Errors))
	return summary
}

// reconcileLeg handles one settlement leg in isolation: any failure is
// recorded and must not abort the rest of the cycle.
func (p *Poller) reconcileLeg(ctx context.Context, leg *settlement.Settlement, summary *Summary) {
	record, err := p.ledger.QueryByTransaction(ctx, leg.TransactionID, buyerDiscomFilter(leg))
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("txn %s role %s: ledger query: %v", leg.TransactionID, leg.Role, err))
		p.countError()
		return
	}
	if record == nil {
		return
	}

	result, err := p.store.ApplyToLeg(ctx, leg.TransactionID, leg.Role, record)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("txn %s role %s: store update: %v", leg.TransactionID, leg.Role, err))
		p.countError()
		return
	}
	summary.Updated++
	if p.metrics != nil {
		p.metrics.Updated.Inc()
	}
	if result.NewlySettled {
		summary.NewlySettled = append(summary.NewlySettled, leg.TransactionID)
		if p.metrics != nil {
			p.metrics.NewlySettled.Inc()
		}
	}

	updated := result.Settlement
	if !updated.Status.Terminal() || updated.OnSettleNotified {
		return
	}
	if err := p.sendOnSettle(ctx, updated); err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("txn %s role %s: on-settle callback: %v", leg.TransactionID, leg.Role, err))
		p.countError()
		return
	}
	if err := p.store.MarkOnSettleNotified(ctx, leg.TransactionID, leg.Role); err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("txn %s role %s: mark notified: %v", leg.TransactionID, leg.Role, err))
		p.countError()
	}
}

// RefreshSettlement reconciles a single transaction on demand. Returns nil
// when the ledger has no data for it.
func (p *Poller) RefreshSettlement(ctx context.Context, transactionID string) ([]*settlement.Settlement, error) {
	if transactionID == "" {
		return nil, settlement.ErrEmptyTransactionID
	}
	record, err := p.ledger.QueryByTransaction(ctx, transactionID, "")
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}

	results, err := p.store.UpdateFromLedger(ctx, transactionID, record)
	if err != nil {
		return nil, err
	}

	updated := make([]*settlement.Settlement, 0, len(results))
	for _, result := range results {
		leg := result.Settlement
		if leg.Status.Terminal() && !leg.OnSettleNotified {
			if err := p.sendOnSettle(ctx, leg); err != nil {
				p.logf("on-settle callback failed: txn=%s role=%s err=%v", leg.TransactionID, leg.Role, err)
			} else if err := p.store.MarkOnSettleNotified(ctx, leg.TransactionID, leg.Role); err != nil {
				p.logf("mark notified failed: txn=%s role=%s err=%v", leg.TransactionID, leg.Role, err)
			} else {
				leg.OnSettleNotified = true
			}
		}
		updated = append(updated, leg)
	}
	return updated, nil
}

// Start launches the repeating poll timer. Idempotent; a no-op when the
// poller is disabled by configuration.
func (p *Poller) Start(ctx context.Context) {
	if p == nil || !p.enabled || p.interval <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return
	}
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.run(ctx, p.stop, p.done)
	p.logf("settlement polling started: interval=%s", p.interval)
}

// Stop halts the repeating timer. Idempotent; a no-op when disabled or not
// started.
func (p *Poller) Stop() {
	if p == nil || !p.enabled {
		return
	}
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.stop, p.done = nil, nil
	p.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
	p.logf("settlement polling stopped")
}

func (p *Poller) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

// GetPollingStatus reports current poller state. Liveness is read from the
// run goroutine's done channel, which closes on every exit path including
// start-context cancellation.
func (p *Poller) GetPollingStatus() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	running := false
	if p.done != nil {
		select {
		case <-p.done:
		default:
			running = true
		}
	}
	status := Status{
		Enabled:         p.enabled,
		Running:         running,
		CycleInProgress: p.cycleRunning.Load(),
		Interval:        p.interval,
		LastRunID:       p.lastRunID,
	}
	if p.lastRunAt != nil {
		at := *p.lastRunAt
		status.LastRunAt = &at
	}
	return status
}

func (p *Poller) sendOnSettle(ctx context.Context, leg *settlement.Settlement) error {
	if p.notifier == nil {
		return errors.New("settlement poller: no notifier configured")
	}
	event := notify.Event{
		EventID:     uuid.NewString(),
		OccurredAt:  p.clock(),
		Transaction: leg.TransactionID,
		Settlement: notify.SettlementPayload{
			OrderItemID:            leg.OrderItemID,
			Role:                   string(leg.Role),
			SettlementStatus:       string(leg.Status),
			BuyerDiscomStatus:      string(leg.BuyerDiscomStatus),
			SellerDiscomStatus:     string(leg.SellerDiscomStatus),
			ContractedQuantity:     leg.ContractedQuantity,
			ActualDelivered:        leg.ActualDelivered,
			DeviationKWh:           leg.DeviationKWh,
			SettlementCycleID:      leg.SettlementCycleID,
			SettledAt:              leg.SettledAt,
			CounterpartyPlatformID: leg.CounterpartyPlatformID,
		},
	}
	err := p.notifier.Notify(ctx, event)
	if p.metrics != nil {
		result := "success"
		if err != nil {
			result = "error"
		}
		p.metrics.Notifications.WithLabelValues(result).Inc()
	}
	return err
}

// buyerDiscomFilter narrows the ledger query to the buyer-side discom when
// the leg knows it: for a seller leg the counterparty is the buyer.
func buyerDiscomFilter(leg *settlement.Settlement) string {
	if leg.Role == settlement.RoleSeller && leg.CounterpartyDiscomID != nil {
		return *leg.CounterpartyDiscomID
	}
	return ""
}

func (p *Poller) countError() {
	if p.metrics != nil {
		p.metrics.Errors.Inc()
	}
}

func (p *Poller) logf(format string, args ...any) {
	if p.logger != nil {
		p.logger.Printf(format, args...)
	}
}
