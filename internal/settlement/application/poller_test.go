package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"energytrade-cloud/internal/ledger"
	settlement "energytrade-cloud/internal/settlement/domain"
	"energytrade-cloud/internal/settlement/infrastructure/memory"
	"energytrade-cloud/internal/settlement/notify"
)

type stubLedger struct {
	records map[string]*ledger.Record
	errs    map[string]error
	calls   int
}

func (s *stubLedger) QueryByTransaction(ctx context.Context, transactionID, discomID string) (*ledger.Record, error) {
	s.calls++
	if err, ok := s.errs[transactionID]; ok {
		return nil, err
	}
	return s.records[transactionID], nil
}

type stubNotifier struct {
	events []notify.Event
	err    error
}

func (s *stubNotifier) Notify(ctx context.Context, event notify.Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func settledRecord(transactionID string, delivered float64) *ledger.Record {
	return &ledger.Record{
		TransactionID:      transactionID,
		StatusBuyerDiscom:  ledger.DiscomCompleted,
		StatusSellerDiscom: ledger.DiscomCompleted,
		BuyerMetrics: []ledger.ValidationMetric{
			{Type: ledger.MetricActualPushed, Value: delivered},
		},
	}
}

func newTestPoller(t *testing.T, lc *stubLedger, n notify.Notifier) (*Poller, *Store) {
	t.Helper()
	store, err := NewStore(memory.NewSettlementRepository(), nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	poller, err := NewPoller(store, lc, n, nil, nil, WithEnabled(false))
	if err != nil {
		t.Fatalf("NewPoller: %v", err)
	}
	return poller, store
}

func mustCreate(t *testing.T, store *Store, transactionID string, role settlement.Role, quantity float64) {
	t.Helper()
	_, err := store.CreateSettlement(context.Background(), CreateParams{
		TransactionID:      transactionID,
		OrderItemID:        "item-" + transactionID,
		Role:               role,
		ContractedQuantity: quantity,
	})
	if err != nil {
		t.Fatalf("CreateSettlement(%s, %s): %v", transactionID, role, err)
	}
}

func TestPollOnceEmpty(t *testing.T) {
	poller, _ := newTestPoller(t, &stubLedger{}, &stubNotifier{})

	summary := poller.PollOnce(context.Background())

	if summary.Checked != 0 || summary.Updated != 0 {
		t.Fatalf("expected empty summary, got %+v", summary)
	}
	if len(summary.NewlySettled) != 0 || len(summary.Errors) != 0 {
		t.Fatalf("expected no settlements and no errors, got %+v", summary)
	}
	if summary.RunID == "" {
		t.Fatal("expected a run id")
	}
}

func TestPollOnceSettlesAndNotifiesOnce(t *testing.T) {
	lc := &stubLedger{records: map[string]*ledger.Record{
		"txn-1": settledRecord("txn-1", 9.5),
	}}
	notifier := &stubNotifier{}
	poller, store := newTestPoller(t, lc, notifier)
	mustCreate(t, store, "txn-1", settlement.RoleBuyer, 10)

	summary := poller.PollOnce(context.Background())
	if summary.Checked != 1 || summary.Updated != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(summary.NewlySettled) != 1 || summary.NewlySettled[0] != "txn-1" {
		t.Fatalf("expected txn-1 newly settled, got %v", summary.NewlySettled)
	}
	if len(notifier.events) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifier.events))
	}
	event := notifier.events[0]
	if event.Transaction != "txn-1" {
		t.Fatalf("unexpected event transaction %q", event.Transaction)
	}
	if event.Settlement.DeviationKWh == nil || *event.Settlement.DeviationKWh != -0.5 {
		t.Fatalf("unexpected deviation %v", event.Settlement.DeviationKWh)
	}

	// A settled and notified leg drops out of the reconciliation set.
	again := poller.PollOnce(context.Background())
	if again.Checked != 0 {
		t.Fatalf("expected settled leg to be skipped, checked %d", again.Checked)
	}
	if len(notifier.events) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(notifier.events))
	}
}

func TestPollOnceRetriesFailedCallback(t *testing.T) {
	lc := &stubLedger{records: map[string]*ledger.Record{
		"txn-1": settledRecord("txn-1", 10),
	}}
	notifier := &stubNotifier{err: errors.New("webhook down")}
	poller, store := newTestPoller(t, lc, notifier)
	mustCreate(t, store, "txn-1", settlement.RoleSeller, 10)

	summary := poller.PollOnce(context.Background())
	if len(summary.Errors) != 1 {
		t.Fatalf("expected callback error in summary, got %v", summary.Errors)
	}

	leg, err := store.GetSettlement(context.Background(), "txn-1", settlement.RoleSeller)
	if err != nil {
		t.Fatalf("GetSettlement: %v", err)
	}
	if leg.OnSettleNotified {
		t.Fatal("leg must not be marked notified after a failed callback")
	}

	// The next cycle picks the settled-but-unnotified leg up again.
	notifier.err = nil
	again := poller.PollOnce(context.Background())
	if again.Checked != 1 {
		t.Fatalf("expected the leg to be rechecked, checked %d", again.Checked)
	}
	if len(notifier.events) != 1 {
		t.Fatalf("expected the retried notification, got %d", len(notifier.events))
	}
	leg, _ = store.GetSettlement(context.Background(), "txn-1", settlement.RoleSeller)
	if !leg.OnSettleNotified {
		t.Fatal("leg should be marked notified after the retry succeeds")
	}
}

func TestPollOnceIsolatesLegFailures(t *testing.T) {
	lc := &stubLedger{
		records: map[string]*ledger.Record{
			"txn-good": settledRecord("txn-good", 5),
		},
		errs: map[string]error{
			"txn-bad": errors.New("connection reset"),
		},
	}
	notifier := &stubNotifier{}
	poller, store := newTestPoller(t, lc, notifier)
	mustCreate(t, store, "txn-bad", settlement.RoleBuyer, 5)
	mustCreate(t, store, "txn-good", settlement.RoleBuyer, 5)

	summary := poller.PollOnce(context.Background())

	if summary.Checked != 2 {
		t.Fatalf("expected both legs checked, got %d", summary.Checked)
	}
	if summary.Updated != 1 {
		t.Fatalf("expected the healthy leg updated, got %d", summary.Updated)
	}
	if len(summary.Errors) != 1 {
		t.Fatalf("expected one error, got %v", summary.Errors)
	}
	if len(notifier.events) != 1 {
		t.Fatalf("expected the healthy leg notified, got %d", len(notifier.events))
	}
}

func TestPollOnceSkipsLegWithoutLedgerData(t *testing.T) {
	poller, store := newTestPoller(t, &stubLedger{}, &stubNotifier{})
	mustCreate(t, store, "txn-1", settlement.RoleBuyer, 5)

	summary := poller.PollOnce(context.Background())

	if summary.Checked != 1 || summary.Updated != 0 {
		t.Fatalf("expected check without update, got %+v", summary)
	}
	if len(summary.Errors) != 0 {
		t.Fatalf("missing ledger data is not an error: %v", summary.Errors)
	}
}

func TestPollOnceRejectsOverlappingCycle(t *testing.T) {
	poller, _ := newTestPoller(t, &stubLedger{}, &stubNotifier{})

	poller.cycleRunning.Store(true)
	summary := poller.PollOnce(context.Background())
	if summary.RunID != "" || summary.Checked != 0 {
		t.Fatalf("overlapping cycle must be a no-op, got %+v", summary)
	}
	poller.cycleRunning.Store(false)

	summary = poller.PollOnce(context.Background())
	if summary.RunID == "" {
		t.Fatal("poller should recover once the previous cycle finished")
	}
}

func TestRefreshSettlement(t *testing.T) {
	lc := &stubLedger{records: map[string]*ledger.Record{
		"txn-1": settledRecord("txn-1", 10),
	}}
	notifier := &stubNotifier{}
	poller, store := newTestPoller(t, lc, notifier)
	mustCreate(t, store, "txn-1", settlement.RoleBuyer, 10)
	mustCreate(t, store, "txn-1", settlement.RoleSeller, 10)

	legs, err := poller.RefreshSettlement(context.Background(), "txn-1")
	if err != nil {
		t.Fatalf("RefreshSettlement: %v", err)
	}
	if len(legs) != 2 {
		t.Fatalf("expected both legs refreshed, got %d", len(legs))
	}
	for _, leg := range legs {
		if leg.Status != settlement.StatusSettled {
			t.Fatalf("leg %s not settled: %s", leg.Role, leg.Status)
		}
		if !leg.OnSettleNotified {
			t.Fatalf("leg %s not marked notified", leg.Role)
		}
	}
	if len(notifier.events) != 2 {
		t.Fatalf("expected one notification per leg, got %d", len(notifier.events))
	}
}

func TestRefreshSettlementNoLedgerData(t *testing.T) {
	poller, store := newTestPoller(t, &stubLedger{}, &stubNotifier{})
	mustCreate(t, store, "txn-1", settlement.RoleBuyer, 5)

	legs, err := poller.RefreshSettlement(context.Background(), "txn-1")
	if err != nil {
		t.Fatalf("RefreshSettlement: %v", err)
	}
	if legs != nil {
		t.Fatalf("expected nil when the ledger has no record, got %v", legs)
	}
}

func TestRefreshSettlementEmptyID(t *testing.T) {
	poller, _ := newTestPoller(t, &stubLedger{}, &stubNotifier{})

	if _, err := poller.RefreshSettlement(context.Background(), ""); !errors.Is(err, settlement.ErrEmptyTransactionID) {
		t.Fatalf("expected ErrEmptyTransactionID, got %v", err)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	store, err := NewStore(memory.NewSettlementRepository(), nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	poller, err := NewPoller(store, &stubLedger{}, &stubNotifier{}, nil, nil,
		WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewPoller: %v", err)
	}

	ctx := context.Background()
	poller.Start(ctx)
	poller.Start(ctx)
	if status := poller.GetPollingStatus(); !status.Running {
		t.Fatal("expected poller running after Start")
	}
	poller.Stop()
	poller.Stop()
	if status := poller.GetPollingStatus(); status.Running {
		t.Fatal("expected poller stopped after Stop")
	}
}

func TestContextCancelStopsReportingRunning(t *testing.T) {
	store, err := NewStore(memory.NewSettlementRepository(), nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	poller, err := NewPoller(store, &stubLedger{}, &stubNotifier{}, nil, nil,
		WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewPoller: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	poller.Start(ctx)
	if status := poller.GetPollingStatus(); !status.Running {
		t.Fatal("expected poller running after Start")
	}

	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for poller.GetPollingStatus().Running {
		if time.Now().After(deadline) {
			t.Fatal("poller still reports running after context cancellation")
		}
		time.Sleep(time.Millisecond)
	}

	poller.Stop()
}

func TestDisabledPollerNeverStarts(t *testing.T) {
	poller, _ := newTestPoller(t, &stubLedger{}, &stubNotifier{})

	poller.Start(context.Background())
	if status := poller.GetPollingStatus(); status.Running {
		t.Fatal("disabled poller must not start")
	}
	poller.Stop()
}
