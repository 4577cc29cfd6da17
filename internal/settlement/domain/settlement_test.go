package settlement

import (
	"testing"
	"time"
)

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		buyer  DiscomStatus
		seller DiscomStatus
		want   Status
	}{
		{DiscomCompleted, DiscomCompleted, StatusSettled},
		{DiscomCompleted, DiscomPending, StatusBuyerCompleted},
		{DiscomPending, DiscomCompleted, StatusSellerCompleted},
		{DiscomPending, DiscomPending, StatusPending},
	}
	for _, tc := range cases {
		if got := DeriveStatus(tc.buyer, tc.seller); got != tc.want {
			t.Errorf("DeriveStatus(%s, %s) = %s, want %s", tc.buyer, tc.seller, got, tc.want)
		}
	}
}

func TestApplyLedgerDeviation(t *testing.T) {
	s := &Settlement{TransactionID: "txn-1", Role: RoleSeller, ContractedQuantity: 10}
	actual := 9.5
	now := time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC)
	s.ApplyLedger(LedgerUpdate{
		BuyerDiscomStatus:  DiscomPending,
		SellerDiscomStatus: DiscomCompleted,
		ActualDelivered:    &actual,
		SyncedAt:           now,
	}, now)

	if s.DeviationKWh == nil {
		t.Fatal("expected deviation")
	}
	if *s.DeviationKWh != -0.5 {
		t.Fatalf("expected deviation -0.5, got %.3f", *s.DeviationKWh)
	}
	if s.Status != StatusSellerCompleted {
		t.Fatalf("expected SELLER_COMPLETED, got %s", s.Status)
	}
	if s.SettledAt != nil {
		t.Fatal("partial settlement must not carry settled_at")
	}
}

func TestApplyLedgerNoMetricsClearsDeviation(t *testing.T) {
	actual := 9.5
	deviation := -0.5
	s := &Settlement{
		TransactionID:      "txn-1",
		Role:               RoleSeller,
		ContractedQuantity: 10,
		ActualDelivered:    &actual,
		DeviationKWh:       &deviation,
	}
	s.ApplyLedger(LedgerUpdate{
		BuyerDiscomStatus:  DiscomPending,
		SellerDiscomStatus: DiscomPending,
		SyncedAt:           time.Now().UTC(),
	}, time.Now().UTC())

	if s.ActualDelivered != nil || s.DeviationKWh != nil {
		t.Fatal("snapshot without metrics must clear derived delivery fields")
	}
}

func TestApplyLedgerSettlesExactlyOnce(t *testing.T) {
	s := &Settlement{TransactionID: "txn-1", Role: RoleBuyer, ContractedQuantity: 10}
	settledUpdate := LedgerUpdate{
		BuyerDiscomStatus:  DiscomCompleted,
		SellerDiscomStatus: DiscomCompleted,
	}

	first := time.Date(2026, time.March, 14, 7, 0, 0, 0, time.UTC)
	if !s.ApplyLedger(settledUpdate, first) {
		t.Fatal("first settling snapshot must report newly settled")
	}
	if s.SettledAt == nil || !s.SettledAt.Equal(first) {
		t.Fatalf("expected settled_at %v, got %v", first, s.SettledAt)
	}
	firstCycle := s.SettlementCycleID
	if firstCycle == "" {
		t.Fatal("expected cycle id assigned")
	}

	second := first.Add(13 * time.Hour)
	if s.ApplyLedger(settledUpdate, second) {
		t.Fatal("second settling snapshot must not report newly settled")
	}
	if !s.SettledAt.Equal(first) {
		t.Fatalf("settled_at overwritten: %v", s.SettledAt)
	}
	if s.SettlementCycleID != firstCycle {
		t.Fatalf("cycle id overwritten: %s", s.SettlementCycleID)
	}
}

func TestCycleID(t *testing.T) {
	cases := []struct {
		at   time.Time
		want string
	}{
		{time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC), "20260314-C1"},
		{time.Date(2026, time.March, 14, 5, 59, 0, 0, time.UTC), "20260314-C1"},
		{time.Date(2026, time.March, 14, 6, 0, 0, 0, time.UTC), "20260314-C2"},
		{time.Date(2026, time.March, 14, 13, 0, 0, 0, time.UTC), "20260314-C3"},
		{time.Date(2026, time.March, 14, 23, 59, 0, 0, time.UTC), "20260314-C4"},
	}
	for _, tc := range cases {
		if got := CycleID(tc.at); got != tc.want {
			t.Errorf("CycleID(%v) = %s, want %s", tc.at, got, tc.want)
		}
	}
}
