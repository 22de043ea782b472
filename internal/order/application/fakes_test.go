package application

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cristianortiz/marketplace/internal/order/domain"
	"github.com/cristianortiz/marketplace/internal/shared/clock"
	"github.com/cristianortiz/marketplace/internal/shared/deadline"
	"github.com/cristianortiz/marketplace/internal/shared/eventsourcing"
	"github.com/cristianortiz/marketplace/internal/shared/saga"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

type fakePayments struct {
	mu           sync.Mutex
	reserves     []ReserveFundsRequest
	refunds      []RefundRequest
	transfers    []TransferRequest
	transferErrs map[domain.SettlementKind]error
}

func (f *fakePayments) ReserveFunds(_ context.Context, req ReserveFundsRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reserves = append(f.reserves, req)
	return "pi_" + req.OrderID.String(), nil
}

func (f *fakePayments) Refund(_ context.Context, req RefundRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refunds = append(f.refunds, req)
	return "re_" + req.OrderID.String(), nil
}

func (f *fakePayments) Transfer(_ context.Context, req TransferRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.transferErrs[req.Kind]; err != nil {
		return "", err
	}
	f.transfers = append(f.transfers, req)
	return fmt.Sprintf("tr_%s_%s", req.Kind, req.OrderID), nil
}

func (f *fakePayments) transfersByKind() map[domain.SettlementKind]TransferRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[domain.SettlementKind]TransferRequest)
	for _, t := range f.transfers {
		out[t.Kind] = t
	}
	return out
}

type fakeTracker struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeTracker) CreateTracker(_ context.Context, trackingNumber, shipmentReference string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.calls = append(f.calls, trackingNumber+"/"+shipmentReference)
	return "tracker-" + trackingNumber, nil
}

type fixture struct {
	store     *eventsourcing.MemoryStore
	bus       *eventsourcing.Bus
	scheduler *deadline.MemoryScheduler
	sagas     *saga.MemoryStore
	payments  *fakePayments
	tracker   *fakeTracker
	service   OrderService
	repo      *OrderRepository
}

func newFixture() *fixture {
	clk := clock.NewFixed(now)
	f := &fixture{
		store:    eventsourcing.NewMemoryStore(),
		bus:      eventsourcing.NewBus(),
		sagas:    saga.NewMemoryStore(),
		payments: &fakePayments{transferErrs: map[domain.SettlementKind]error{}},
		tracker:  &fakeTracker{},
	}
	f.repo = NewOrderRepository(f.store, f.bus)

	dispatcher := deadline.NewDispatcher()
	RegisterDeadlines(dispatcher, f.repo, clk)
	f.scheduler = deadline.NewMemoryScheduler(dispatcher, clk)

	f.service = NewOrderService(f.repo, f.scheduler, f.payments, Policy{
		RefundPeriod:   14 * 24 * time.Hour,
		CommissionRate: decimal.RequireFromString("0.10"),
	}, clk)

	settlement := NewSettlementHandler(f.payments, f.bus, "acct_platform", clk)
	manager := NewFinalizeOrderManager(f.sagas, settlement, f.service)
	refunds := NewRefundReactor(f.service, f.payments)
	trackers := NewTrackerReactor(f.service, f.tracker)

	f.bus.Subscribe("finalize-order", manager.Handle, manager.EventTypes()...)
	f.bus.Subscribe("refund", refunds.Handle, refunds.EventTypes()...)
	f.bus.Subscribe("tracker", trackers.Handle, trackers.EventTypes()...)
	return f
}

func (f *fixture) reserve(t *testing.T) uuid.UUID {
	t.Helper()
	order, err := f.service.ReserveFunds(context.Background(), ReserveFundsDTO{
		BuyerID:               "buyer-1",
		PaymentMethodID:       "pm_card",
		NetAmount:             decimal.RequireFromString("100.00"),
		SellerID:              "seller-1",
		SellerPayoutAccountID: "acct_seller",
	})
	require.NoError(t, err)
	return order.OrderID
}

func (f *fixture) ship(t *testing.T, id uuid.UUID) {
	t.Helper()
	require.NoError(t, f.service.EnterTrackingNumber(context.Background(), id, "TRK1"))
}

func (f *fixture) status(t *testing.T, id uuid.UUID) string {
	t.Helper()
	o, err := f.service.GetOrder(context.Background(), id)
	require.NoError(t, err)
	return o.Status
}

func (f *fixture) countEvents(id uuid.UUID, eventType string) int {
	n := 0
	for _, e := range f.store.Events(domain.AggregateType, id) {
		if e.EventType() == eventType {
			n++
		}
	}
	return n
}
