package application

import (
	"context"
	"fmt"

	"github.com/cristianortiz/marketplace/internal/order/domain"
	"github.com/cristianortiz/marketplace/internal/shared/eventsourcing"
	"go.uber.org/zap"
)

// RefundReactor executes scheduled refunds and cancels the order once the provider confirms.
type RefundReactor struct {
	orders   OrderService
	payments PaymentGateway
}

func NewRefundReactor(orders OrderService, payments PaymentGateway) *RefundReactor {
	return &RefundReactor{orders: orders, payments: payments}
}

func (r *RefundReactor) EventTypes() []string {
	return []string{domain.RefundScheduled{}.EventType()}
}

func (r *RefundReactor) Handle(ctx context.Context, env eventsourcing.Envelope) error {
	ev, ok := env.Event.(domain.RefundScheduled)
	if !ok {
		return nil
	}
	refundID, err := r.payments.Refund(ctx, RefundRequest{
		OrderID:            ev.OrderID,
		PaymentReferenceID: ev.PaymentReferenceID,
		Amount:             ev.Amount,
	})
	if err != nil {
		log.Error("Refund failed, order stays in REFUND_PENDING",
			zap.String("orderID", ev.OrderID.String()),
			zap.String("paymentReferenceID", ev.PaymentReferenceID),
			zap.Error(err),
		)
		return fmt.Errorf("refund order %s: %w", ev.OrderID, err)
	}
	return r.orders.FinishRefund(ctx, ev.OrderID, refundID)
}

// TrackerReactor registers the shipment with the tracking provider once the seller
// enters a tracking number.
type TrackerReactor struct {
	orders  OrderService
	tracker TrackerGateway
}

func NewTrackerReactor(orders OrderService, tracker TrackerGateway) *TrackerReactor {
	return &TrackerReactor{orders: orders, tracker: tracker}
}

func (r *TrackerReactor) EventTypes() []string {
	return []string{domain.TrackingNumberProvided{}.EventType()}
}

func (r *TrackerReactor) Handle(ctx context.Context, env eventsourcing.Envelope) error {
	ev, ok := env.Event.(domain.TrackingNumberProvided)
	if !ok {
		return nil
	}
	trackerID, err := r.tracker.CreateTracker(ctx, ev.TrackingNumber, ev.OrderID.String())
	if err != nil {
		log.Error("Tracker creation failed",
			zap.String("orderID", ev.OrderID.String()),
			zap.String("trackingNumber", ev.TrackingNumber),
			zap.Error(err),
		)
		return fmt.Errorf("create tracker for order %s: %w", ev.OrderID, err)
	}
	return r.orders.AssignTrackingInfo(ctx, ev.OrderID, ev.TrackingNumber, trackerID, ev.EnteredAt)
}
