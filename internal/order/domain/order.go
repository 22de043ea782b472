package domain

import (
	"time"

	"github.com/cristianortiz/marketplace/internal/shared/eventsourcing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateType names order streams in the event store.
const AggregateType = "Order"

// ShippingDeadline is the deadline that refunds the buyer when the seller never ships.
const ShippingDeadline = "shipping-deadline-not-met"

type ShippingDeadlinePayload struct {
	OrderID            uuid.UUID `json:"orderId"`
	PaymentReferenceID string    `json:"paymentReferenceId"`
	DueAt              time.Time `json:"dueAt"`
}

// FundReservation is set once, when funds are reserved, and never changes.
type FundReservation struct {
	PaymentReferenceID    string
	PaymentMethodID       string
	RefundDeadlineHandle  string
	NetAmount             decimal.Decimal
	ReservedAt            time.Time
	SellerID              string
	SellerPayoutAccountID string
}

type TrackingInfo struct {
	TrackingNumber       string
	ExternalTrackerID    string
	CreatedAt            time.Time
	LastMilestone        Milestone
	LastEventDescription string
	LastEventTime        time.Time
}

type CompletionInfo struct {
	CompletedAt          time.Time
	PayoutTransferID     string
	CommissionTransferID string
}

// Order is the fulfillment aggregate, rebuilt by folding its events.
type Order struct {
	ID             uuid.UUID
	Status         Status
	CommissionRate decimal.Decimal
	Reservation    *FundReservation
	// TrackingNumber is known from TrackingNumberProvided, before the tracker exists
	TrackingNumber string
	Tracking       *TrackingInfo
	Completion     *CompletionInfo
	RefundID       string
	DeliveredAt    *time.Time

	trackingEvents map[string]struct{}
}

func NewOrder() *Order {
	return &Order{}
}

func (o *Order) Exists() bool {
	return o.ID != uuid.Nil
}

// HasTrackingEvent reports whether a tracking update with eventID was already applied.
func (o *Order) HasTrackingEvent(eventID string) bool {
	_, ok := o.trackingEvents[eventID]
	return ok
}

// Split returns the commission and payout for the reserved net amount.
func (o *Order) Split() (commission, payout decimal.Decimal) {
	if o.Reservation == nil {
		return decimal.Zero, decimal.Zero
	}
	return SplitCommission(o.Reservation.NetAmount, o.CommissionRate)
}

func (o *Order) Apply(e eventsourcing.Event) {
	switch ev := e.(type) {
	case FundsReserved:
		o.ID = ev.OrderID
		o.Status = StatusFundsReserved
		o.CommissionRate = ev.CommissionRate
		o.Reservation = &FundReservation{
			PaymentReferenceID:    ev.PaymentReferenceID,
			PaymentMethodID:       ev.PaymentMethodID,
			RefundDeadlineHandle:  ev.RefundDeadlineHandle,
			NetAmount:             ev.NetAmount,
			ReservedAt:            ev.ReservedAt,
			SellerID:              ev.SellerID,
			SellerPayoutAccountID: ev.SellerPayoutAccountID,
		}
	case TrackingNumberProvided:
		o.Status = StatusTrackingNumberProvided
		o.TrackingNumber = ev.TrackingNumber
	case TrackingInfoAssigned:
		o.Status = StatusTrackingInProgress
		o.TrackingNumber = ev.TrackingNumber
		o.Tracking = &TrackingInfo{
			TrackingNumber:    ev.TrackingNumber,
			ExternalTrackerID: ev.ExternalTrackerID,
			CreatedAt:         ev.EnteredAt,
			LastMilestone:     MilestonePending,
			LastEventTime:     ev.EnteredAt,
		}
	case TrackingStatusUpdated:
		if o.trackingEvents == nil {
			o.trackingEvents = make(map[string]struct{})
		}
		o.trackingEvents[ev.EventID] = struct{}{}
		if o.Tracking != nil {
			o.Tracking.LastMilestone = ev.Milestone
			o.Tracking.LastEventDescription = ev.Description
			o.Tracking.LastEventTime = ev.OccurredAt
		}
	case RefundScheduled:
		o.Status = StatusRefundPending
	case OrderDelivered:
		deliveredAt := ev.DeliveredAt
		o.Status = StatusDelivered
		o.DeliveredAt = &deliveredAt
	case OrderCancelled:
		o.Status = StatusCancelled
		o.RefundID = ev.RefundID
	case OrderCompleted:
		o.Status = StatusCompleted
		o.Completion = &CompletionInfo{
			CompletedAt:          ev.CompletedAt,
			PayoutTransferID:     ev.PayoutTransferID,
			CommissionTransferID: ev.CommissionTransferID,
		}
	}
}

func (o *Order) require(expected Status) error {
	if !o.Exists() {
		return ErrOrderNotFound
	}
	if o.Status != expected {
		return &InvalidOrderStateError{OrderID: o.ID, Expected: expected, Actual: o.Status}
	}
	return nil
}
