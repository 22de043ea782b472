package domain

import (
	"time"

	"github.com/cristianortiz/marketplace/internal/shared/eventsourcing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RefundReason says why an order is being refunded.
type RefundReason string

const (
	RefundShippingDeadlineNotMet RefundReason = "SHIPPING_DEADLINE_NOT_MET"
	RefundShipmentException      RefundReason = "SHIPMENT_EXCEPTION"
)

type FundsReserved struct {
	OrderID               uuid.UUID       `json:"orderId"`
	PaymentReferenceID    string          `json:"paymentReferenceId"`
	PaymentMethodID       string          `json:"paymentMethodId"`
	RefundDeadlineHandle  string          `json:"refundDeadlineHandle"`
	NetAmount             decimal.Decimal `json:"netAmount"`
	ReservedAt            time.Time       `json:"reservedAt"`
	SellerID              string          `json:"sellerId"`
	SellerPayoutAccountID string          `json:"sellerPayoutAccountId"`
	CommissionRate        decimal.Decimal `json:"commissionRate"`
}

type TrackingNumberProvided struct {
	OrderID        uuid.UUID `json:"orderId"`
	TrackingNumber string    `json:"trackingNumber"`
	EnteredAt      time.Time `json:"enteredAt"`
}

type TrackingInfoAssigned struct {
	OrderID           uuid.UUID `json:"orderId"`
	TrackingNumber    string    `json:"trackingNumber"`
	ExternalTrackerID string    `json:"externalTrackerId"`
	EnteredAt         time.Time `json:"enteredAt"`
}

type TrackingStatusUpdated struct {
	OrderID     uuid.UUID `json:"orderId"`
	EventID     string    `json:"eventId"`
	Milestone   Milestone `json:"milestone"`
	Description string    `json:"description"`
	OccurredAt  time.Time `json:"occurredAt"`
}

type RefundScheduled struct {
	OrderID            uuid.UUID       `json:"orderId"`
	PaymentReferenceID string          `json:"paymentReferenceId"`
	Amount             decimal.Decimal `json:"amount"`
	Reason             RefundReason    `json:"reason"`
	ScheduledAt        time.Time       `json:"scheduledAt"`
}

type OrderDelivered struct {
	OrderID               uuid.UUID       `json:"orderId"`
	SellerPayoutAccountID string          `json:"sellerPayoutAccountId"`
	Payout                decimal.Decimal `json:"payout"`
	Commission            decimal.Decimal `json:"commission"`
	DeliveredAt           time.Time       `json:"deliveredAt"`
}

type OrderCancelled struct {
	OrderID     uuid.UUID `json:"orderId"`
	RefundID    string    `json:"refundId"`
	CancelledAt time.Time `json:"cancelledAt"`
}

type OrderCompleted struct {
	OrderID              uuid.UUID `json:"orderId"`
	PayoutTransferID     string    `json:"payoutTransferId"`
	CommissionTransferID string    `json:"commissionTransferId"`
	CompletedAt          time.Time `json:"completedAt"`
}

func (FundsReserved) EventType() string          { return "FundsReserved" }
func (TrackingNumberProvided) EventType() string { return "TrackingNumberProvided" }
func (TrackingInfoAssigned) EventType() string   { return "TrackingInfoAssigned" }
func (TrackingStatusUpdated) EventType() string  { return "TrackingStatusUpdated" }
func (RefundScheduled) EventType() string        { return "RefundScheduled" }
func (OrderDelivered) EventType() string         { return "OrderDelivered" }
func (OrderCancelled) EventType() string         { return "OrderCancelled" }
func (OrderCompleted) EventType() string         { return "OrderCompleted" }

// SettlementAggregateType tags settlement events on the bus. They are correlated
// by order id but are not part of the order stream.
const SettlementAggregateType = "OrderSettlement"

// SettlementKind names one leg of the order payout.
type SettlementKind string

const (
	SettlementCommission SettlementKind = "COMMISSION"
	SettlementPayout     SettlementKind = "PAYOUT"
)

type CommissionDeducted struct {
	OrderID    uuid.UUID `json:"orderId"`
	TransferID string    `json:"transferId"`
}

type PaymentTransferred struct {
	OrderID    uuid.UUID `json:"orderId"`
	TransferID string    `json:"transferId"`
}

// SettlementFailed reports a transfer the payment provider refused. The order is
// left as it is until someone looks at it.
type SettlementFailed struct {
	OrderID uuid.UUID      `json:"orderId"`
	Kind    SettlementKind `json:"kind"`
	Reason  string         `json:"reason"`
}

func (CommissionDeducted) EventType() string { return "CommissionDeducted" }
func (PaymentTransferred) EventType() string { return "PaymentTransferred" }
func (SettlementFailed) EventType() string   { return "SettlementFailed" }

// RegisterEvents adds every order and settlement event to r.
func RegisterEvents(r *eventsourcing.Registry) {
	eventsourcing.Register[FundsReserved](r)
	eventsourcing.Register[TrackingNumberProvided](r)
	eventsourcing.Register[TrackingInfoAssigned](r)
	eventsourcing.Register[TrackingStatusUpdated](r)
	eventsourcing.Register[RefundScheduled](r)
	eventsourcing.Register[OrderDelivered](r)
	eventsourcing.Register[OrderCancelled](r)
	eventsourcing.Register[OrderCompleted](r)
	eventsourcing.Register[CommissionDeducted](r)
	eventsourcing.Register[PaymentTransferred](r)
	eventsourcing.Register[SettlementFailed](r)
}
