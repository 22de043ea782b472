package domain

import (
	"strings"
	"time"

	"github.com/cristianortiz/marketplace/internal/shared/eventsourcing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AssignFundReservation struct {
	OrderID               uuid.UUID
	PaymentReferenceID    string
	PaymentMethodID       string
	NetAmount             decimal.Decimal
	ReservedAt            time.Time
	SellerID              string
	SellerPayoutAccountID string
}

// Validate checks the command on its own, before a deadline is scheduled for it.
func (c AssignFundReservation) Validate() error {
	if !ValidAmount(c.NetAmount) {
		return ErrInvalidAmount
	}
	if c.PaymentReferenceID == "" || c.SellerID == "" || c.SellerPayoutAccountID == "" {
		return ErrInvalidReservation
	}
	return nil
}

// ShippingDeadlineAt is when the seller must have entered a tracking number.
func (c AssignFundReservation) ShippingDeadlineAt(refundPeriod time.Duration) time.Time {
	return c.ReservedAt.Add(refundPeriod)
}

// AssignFundReservation creates the order. deadlineHandle is the already scheduled
// shipping deadline and rate the commission rate in force at reservation time.
func (o *Order) AssignFundReservation(cmd AssignFundReservation, deadlineHandle string, rate decimal.Decimal) ([]eventsourcing.Event, error) {
	if o.Exists() {
		return nil, ErrOrderAlreadyExists
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return []eventsourcing.Event{FundsReserved{
		OrderID:               cmd.OrderID,
		PaymentReferenceID:    cmd.PaymentReferenceID,
		PaymentMethodID:       cmd.PaymentMethodID,
		RefundDeadlineHandle:  deadlineHandle,
		NetAmount:             cmd.NetAmount,
		ReservedAt:            cmd.ReservedAt.UTC(),
		SellerID:              cmd.SellerID,
		SellerPayoutAccountID: cmd.SellerPayoutAccountID,
		CommissionRate:        rate,
	}}, nil
}

// ShippingDeadlineElapsed schedules the refund if the seller never shipped.
// Once the order moved past FUNDS_RESERVED it returns no events: the deadline
// was cancelled but was already on its way.
func (o *Order) ShippingDeadlineElapsed(now time.Time) ([]eventsourcing.Event, error) {
	if !o.Exists() {
		return nil, ErrOrderNotFound
	}
	if o.Status != StatusFundsReserved {
		return nil, nil
	}
	return []eventsourcing.Event{o.refund(RefundShippingDeadlineNotMet, now)}, nil
}

func (o *Order) EnterTrackingNumber(trackingNumber string, now time.Time) ([]eventsourcing.Event, error) {
	if err := o.require(StatusFundsReserved); err != nil {
		return nil, err
	}
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return nil, ErrMissingTrackingNumber
	}
	return []eventsourcing.Event{TrackingNumberProvided{OrderID: o.ID, TrackingNumber: trackingNumber, EnteredAt: now}}, nil
}

func (o *Order) AssignTrackingInfo(trackingNumber, externalTrackerID string, enteredAt time.Time) ([]eventsourcing.Event, error) {
	if err := o.require(StatusTrackingNumberProvided); err != nil {
		return nil, err
	}
	return []eventsourcing.Event{TrackingInfoAssigned{
		OrderID:           o.ID,
		TrackingNumber:    trackingNumber,
		ExternalTrackerID: externalTrackerID,
		EnteredAt:         enteredAt,
	}}, nil
}

type UpdateTrackingStatus struct {
	EventID     string
	Milestone   Milestone
	Description string
	OccurredAt  time.Time
}

// UpdateTrackingStatus records a shipment update. DELIVERED and EXCEPTION also
// move the order on, in the same append. A repeated eventID is a no-op.
func (o *Order) UpdateTrackingStatus(cmd UpdateTrackingStatus, now time.Time) ([]eventsourcing.Event, error) {
	if o.Exists() && cmd.EventID != "" && o.HasTrackingEvent(cmd.EventID) {
		return nil, nil
	}
	if err := o.require(StatusTrackingInProgress); err != nil {
		return nil, err
	}

	events := []eventsourcing.Event{TrackingStatusUpdated{
		OrderID:     o.ID,
		EventID:     cmd.EventID,
		Milestone:   cmd.Milestone,
		Description: cmd.Description,
		OccurredAt:  cmd.OccurredAt,
	}}

	switch cmd.Milestone {
	case MilestoneException:
		events = append(events, o.refund(RefundShipmentException, now))
	case MilestoneDelivered:
		commission, payout := o.Split()
		events = append(events, OrderDelivered{
			OrderID:               o.ID,
			SellerPayoutAccountID: o.Reservation.SellerPayoutAccountID,
			Payout:                payout,
			Commission:            commission,
			DeliveredAt:           cmd.OccurredAt,
		})
	}
	return events, nil
}

func (o *Order) FinishRefund(refundID string, now time.Time) ([]eventsourcing.Event, error) {
	if err := o.require(StatusRefundPending); err != nil {
		return nil, err
	}
	return []eventsourcing.Event{OrderCancelled{OrderID: o.ID, RefundID: refundID, CancelledAt: now}}, nil
}

func (o *Order) CompleteOrder(payoutTransferID, commissionTransferID string, now time.Time) ([]eventsourcing.Event, error) {
	if err := o.require(StatusDelivered); err != nil {
		return nil, err
	}
	return []eventsourcing.Event{OrderCompleted{
		OrderID:              o.ID,
		PayoutTransferID:     payoutTransferID,
		CommissionTransferID: commissionTransferID,
		CompletedAt:          now,
	}}, nil
}

func (o *Order) refund(reason RefundReason, now time.Time) RefundScheduled {
	return RefundScheduled{
		OrderID:            o.ID,
		PaymentReferenceID: o.Reservation.PaymentReferenceID,
		Amount:             o.Reservation.NetAmount,
		Reason:             reason,
		ScheduledAt:        now,
	}
}
