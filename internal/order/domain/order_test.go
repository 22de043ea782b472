package domain

import (
	"testing"
	"time"

	"github.com/cristianortiz/marketplace/internal/shared/eventsourcing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	now  = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	rate = decimal.RequireFromString("0.10")
)

func given(events ...eventsourcing.Event) *Order {
	o := NewOrder()
	for _, e := range events {
		o.Apply(e)
	}
	return o
}

func reserved(id uuid.UUID) FundsReserved {
	return FundsReserved{
		OrderID:               id,
		PaymentReferenceID:    "pi_123",
		PaymentMethodID:       "pm_card",
		RefundDeadlineHandle:  "handle-1",
		NetAmount:             decimal.NewFromInt(100),
		ReservedAt:            now,
		SellerID:              "seller-1",
		SellerPayoutAccountID: "acct_seller",
		CommissionRate:        rate,
	}
}

func inProgress(id uuid.UUID) []eventsourcing.Event {
	return []eventsourcing.Event{
		reserved(id),
		TrackingNumberProvided{OrderID: id, TrackingNumber: "TRK1", EnteredAt: now},
		TrackingInfoAssigned{OrderID: id, TrackingNumber: "TRK1", ExternalTrackerID: "tracker-1", EnteredAt: now},
	}
}

func TestSplitCommission(t *testing.T) {
	tests := []struct {
		net, rate, commission, payout string
	}{
		{"100.00", "0.10", "10", "90"},
		{"99.99", "0.10", "9.99", "90"},
		{"0.05", "0.10", "0", "0.05"},
		{"123.45", "0.075", "9.25", "114.2"},
		{"1000", "0", "0", "1000"},
	}
	for _, tt := range tests {
		t.Run(tt.net+"@"+tt.rate, func(t *testing.T) {
			net := decimal.RequireFromString(tt.net)
			commission, payout := SplitCommission(net, decimal.RequireFromString(tt.rate))
			assert.True(t, commission.Equal(decimal.RequireFromString(tt.commission)), "commission %s", commission)
			assert.True(t, payout.Equal(decimal.RequireFromString(tt.payout)), "payout %s", payout)
			assert.True(t, commission.Add(payout).Equal(net))
		})
	}
}

func TestAssignFundReservation(t *testing.T) {
	id := uuid.New()
	cmd := AssignFundReservation{
		OrderID:               id,
		PaymentReferenceID:    "pi_123",
		NetAmount:             decimal.NewFromInt(100),
		ReservedAt:            now,
		SellerID:              "seller-1",
		SellerPayoutAccountID: "acct_seller",
	}

	events, err := NewOrder().AssignFundReservation(cmd, "handle-1", rate)
	require.NoError(t, err)
	o := given(events...)
	assert.Equal(t, StatusFundsReserved, o.Status)
	assert.Equal(t, "handle-1", o.Reservation.RefundDeadlineHandle)
	assert.True(t, o.CommissionRate.Equal(rate))

	_, err = o.AssignFundReservation(cmd, "handle-2", rate)
	assert.ErrorIs(t, err, ErrOrderAlreadyExists)

	bad := cmd
	bad.NetAmount = decimal.Zero
	_, err = NewOrder().AssignFundReservation(bad, "", rate)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	bad = cmd
	bad.NetAmount = decimal.RequireFromString("10.005")
	_, err = NewOrder().AssignFundReservation(bad, "", rate)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	bad = cmd
	bad.SellerPayoutAccountID = ""
	_, err = NewOrder().AssignFundReservation(bad, "", rate)
	assert.ErrorIs(t, err, ErrInvalidReservation)
}

func TestShippingDeadlineElapsed(t *testing.T) {
	id := uuid.New()

	events, err := given(reserved(id)).ShippingDeadlineElapsed(now)
	require.NoError(t, err)
	require.Len(t, events, 1)
	refund := events[0].(RefundScheduled)
	assert.Equal(t, RefundShippingDeadlineNotMet, refund.Reason)
	assert.Equal(t, "pi_123", refund.PaymentReferenceID)
	assert.Equal(t, StatusRefundPending, given(append([]eventsourcing.Event{reserved(id)}, events...)...).Status)

	// tracking number already entered: late delivery of the deadline is a no-op
	events, err = given(reserved(id), TrackingNumberProvided{OrderID: id, TrackingNumber: "TRK1"}).ShippingDeadlineElapsed(now)
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = NewOrder().ShippingDeadlineElapsed(now)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestEnterTrackingNumber(t *testing.T) {
	id := uuid.New()
	o := given(reserved(id))

	_, err := o.EnterTrackingNumber("  ", now)
	assert.ErrorIs(t, err, ErrMissingTrackingNumber)

	events, err := o.EnterTrackingNumber("TRK1", now)
	require.NoError(t, err)
	o = given(append([]eventsourcing.Event{reserved(id)}, events...)...)
	assert.Equal(t, StatusTrackingNumberProvided, o.Status)

	_, err = o.EnterTrackingNumber("TRK2", now)
	var stateErr *InvalidOrderStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, StatusFundsReserved, stateErr.Expected)
	assert.Equal(t, StatusTrackingNumberProvided, stateErr.Actual)
	assert.ErrorIs(t, err, ErrInvalidOrderState)
}

func TestAssignTrackingInfo(t *testing.T) {
	id := uuid.New()
	_, err := given(reserved(id)).AssignTrackingInfo("TRK1", "tracker-1", now)
	assert.ErrorIs(t, err, ErrInvalidOrderState)

	o := given(inProgress(id)...)
	assert.Equal(t, StatusTrackingInProgress, o.Status)
	assert.Equal(t, MilestonePending, o.Tracking.LastMilestone)
	assert.Equal(t, "tracker-1", o.Tracking.ExternalTrackerID)
}

func TestUpdateTrackingStatus_InTransitStays(t *testing.T) {
	id := uuid.New()
	o := given(inProgress(id)...)

	events, err := o.UpdateTrackingStatus(UpdateTrackingStatus{
		EventID: "ev-1", Milestone: MilestoneInTransit, Description: "Left hub", OccurredAt: now,
	}, now)
	require.NoError(t, err)
	require.Len(t, events, 1)

	o = given(append(inProgress(id), events...)...)
	assert.Equal(t, StatusTrackingInProgress, o.Status)
	assert.Equal(t, MilestoneInTransit, o.Tracking.LastMilestone)
	assert.Equal(t, "Left hub", o.Tracking.LastEventDescription)
}

func TestUpdateTrackingStatus_DeliveredSplitsMoney(t *testing.T) {
	id := uuid.New()
	delivered := now.Add(48 * time.Hour)

	events, err := given(inProgress(id)...).UpdateTrackingStatus(UpdateTrackingStatus{
		EventID: "ev-1", Milestone: MilestoneDelivered, OccurredAt: delivered,
	}, now)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.IsType(t, TrackingStatusUpdated{}, events[0])

	d := events[1].(OrderDelivered)
	assert.True(t, d.Payout.Equal(decimal.RequireFromString("90.00")))
	assert.True(t, d.Commission.Equal(decimal.RequireFromString("10.00")))
	assert.Equal(t, "acct_seller", d.SellerPayoutAccountID)
	assert.Equal(t, delivered, d.DeliveredAt)

	o := given(append(inProgress(id), events...)...)
	assert.Equal(t, StatusDelivered, o.Status)
}

func TestUpdateTrackingStatus_ExceptionSchedulesRefund(t *testing.T) {
	id := uuid.New()
	events, err := given(inProgress(id)...).UpdateTrackingStatus(UpdateTrackingStatus{
		EventID: "ev-1", Milestone: MilestoneException, OccurredAt: now,
	}, now)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, RefundShipmentException, events[1].(RefundScheduled).Reason)
	assert.Equal(t, StatusRefundPending, given(append(inProgress(id), events...)...).Status)
}

func TestUpdateTrackingStatus_DuplicateEventIsNoop(t *testing.T) {
	id := uuid.New()
	history := append(inProgress(id),
		TrackingStatusUpdated{OrderID: id, EventID: "ev-1", Milestone: MilestoneDelivered, OccurredAt: now},
		OrderDelivered{OrderID: id, DeliveredAt: now},
	)
	events, err := given(history...).UpdateTrackingStatus(UpdateTrackingStatus{EventID: "ev-1", Milestone: MilestoneDelivered}, now)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestUpdateTrackingStatus_WrongState(t *testing.T) {
	_, err := given(reserved(uuid.New())).UpdateTrackingStatus(UpdateTrackingStatus{EventID: "ev-1", Milestone: MilestoneInTransit}, now)
	assert.ErrorIs(t, err, ErrInvalidOrderState)
}

func TestFinishRefund(t *testing.T) {
	id := uuid.New()
	history := []eventsourcing.Event{reserved(id), RefundScheduled{OrderID: id}}

	events, err := given(history...).FinishRefund("re_1", now)
	require.NoError(t, err)
	o := given(append(history, events...)...)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, "re_1", o.RefundID)

	_, err = o.FinishRefund("re_1", now)
	assert.ErrorIs(t, err, ErrInvalidOrderState)
}

func TestCompleteOrder(t *testing.T) {
	id := uuid.New()
	history := append(inProgress(id), OrderDelivered{OrderID: id, DeliveredAt: now})

	events, err := given(history...).CompleteOrder("tr_payout", "tr_commission", now)
	require.NoError(t, err)
	o := given(append(history, events...)...)
	assert.Equal(t, StatusCompleted, o.Status)
	assert.Equal(t, "tr_payout", o.Completion.PayoutTransferID)
	assert.Equal(t, "tr_commission", o.Completion.CommissionTransferID)

	_, err = given(inProgress(id)...).CompleteOrder("a", "b", now)
	assert.ErrorIs(t, err, ErrInvalidOrderState)
}

func TestParseMilestone(t *testing.T) {
	m, err := ParseMilestone("out_for_delivery")
	require.NoError(t, err)
	assert.Equal(t, MilestoneOutForDelivery, m)

	_, err = ParseMilestone("teleported")
	assert.ErrorIs(t, err, ErrUnknownMilestone)
}
