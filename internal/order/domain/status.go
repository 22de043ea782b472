package domain

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusFundsReserved          Status = "FUNDS_RESERVED"
	StatusTrackingNumberProvided Status = "TRACKING_NUMBER_PROVIDED"
	StatusTrackingInProgress     Status = "TRACKING_IN_PROGRESS"
	StatusDelivered              Status = "DELIVERED"
	StatusRefundPending          Status = "REFUND_PENDING"
	StatusCancelled              Status = "CANCELLED"
	StatusCompleted              Status = "COMPLETED"
)

// Milestone is the coarse shipment status reported by the tracking provider.
type Milestone string

const (
	MilestonePending            Milestone = "PENDING"
	MilestoneInfoReceived       Milestone = "INFO_RECEIVED"
	MilestoneInTransit          Milestone = "IN_TRANSIT"
	MilestoneOutForDelivery     Milestone = "OUT_FOR_DELIVERY"
	MilestoneFailedAttempt      Milestone = "FAILED_ATTEMPT"
	MilestoneAvailableForPickup Milestone = "AVAILABLE_FOR_PICKUP"
	MilestoneDelivered          Milestone = "DELIVERED"
	MilestoneException          Milestone = "EXCEPTION"
)

var milestones = map[Milestone]struct{}{
	MilestonePending:            {},
	MilestoneInfoReceived:       {},
	MilestoneInTransit:          {},
	MilestoneOutForDelivery:     {},
	MilestoneFailedAttempt:      {},
	MilestoneAvailableForPickup: {},
	MilestoneDelivered:          {},
	MilestoneException:          {},
}

// ParseMilestone accepts both "in_transit" and "IN_TRANSIT".
func ParseMilestone(s string) (Milestone, error) {
	m := Milestone(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := milestones[m]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownMilestone, s)
	}
	return m, nil
}
