package application

import (
	"context"
	"time"

	"github.com/cristianortiz/marketplace/internal/order/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TrackingUpdate is one shipment event reported by the tracking provider.
// ShipmentReference is the order id given when the tracker was created.
type TrackingUpdate struct {
	ShipmentReference string
	TrackingNumber    string
	EventID           string
	Milestone         string
	Description       string
	OccurredAt        time.Time
}

// IngestResult counts what happened to a batch of updates.
type IngestResult struct {
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// IngestTrackingUpdates applies updates in order, one command per update.
// A bad reference or milestone skips that update only.
func (s *orderService) IngestTrackingUpdates(ctx context.Context, updates []TrackingUpdate) IngestResult {
	var res IngestResult
	for _, u := range updates {
		orderID, err := uuid.Parse(u.ShipmentReference)
		if err != nil {
			log.Warn("Tracking update with malformed shipment reference, skipping",
				zap.String("shipmentReference", u.ShipmentReference),
				zap.String("trackingNumber", u.TrackingNumber),
				zap.String("eventID", u.EventID),
			)
			res.Skipped++
			continue
		}
		milestone, err := domain.ParseMilestone(u.Milestone)
		if err != nil {
			log.Warn("Tracking update with unknown milestone, skipping",
				zap.String("orderID", orderID.String()),
				zap.String("eventID", u.EventID),
				zap.String("milestone", u.Milestone),
			)
			res.Skipped++
			continue
		}

		err = s.UpdateTrackingStatus(ctx, orderID, domain.UpdateTrackingStatus{
			EventID:     u.EventID,
			Milestone:   milestone,
			Description: u.Description,
			OccurredAt:  u.OccurredAt,
		})
		if err != nil {
			log.Error("Tracking update rejected",
				zap.String("orderID", orderID.String()),
				zap.String("eventID", u.EventID),
				zap.Error(err),
			)
			res.Failed++
			continue
		}
		res.Applied++
	}
	return res
}
