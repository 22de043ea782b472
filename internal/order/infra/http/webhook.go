package http

import (
	"time"

	"github.com/cristianortiz/marketplace/internal/order/application"
	"github.com/cristianortiz/marketplace/internal/shared/logger"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

type ship24Payload struct {
	Trackings []ship24Tracking `json:"trackings"`
}

type ship24Tracking struct {
	Tracker struct {
		TrackerID         string `json:"trackerId"`
		TrackingNumber    string `json:"trackingNumber"`
		ShipmentReference string `json:"shipmentReference"`
	} `json:"tracker"`
	Events []ship24Event `json:"events"`
}

type ship24Event struct {
	EventID            string    `json:"eventId"`
	Status             string    `json:"status"`
	OccurrenceDatetime time.Time `json:"occurrenceDatetime"`
	StatusCode         string    `json:"statusCode"`
	StatusCategory     string    `json:"statusCategory"`
	StatusMilestone    string    `json:"statusMilestone"`
}

func (p ship24Payload) updates() []application.TrackingUpdate {
	var out []application.TrackingUpdate
	for _, tr := range p.Trackings {
		for _, ev := range tr.Events {
			out = append(out, application.TrackingUpdate{
				ShipmentReference: tr.Tracker.ShipmentReference,
				TrackingNumber:    tr.Tracker.TrackingNumber,
				EventID:           ev.EventID,
				Milestone:         ev.StatusMilestone,
				Description:       ev.Status,
				OccurredAt:        ev.OccurrenceDatetime,
			})
		}
	}
	return out
}

// ship24Webhook receives tracking pushes. Individual bad updates are skipped
// so the provider does not keep retrying the whole batch.
func (h *Handler) ship24Webhook(c *fiber.Ctx) error {
	if !h.authorized(c) {
		log.Warn("Rejected ship24 webhook with bad credentials", zap.String("ip", c.IP()))
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	var payload ship24Payload
	if err := c.BodyParser(&payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid webhook payload")
	}

	updates := payload.updates()
	res := h.service.IngestTrackingUpdates(c.UserContext(), updates)
	log.Info("Ship24 webhook processed",
		zap.Int("trackings", len(payload.Trackings)),
		zap.Int("applied", res.Applied),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)
	return c.JSON(res)
}
