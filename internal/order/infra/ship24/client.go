package ship24

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cristianortiz/marketplace/internal/shared/logger"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const defaultTimeout = 10 * time.Second

// Client talks to the Ship24 tracking API.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: defaultTimeout,
	}
}

type createTrackerRequest struct {
	TrackingNumber    string `json:"trackingNumber"`
	ShipmentReference string `json:"shipmentReference"`
}

type createTrackerResponse struct {
	Data struct {
		Tracker struct {
			TrackerID      string `json:"trackerId"`
			TrackingNumber string `json:"trackingNumber"`
		} `json:"tracker"`
	} `json:"data"`
}

// CreateTracker registers trackingNumber and returns the Ship24 tracker id.
// Ship24 echoes shipmentReference back on every webhook for this tracker.
func (c *Client) CreateTracker(ctx context.Context, trackingNumber, shipmentReference string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	agent := fiber.Post(c.baseURL + "/trackers")
	agent.Set(fiber.HeaderAuthorization, "Bearer "+c.apiKey)
	agent.JSON(createTrackerRequest{TrackingNumber: trackingNumber, ShipmentReference: shipmentReference})
	agent.Timeout(c.timeout)
	if err := agent.Parse(); err != nil {
		return "", fmt.Errorf("ship24: build request: %w", err)
	}

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return "", fmt.Errorf("ship24: create tracker: %w", errors.Join(errs...))
	}
	if code < 200 || code >= 300 {
		log.Error("Ship24 rejected tracker",
			zap.Int("status", code),
			zap.String("trackingNumber", trackingNumber),
			zap.ByteString("body", body),
		)
		return "", fmt.Errorf("ship24: create tracker: unexpected status %d", code)
	}

	var resp createTrackerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("ship24: decode tracker response: %w", err)
	}
	if resp.Data.Tracker.TrackerID == "" {
		return "", errors.New("ship24: tracker response without trackerId")
	}
	return resp.Data.Tracker.TrackerID, nil
}
