package websocket

import (
	"context"
	"encoding/json"

	"github.com/cristianortiz/marketplace/internal/auction/domain"
	"github.com/cristianortiz/marketplace/internal/shared/eventsourcing"
)

// Broadcaster is the part of the hub the projector needs.
type Broadcaster interface {
	Broadcast(topic string, data []byte)
}

// Projector turns committed auction events into live updates for watchers.
type Projector struct {
	hub Broadcaster
}

func NewProjector(hub Broadcaster) *Projector {
	return &Projector{hub: hub}
}

// EventTypes are the events Handle understands.
func (p *Projector) EventTypes() []string {
	return []string{domain.HighestBidSet{}.EventType(), domain.AuctionClosed{}.EventType()}
}

func (p *Projector) Handle(_ context.Context, env eventsourcing.Envelope) error {
	var msg any
	switch ev := env.Event.(type) {
	case domain.HighestBidSet:
		m := ServerAuctionUpdateMessage{BaseMessage: BaseMessage{Type: MessageTypeServerAuctionUpdate}}
		m.Payload.AuctionItemID = ev.AuctionItemID
		m.Payload.BidID = ev.BidID
		m.Payload.HighestBidderID = ev.BidderID
		m.Payload.HighestBidAmount = ev.Amount
		msg = m
	case domain.AuctionClosed:
		m := ServerAuctionClosedMessage{BaseMessage: BaseMessage{Type: MessageTypeServerAuctionClosed}}
		m.Payload.AuctionItemID = ev.AuctionItemID
		m.Payload.WinningBids = ev.WinningBids
		m.Payload.ClosedAt = ev.ClosedAt
		msg = m
	default:
		return nil
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	p.hub.Broadcast(env.AggregateID.String(), data)
	return nil
}
