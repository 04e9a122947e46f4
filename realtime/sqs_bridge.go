package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	awspkg "hardline-backend/pkg/aws"

	"go.uber.org/zap"
)

type Poller interface {
	StartPolling(ctx context.Context, handler awspkg.MessageHandler) error
}

// SQSBridge feeds events from the instance's queue into its hub.
type SQSBridge struct {
	poller Poller
	hub    *Hub
	logger *zap.Logger
}

func NewSQSBridge(poller Poller, hub *Hub, logger *zap.Logger) *SQSBridge {
	return &SQSBridge{poller: poller, hub: hub, logger: logger}
}

// Run blocks until ctx is cancelled.
func (b *SQSBridge) Run(ctx context.Context) error {
	err := b.poller.StartPolling(ctx, b.HandleMessage)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// snsEnvelope is the wrapper SNS adds when raw message delivery is off.
type snsEnvelope struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
}

// HandleMessage decodes one queue message. Malformed messages are logged
// and acknowledged so they are not redelivered forever.
func (b *SQSBridge) HandleMessage(_ context.Context, body string) error {
	ev, err := decodeEvent(body)
	if err != nil {
		b.logger.Warn("Discarding malformed realtime message", zap.Error(err))
		return nil
	}
	b.hub.Broadcast(ev)
	return nil
}

func decodeEvent(body string) (Event, error) {
	raw := []byte(body)

	var env snsEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Type == "Notification" && env.Message != "" {
		raw = []byte(env.Message)
	}

	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.Topic == "" || ev.Type == "" {
		return Event{}, fmt.Errorf("event missing topic or type")
	}
	return ev, nil
}
