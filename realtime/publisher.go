package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	awspkg "hardline-backend/pkg/aws"
)

// Publisher emits change events to every instance's subscribers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// LocalPublisher delivers straight into the in-process hub.
type LocalPublisher struct {
	hub *Hub
}

func NewLocalPublisher(hub *Hub) *LocalPublisher {
	return &LocalPublisher{hub: hub}
}

func (p *LocalPublisher) Publish(_ context.Context, ev Event) error {
	p.hub.Broadcast(ev)
	return nil
}

// SNSPublisher sends events to an SNS topic. Instances receive them back
// through their SQSBridge, including the instance that published.
type SNSPublisher struct {
	sns      awspkg.SNSPublisher
	topicArn string
}

func NewSNSPublisher(sns awspkg.SNSPublisher, topicArn string) *SNSPublisher {
	return &SNSPublisher{sns: sns, topicArn: topicArn}
}

func (p *SNSPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.sns.Publish(ctx, p.topicArn, ev.Type, body)
}
