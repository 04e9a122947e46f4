package aws

import (
	"context"
	"fmt"
	"strconv"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"
)

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessageBatch(ctx context.Context, in *sqs.DeleteMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error)
}

// MessageHandler processes one message body. Returning an error leaves the
// message on the queue so it is redelivered after the visibility timeout.
type MessageHandler func(ctx context.Context, body string) error

type SQSOptions struct {
	WaitSeconds       int32
	VisibilitySeconds int32
	MaxMessages       int32
	// ErrorBackoff is the first pause after a failed receive. It doubles on
	// each consecutive failure up to MaxErrorBackoff.
	ErrorBackoff    time.Duration
	MaxErrorBackoff time.Duration
}

func DefaultSQSOptions() SQSOptions {
	return SQSOptions{
		WaitSeconds:       20,
		VisibilitySeconds: 30,
		MaxMessages:       10,
		ErrorBackoff:      time.Second,
		MaxErrorBackoff:   30 * time.Second,
	}
}

// SQSConsumer long-polls a single queue.
type SQSConsumer struct {
	api      sqsAPI
	queueURL string
	opts     SQSOptions
	logger   *zap.Logger
}

func NewSQSConsumer(cfg sdkaws.Config, queueURL string, logger *zap.Logger) *SQSConsumer {
	return newSQSConsumer(sqs.NewFromConfig(cfg), queueURL, DefaultSQSOptions(), logger)
}

func newSQSConsumer(api sqsAPI, queueURL string, opts SQSOptions, logger *zap.Logger) *SQSConsumer {
	if opts.MaxMessages <= 0 || opts.MaxMessages > 10 {
		opts.MaxMessages = 10
	}
	if opts.MaxErrorBackoff < opts.ErrorBackoff {
		opts.MaxErrorBackoff = opts.ErrorBackoff
	}
	return &SQSConsumer{api: api, queueURL: queueURL, opts: opts, logger: logger}
}

// StartPolling polls until ctx is cancelled and returns ctx.Err().
func (c *SQSConsumer) StartPolling(ctx context.Context, handler MessageHandler) error {
	log := c.logger.With(zap.String("queue_url", c.queueURL))
	log.Info("SQS polling started")

	backoff := time.Duration(0)
	for {
		if err := ctx.Err(); err != nil {
			log.Info("SQS polling stopped")
			return err
		}

		err := c.pollOnce(ctx, handler)
		if err == nil {
			backoff = 0
			continue
		}
		if ctx.Err() != nil {
			continue
		}

		backoff = c.nextBackoff(backoff)
		log.Warn("SQS receive failed", zap.Error(err), zap.Duration("retry_in", backoff))

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
		case <-t.C:
		}
	}
}

func (c *SQSConsumer) nextBackoff(prev time.Duration) time.Duration {
	if prev == 0 {
		return c.opts.ErrorBackoff
	}
	next := prev * 2
	if next > c.opts.MaxErrorBackoff {
		next = c.opts.MaxErrorBackoff
	}
	return next
}

// pollOnce handles one receive and acknowledges the handled messages in a
// single batch delete.
func (c *SQSConsumer) pollOnce(ctx context.Context, handler MessageHandler) error {
	out, err := c.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            sdkaws.String(c.queueURL),
		MaxNumberOfMessages: c.opts.MaxMessages,
		WaitTimeSeconds:     c.opts.WaitSeconds,
		VisibilityTimeout:   c.opts.VisibilitySeconds,
	})
	if err != nil {
		return fmt.Errorf("receive: %w", err)
	}

	var acks []types.DeleteMessageBatchRequestEntry
	for i, msg := range out.Messages {
		if msg.Body == nil || msg.ReceiptHandle == nil {
			continue
		}
		if err := handler(ctx, *msg.Body); err != nil {
			c.logger.Warn("SQS message not handled",
				zap.String("message_id", sdkaws.ToString(msg.MessageId)),
				zap.Error(err))
			continue
		}
		acks = append(acks, types.DeleteMessageBatchRequestEntry{
			Id:            sdkaws.String(strconv.Itoa(i)),
			ReceiptHandle: msg.ReceiptHandle,
		})
	}
	if len(acks) == 0 {
		return nil
	}

	res, err := c.api.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
		QueueUrl: sdkaws.String(c.queueURL),
		Entries:  acks,
	})
	if err != nil {
		c.logger.Warn("SQS batch delete failed", zap.Int("count", len(acks)), zap.Error(err))
		return nil
	}
	for _, f := range res.Failed {
		c.logger.Warn("SQS delete rejected",
			zap.String("entry", sdkaws.ToString(f.Id)),
			zap.String("code", sdkaws.ToString(f.Code)))
	}
	return nil
}
