package aws

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
)

const (
	logBufferSize    = 1024
	logBatchSize     = 200
	logFlushInterval = 2 * time.Second
	logRetentionDays = 30
)

type logsAPI interface {
	CreateLogGroup(ctx context.Context, in *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	PutRetentionPolicy(ctx context.Context, in *cloudwatchlogs.PutRetentionPolicyInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error)
	CreateLogStream(ctx context.Context, in *cloudwatchlogs.CreateLogStreamInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error)
	PutLogEvents(ctx context.Context, in *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
}

// CloudWatchLogsClient is an io.Writer that ships log lines to a CloudWatch
// Logs stream in the background. Lines are dropped, not blocked on, when the
// buffer is full.
type CloudWatchLogsClient struct {
	api    logsAPI
	group  string
	stream string

	mu      sync.RWMutex
	closed  bool
	events  chan types.InputLogEvent
	done    chan struct{}
	dropped int
}

// NewCloudWatchLogsClient creates the log group if needed and a fresh stream
// named after the service and start time.
func NewCloudWatchLogsClient(ctx context.Context, cfg sdkaws.Config, logGroupName, serviceName string) (*CloudWatchLogsClient, error) {
	return newCloudWatchLogsClient(ctx, cloudwatchlogs.NewFromConfig(cfg), logGroupName, serviceName, logFlushInterval)
}

func newCloudWatchLogsClient(ctx context.Context, api logsAPI, group, serviceName string, interval time.Duration) (*CloudWatchLogsClient, error) {
	if group == "" {
		group = "/hardline/services"
	}
	c := &CloudWatchLogsClient{
		api:    api,
		group:  group,
		stream: fmt.Sprintf("%s-%d", serviceName, time.Now().Unix()),
		events: make(chan types.InputLogEvent, logBufferSize),
		done:   make(chan struct{}),
	}

	if err := c.ensureGroup(ctx); err != nil {
		return nil, fmt.Errorf("log group %s: %w", group, err)
	}
	if _, err := api.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  sdkaws.String(c.group),
		LogStreamName: sdkaws.String(c.stream),
	}); err != nil {
		return nil, fmt.Errorf("log stream %s: %w", c.stream, err)
	}

	go c.run(interval)
	return c, nil
}

func (c *CloudWatchLogsClient) ensureGroup(ctx context.Context) error {
	_, err := c.api.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{LogGroupName: sdkaws.String(c.group)})
	var exists *types.ResourceAlreadyExistsException
	if err != nil && !errors.As(err, &exists) {
		return err
	}
	_, err = c.api.PutRetentionPolicy(ctx, &cloudwatchlogs.PutRetentionPolicyInput{
		LogGroupName:    sdkaws.String(c.group),
		RetentionInDays: sdkaws.Int32(logRetentionDays),
	})
	return err
}

// Write implements io.Writer. It never fails.
func (c *CloudWatchLogsClient) Write(p []byte) (int, error) {
	ev := types.InputLogEvent{
		Message:   sdkaws.String(string(p)),
		Timestamp: sdkaws.Int64(time.Now().UnixMilli()),
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return len(p), nil
	}
	select {
	case c.events <- ev:
	default:
		c.dropped++
	}
	return len(p), nil
}

// Close flushes buffered lines and stops the background sender.
func (c *CloudWatchLogsClient) Close() error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
	c.mu.Unlock()
	<-c.done
	return nil
}

func (c *CloudWatchLogsClient) run(interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	batch := make([]types.InputLogEvent, 0, logBatchSize)
	for {
		select {
		case ev, ok := <-c.events:
			if !ok {
				c.flush(batch)
				return
			}
			batch = append(batch, ev)
			if len(batch) >= logBatchSize {
				c.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			c.flush(batch)
			batch = batch[:0]
		}
	}
}

func (c *CloudWatchLogsClient) flush(batch []types.InputLogEvent) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := c.api.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  sdkaws.String(c.group),
		LogStreamName: sdkaws.String(c.stream),
		LogEvents:     batch,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "cloudwatch logs: dropped %d lines: %v\n", len(batch), err)
	}
}
