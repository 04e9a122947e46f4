package aws

import (
	"context"
	"sync"
	"testing"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLogs struct {
	mu       sync.Mutex
	groupErr error
	messages []string
	puts     int
}

func (f *fakeLogs) CreateLogGroup(context.Context, *cloudwatchlogs.CreateLogGroupInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error) {
	return &cloudwatchlogs.CreateLogGroupOutput{}, f.groupErr
}

func (f *fakeLogs) PutRetentionPolicy(context.Context, *cloudwatchlogs.PutRetentionPolicyInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error) {
	return &cloudwatchlogs.PutRetentionPolicyOutput{}, nil
}

func (f *fakeLogs) CreateLogStream(context.Context, *cloudwatchlogs.CreateLogStreamInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error) {
	return &cloudwatchlogs.CreateLogStreamOutput{}, nil
}

func (f *fakeLogs) PutLogEvents(_ context.Context, in *cloudwatchlogs.PutLogEventsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	for _, ev := range in.LogEvents {
		f.messages = append(f.messages, *ev.Message)
	}
	return &cloudwatchlogs.PutLogEventsOutput{}, nil
}

func TestCloudWatchLogs_CloseFlushesInOneBatch(t *testing.T) {
	api := &fakeLogs{}
	c, err := newCloudWatchLogsClient(context.Background(), api, "", "checkout", time.Hour)
	require.NoError(t, err)

	for _, line := range []string{"a", "b", "c"} {
		n, err := c.Write([]byte(line))
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}
	require.NoError(t, c.Close())

	assert.Equal(t, []string{"a", "b", "c"}, api.messages)
	assert.Equal(t, 1, api.puts)

	// writes after close are discarded
	_, err = c.Write([]byte("late"))
	assert.NoError(t, err)
	assert.NoError(t, c.Close())
	assert.Len(t, api.messages, 3)
}

func TestCloudWatchLogs_FlushesOnInterval(t *testing.T) {
	api := &fakeLogs{}
	c, err := newCloudWatchLogsClient(context.Background(), api, "/g", "checkout", 5*time.Millisecond)
	require.NoError(t, err)
	defer c.Close()

	_, _ = c.Write([]byte("tick"))
	assert.Eventually(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return len(api.messages) == 1
	}, time.Second, 2*time.Millisecond)
}

func TestCloudWatchLogs_ExistingGroupIsFine(t *testing.T) {
	api := &fakeLogs{groupErr: &types.ResourceAlreadyExistsException{Message: sdkaws.String("exists")}}
	c, err := newCloudWatchLogsClient(context.Background(), api, "/g", "checkout", time.Hour)
	require.NoError(t, err)
	assert.NoError(t, c.Close())
}
