package aws

import (
	"context"
	"fmt"
	"sort"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// CloudWatch accepts at most this many data points per PutMetricData call.
const maxDataPerCall = 1000

type cloudWatchAPI interface {
	PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Datum is one metric observation.
type Datum struct {
	Name       string
	Value      float64
	Unit       types.StandardUnit
	Dimensions map[string]string
}

// MetricsClient publishes pipeline and HTTP metrics. A nil or disabled
// client drops every data point.
type MetricsClient struct {
	api       cloudWatchAPI
	namespace string
	enabled   bool
	now       func() time.Time
}

func NewMetricsClient(cfg sdkaws.Config, namespace string, enabled bool) *MetricsClient {
	return newMetricsClient(cloudwatch.NewFromConfig(cfg), namespace, enabled)
}

func newMetricsClient(api cloudWatchAPI, namespace string, enabled bool) *MetricsClient {
	if namespace == "" {
		namespace = "HardlineConnect"
	}
	return &MetricsClient{api: api, namespace: namespace, enabled: enabled, now: time.Now}
}

// Put sends data in as few calls as CloudWatch allows. All points share one
// timestamp.
func (m *MetricsClient) Put(ctx context.Context, data ...Datum) error {
	if !m.IsEnabled() || len(data) == 0 {
		return nil
	}

	ts := sdkaws.Time(m.now())
	batch := make([]types.MetricDatum, 0, len(data))
	for _, d := range data {
		batch = append(batch, types.MetricDatum{
			MetricName: sdkaws.String(d.Name),
			Value:      sdkaws.Float64(d.Value),
			Unit:       d.Unit,
			Timestamp:  ts,
			Dimensions: toDimensions(d.Dimensions),
		})
	}

	for len(batch) > 0 {
		n := len(batch)
		if n > maxDataPerCall {
			n = maxDataPerCall
		}
		if _, err := m.api.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  sdkaws.String(m.namespace),
			MetricData: batch[:n],
		}); err != nil {
			return fmt.Errorf("put %d metrics to %s: %w", n, m.namespace, err)
		}
		batch = batch[n:]
	}
	return nil
}

func (m *MetricsClient) RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error {
	return m.Put(ctx, Datum{Name: metricName, Value: 1, Unit: types.StandardUnitCount, Dimensions: dimensions})
}

func (m *MetricsClient) RecordLatency(ctx context.Context, metricName string, duration time.Duration, dimensions map[string]string) error {
	return m.Put(ctx, Datum{Name: metricName, Value: float64(duration.Milliseconds()), Unit: types.StandardUnitMilliseconds, Dimensions: dimensions})
}

// RequestData returns the data points describing one HTTP request. Latency
// is omitted when duration is zero.
func RequestData(status int, duration time.Duration, dimensions map[string]string) []Datum {
	data := []Datum{{Name: MetricHTTPRequests, Value: 1, Unit: types.StandardUnitCount, Dimensions: dimensions}}
	if duration > 0 {
		data = append(data, Datum{Name: MetricHTTPLatency, Value: float64(duration.Milliseconds()), Unit: types.StandardUnitMilliseconds, Dimensions: dimensions})
	}
	switch {
	case status >= 500:
		data = append(data,
			Datum{Name: MetricHTTPErrors, Value: 1, Unit: types.StandardUnitCount, Dimensions: dimensions},
			Datum{Name: MetricHTTP5xx, Value: 1, Unit: types.StandardUnitCount, Dimensions: dimensions},
		)
	case status >= 400:
		data = append(data,
			Datum{Name: MetricHTTPErrors, Value: 1, Unit: types.StandardUnitCount, Dimensions: dimensions},
			Datum{Name: MetricHTTP4xx, Value: 1, Unit: types.StandardUnitCount, Dimensions: dimensions},
		)
	}
	return data
}

func (m *MetricsClient) IsEnabled() bool {
	return m != nil && m.enabled
}

func toDimensions(in map[string]string) []types.Dimension {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	dims := make([]types.Dimension, 0, len(keys))
	for _, k := range keys {
		dims = append(dims, types.Dimension{Name: sdkaws.String(k), Value: sdkaws.String(in[k])})
	}
	return dims
}

const (
	// HTTP metrics
	MetricHTTPRequests = "HTTPRequests"
	MetricHTTPErrors   = "HTTPErrors"
	MetricHTTPLatency  = "HTTPLatency"
	MetricHTTP4xx      = "HTTP4xxErrors"
	MetricHTTP5xx      = "HTTP5xxErrors"

	// Checkout pipeline
	MetricCheckoutSessions      = "CheckoutSessionsCreated"
	MetricCheckoutFailures      = "CheckoutSessionFailures"
	MetricOrdersCreated         = "OrdersCreated"
	MetricOrdersDeleted         = "OrdersDeleted"
	MetricWebhookFailures       = "WebhookFailures"
	MetricReconcileFallbacks    = "CheckoutReconcileFallbacks"
	MetricNotificationFailures  = "NotificationInsertFailures"
	MetricRealtimePublishErrors = "RealtimePublishErrors"
)
