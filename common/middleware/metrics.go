package middleware

import (
	"context"
	"strings"
	"time"

	awspkg "hardline-backend/pkg/aws"

	"github.com/gin-gonic/gin"
)

const metricsSendTimeout = 5 * time.Second

// MetricsMiddleware publishes one batch of request metrics per request,
// off the request path. Event streams are counted but their connection
// time is not reported as latency.
func MetricsMiddleware(metricsClient *awspkg.MetricsClient, serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !metricsClient.IsEnabled() {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		duration := time.Since(start)
		if strings.HasPrefix(c.Writer.Header().Get("Content-Type"), "text/event-stream") {
			duration = 0
		}

		data := awspkg.RequestData(status, duration, map[string]string{
			"Service": serviceName,
			"Method":  c.Request.Method,
			"Path":    route,
			"Status":  statusClass(status),
		})
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), metricsSendTimeout)
			defer cancel()
			_ = metricsClient.Put(ctx, data...)
		}()
	}
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return string(rune('0'+status/100)) + "xx"
}
