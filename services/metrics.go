package services

import (
	"context"
	"time"

	awspkg "hardline-backend/pkg/aws"
)

// recordMetric sends a business counter in the background.
func recordMetric(m *awspkg.MetricsClient, metric, component string) {
	if !m.IsEnabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.RecordCount(ctx, metric, map[string]string{"Component": component})
	}()
}
