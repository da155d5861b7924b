package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type httpMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
}

// HTTPMetricsMiddleware records request counts, durations and in-flight requests labelled by
// method, route pattern and status code. Routes listed in longPoll (the reseal wait endpoint)
// are counted but kept out of the duration histogram, where their deliberate blocking would
// drown out every other route.
func HTTPMetricsMiddleware(meterProvider metric.MeterProvider, namespace string, longPoll ...string) gin.HandlerFunc {
	m, err := newHTTPMetrics(meterProvider, namespace)
	if err != nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	skipDuration := make(map[string]struct{}, len(longPoll))
	for _, route := range longPoll {
		skipDuration[route] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		ctx := c.Request.Context()
		path := sanitizePath(c.FullPath())

		routeAttrs := metric.WithAttributes(attribute.String("path", path))
		m.inFlight.Add(ctx, 1, routeAttrs)
		defer m.inFlight.Add(ctx, -1, routeAttrs)

		c.Next()

		attrs := metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("path", path),
			attribute.String("status_code", strconv.Itoa(c.Writer.Status())),
		)
		m.requests.Add(ctx, 1, attrs)
		if _, skip := skipDuration[path]; !skip {
			m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
		}
	}
}

func newHTTPMetrics(meterProvider metric.MeterProvider, namespace string) (*httpMetrics, error) {
	meter := meterProvider.Meter(namespace)

	requests, err := meter.Int64Counter(
		fmt.Sprintf("%s_http_requests_total", namespace),
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		fmt.Sprintf("%s_http_request_duration_seconds", namespace),
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	inFlight, err := meter.Int64UpDownCounter(
		fmt.Sprintf("%s_http_requests_in_flight", namespace),
		metric.WithDescription("HTTP requests currently being served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &httpMetrics{requests: requests, duration: duration, inFlight: inFlight}, nil
}

// sanitizePath keeps label cardinality bounded: unmatched routes collapse to "unknown".
func sanitizePath(fullPath string) string {
	if fullPath == "" {
		return "unknown"
	}
	return fullPath
}
