package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vastrakart/vastrakart-backend-go/metrics"
)

// MetricsMiddleware records request counts and latency per route. The route
// template (not the raw URL) is used as the path label to keep cardinality
// bounded.
func MetricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		path := c.Path()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request().Method
		status := c.Response().Status
		if err != nil {
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
		}

		metrics.HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		return err
	}
}
