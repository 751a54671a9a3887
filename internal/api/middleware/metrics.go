package middleware

import (
	"fmt"
	"time"

	"example.com/backstage/services/taxonomy/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics returns a gin middleware that records request counts and timings
// into the in-process collector.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		elapsed := time.Since(start).Milliseconds()
		m.RecordTimer("http_request", elapsed)
		m.IncrementCounter(fmt.Sprintf("http_status_%dxx", c.Writer.Status()/100))
	}
}
