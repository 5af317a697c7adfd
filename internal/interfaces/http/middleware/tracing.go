package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MaxRequestIDLength caps the request id copied into span attributes
const MaxRequestIDLength = 128

// Tracing starts a server span per request. Health probes are not traced.
func Tracing(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName,
		otelgin.WithFilter(func(r *http.Request) bool {
			return !strings.HasSuffix(r.URL.Path, "/health")
		}),
	)
}

// SpanAttributes copies request_id, operator and marketplace onto the
// current span. Place it after the JWT middleware so the operator is known.
func SpanAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			attrs := make([]attribute.KeyValue, 0, 3)
			if id := GetRequestID(c); id != "" {
				if len(id) > MaxRequestIDLength {
					id = id[:MaxRequestIDLength]
				}
				attrs = append(attrs, attribute.String("request_id", id))
			}
			if op := GetOperator(c); op != "" {
				attrs = append(attrs, attribute.String("operator", op))
			}
			if code := c.Param("code"); code != "" {
				attrs = append(attrs, attribute.String("marketplace", code))
			}
			span.SetAttributes(attrs...)
		}
		c.Next()
	}
}
