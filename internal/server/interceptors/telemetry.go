package interceptors

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/YudyTkm/itlingo-itoi-sub001/internal/server"

// Tracing starts a server span per request. Paths in skip (e.g. /healthz) are not traced.
func Tracing(skip map[string]bool) gin.HandlerFunc {
	tracer := otel.Tracer(tracerName)
	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}
		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+c.Request.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Request.Method),
				attribute.String("url.path", c.Request.URL.Path),
				attribute.String("client.address", c.ClientIP()),
			))
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if sess, ok := GetSession(c.Request.Context()); ok && sess.WorkspaceName != "" {
			span.SetAttributes(attribute.String("itoi.workspace", sess.WorkspaceName))
		}
		if status >= 500 {
			span.SetStatus(codes.Error, c.Errors.String())
		}
	}
}

// AccessLog logs one line per request. Best-effort; paths in skip are not logged.
func AccessLog(skip map[string]bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if skip[c.Request.URL.Path] {
			return
		}
		log.Printf("http: %s %s %d %dms client=%s", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start).Milliseconds(), c.ClientIP())
	}
}
