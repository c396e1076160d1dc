package tracing

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/entitlements/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Health checks and metric scrapes are polled constantly and carry no team.
var untracedPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// GinMiddleware opens a server span per entitlement request. The span is
// named after the route template once routing has run, and carries the team
// and entitlement key taken from the path.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("entitlements/http")
	return func(c *gin.Context) {
		if _, skip := untracedPaths[c.Request.URL.Path]; skip {
			c.Next()
			return
		}

		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, spanName(c.Request.Method, ""), trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			if member, err := baggage.NewMember("request_id", requestID); err == nil {
				if bag, err := baggage.New(member); err == nil {
					ctx = baggage.ContextWithBaggage(ctx, bag)
				}
			}
			span.SetAttributes(attribute.String("request_id", requestID))
		}

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		route := c.FullPath()
		span.SetName(spanName(c.Request.Method, route))
		if route == "" {
			route = "unknown"
		}
		span.SetAttributes(SafeAttributes(append(entitlementAttributes(c, route),
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", c.Writer.Status()),
			attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
		)...)...)

		if c.Writer.Status() >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, "request error")
		}
	}
}

func spanName(method, route string) string {
	name := "HTTP " + strings.ToUpper(method)
	if route != "" {
		name += " " + route
	}
	return name
}

// entitlementAttributes reads the team and the checked key from path params.
// The kind comes from the route segment preceding :key.
func entitlementAttributes(c *gin.Context, route string) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if teamID := c.Param("team_id"); teamID != "" {
		attrs = append(attrs, attribute.String("team_id", teamID))
	}
	key := c.Param("key")
	if key == "" {
		return attrs
	}
	attrs = append(attrs, attribute.String("entitlement.key", key))
	switch {
	case strings.Contains(route, "/features/"):
		attrs = append(attrs, attribute.String("entitlement.kind", "feature"))
	case strings.Contains(route, "/limits/"):
		attrs = append(attrs, attribute.String("entitlement.kind", "limit"))
	case strings.Contains(route, "/overrides/"):
		attrs = append(attrs, attribute.String("entitlement.kind", c.Param("type")))
	}
	return attrs
}
