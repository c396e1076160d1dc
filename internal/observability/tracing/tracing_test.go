package tracing

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSafeAttributes(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/health"),
		attribute.String("override.reason", "comped by sales"),
	)
	if len(attrs) != 1 || attrs[0].Key != "http.route" {
		t.Fatalf("unexpected attributes %v", attrs)
	}
}

func TestSafeErrorTruncates(t *testing.T) {
	if SafeError(nil) != nil {
		t.Fatalf("nil error should stay nil")
	}
	long := errors.New(strings.Repeat("x", 1000))
	if got := SafeError(long); len(got.Error()) != maxErrorLength {
		t.Fatalf("expected truncated error, got length %d", len(got.Error()))
	}
}

func TestGinMiddlewareRecordsServerSpan(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	defer otel.SetTracerProvider(prev)

	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/api/teams/:team_id/limits/:key", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
		_ = c.Error(errors.New("storage down"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/teams/9/limits/max_admins", nil))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if got := spans[0].Name(); got != "HTTP GET /api/teams/:team_id/limits/:key" {
		t.Fatalf("unexpected span name %q", got)
	}
	var sawTeam bool
	for _, attr := range spans[0].Attributes() {
		if attr.Key == "team_id" && attr.Value.AsString() == "9" {
			sawTeam = true
		}
	}
	if !sawTeam {
		t.Fatalf("team_id attribute missing")
	}
}

func TestGinMiddlewareTagsEntitlementAndSkipsHealthChecks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	defer otel.SetTracerProvider(prev)

	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/teams/:team_id/features/:key", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if got := len(recorder.Ended()); got != 0 {
		t.Fatalf("health checks should not be traced, got %d spans", got)
	}

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/teams/7/features/host_competitions", nil))
	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	want := map[attribute.Key]string{
		"team_id":          "7",
		"entitlement.key":  "host_competitions",
		"entitlement.kind": "feature",
	}
	for _, attr := range spans[0].Attributes() {
		if v, ok := want[attr.Key]; ok && attr.Value.AsString() == v {
			delete(want, attr.Key)
		}
	}
	if len(want) != 0 {
		t.Fatalf("missing attributes %v", want)
	}
}

func TestSpanNameWithoutRoute(t *testing.T) {
	if got := spanName("get", ""); got != "HTTP GET" {
		t.Fatalf("unexpected span name %q", got)
	}
}
