package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	oteltrace "go.opentelemetry.io/otel/trace"
)

func TestTracingRecordsServerSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Tracing())

	var traceID string
	r.GET("/payouts/:id", func(c *gin.Context) {
		traceID = oteltrace.SpanFromContext(c.Request.Context()).SpanContext().TraceID().String()
		c.Status(http.StatusBadGateway)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/payouts/7", nil))
	require.Equal(t, http.StatusBadGateway, w.Code)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "GET /payouts/:id", spans[0].Name())
	require.Equal(t, oteltrace.SpanKindServer, spans[0].SpanKind())
	require.Equal(t, traceID, spans[0].SpanContext().TraceID().String())
	require.Equal(t, "Error", spans[0].Status().Code.String())
}
