package falcon_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tphakala/go-falcon"
)

func TestWithTracing(t *testing.T) {
	ts := newTestServer(t)
	var traceparent string
	ts.mux.HandleFunc("GET /devices/queries/devices/v1", func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("Traceparent")
		writeEnvelope(t, w)
	})

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, err := ts.client(t, falcon.WithTracing(tp)).Hosts.Query(context.Background(), nil)
	require.NoError(t, err)

	// One span for the token request, one for the query.
	assert.Len(t, recorder.Ended(), 2)
	assert.Empty(t, traceparent, "no propagator is configured")
}
