package observability

import (
	"testing"

	"go.opentelemetry.io/otel"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/arrivohq/arrivo/internal/config"
)

// The tracer provider is invoked, not provided: it must run during app
// construction even though nothing in the graph consumes it.
func TestModuleInstallsGlobalPropagator(t *testing.T) {
	cfg := config.Config{ServiceName: "arrivo-test"}

	app := fxtest.New(t,
		fx.Supply(cfg),
		Module,
	)
	app.RequireStart()
	defer app.RequireStop()

	fields := otel.GetTextMapPropagator().Fields()
	want := map[string]bool{"traceparent": false, "baggage": false}
	for _, field := range fields {
		if _, ok := want[field]; ok {
			want[field] = true
		}
	}
	for field, seen := range want {
		if !seen {
			t.Fatalf("propagator missing %q field, got %v", field, fields)
		}
	}
}
