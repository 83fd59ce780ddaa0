// Package eta wraps external routing providers behind a single estimate
// contract with per-call timeout and bounded retry.
package eta

import (
	"context"
	"encoding/json"
)

// Coordinates is a WGS84 position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Traffic levels normalised across providers.
const (
	TrafficLow      = "low"
	TrafficModerate = "moderate"
	TrafficHeavy    = "heavy"
)

// Result is one successful ETA observation.
type Result struct {
	EtaMinutes   int
	TrafficLevel *string
	Raw          json.RawMessage
	Provider     string
}

// Provider is a single routing backend. Implementations must honour context
// cancellation; the adapter enforces the per-call timeout.
type Provider interface {
	Name() string
	Estimate(ctx context.Context, origin, destination Coordinates) (*Result, error)
}

// ProviderNone marks snapshots where no live provider was configured, so no
// call was attempted. Distinct from the "_failed" marker, which records an
// attempted-and-exhausted provider.
const ProviderNone = "none"

// FailedSuffix is appended to the provider name when all attempts failed.
const FailedSuffix = "_failed"
