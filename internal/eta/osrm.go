package eta

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
)

// osrmProvider calls an OSRM route endpoint. No traffic data.
type osrmProvider struct {
	baseURL string
	http    *http.Client
}

func newOSRMProvider(baseURL string, client *http.Client) *osrmProvider {
	return &osrmProvider{baseURL: baseURL, http: client}
}

func (p *osrmProvider) Name() string { return "osrm" }

type osrmRouteResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Duration float64 `json:"duration"` // seconds
	} `json:"routes"`
}

func (p *osrmProvider) Estimate(ctx context.Context, origin, destination Coordinates) (*Result, error) {
	endpoint := fmt.Sprintf("%s/%f,%f;%f,%f",
		p.baseURL,
		origin.Lng, origin.Lat,
		destination.Lng, destination.Lat,
	)
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("overview", "false")
	u.RawQuery = q.Encode()

	raw, err := fetchJSON(ctx, p.http, u.String(), nil)
	if err != nil {
		return nil, err
	}

	var parsed osrmRouteResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, err
	}
	if parsed.Code != "Ok" || len(parsed.Routes) == 0 || parsed.Routes[0].Duration <= 0 {
		return nil, fmt.Errorf("osrm route code %q", parsed.Code)
	}

	return &Result{
		EtaMinutes: int(math.Ceil(parsed.Routes[0].Duration / 60)),
		Raw:        raw,
	}, nil
}
