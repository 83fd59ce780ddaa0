package eta

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
)

// mapboxProvider calls a directions endpoint with traffic-aware durations.
type mapboxProvider struct {
	baseURL string
	token   string
	http    *http.Client
}

func newMapboxProvider(baseURL, token string, client *http.Client) *mapboxProvider {
	return &mapboxProvider{baseURL: baseURL, token: token, http: client}
}

func (p *mapboxProvider) Name() string { return "mapbox" }

type mapboxDirectionsResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Duration        float64 `json:"duration"` // seconds
		DurationTypical float64 `json:"duration_typical"`
	} `json:"routes"`
}

func (p *mapboxProvider) Estimate(ctx context.Context, origin, destination Coordinates) (*Result, error) {
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
	q.Set("access_token", p.token)
	q.Set("overview", "false")
	u.RawQuery = q.Encode()

	raw, err := fetchJSON(ctx, p.http, u.String(), nil)
	if err != nil {
		return nil, err
	}

	var parsed mapboxDirectionsResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, err
	}
	if parsed.Code != "Ok" || len(parsed.Routes) == 0 || parsed.Routes[0].Duration <= 0 {
		return nil, fmt.Errorf("mapbox directions code %q", parsed.Code)
	}

	route := parsed.Routes[0]
	var traffic *string
	if route.DurationTypical > 0 {
		level := trafficLevel(route.Duration / route.DurationTypical)
		traffic = &level
	}

	return &Result{
		EtaMinutes:   int(math.Ceil(route.Duration / 60)),
		TrafficLevel: traffic,
		Raw:          raw,
	}, nil
}
