package eta

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
)

// googleProvider calls a distance-matrix style endpoint with live traffic.
type googleProvider struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newGoogleProvider(baseURL, apiKey string, client *http.Client) *googleProvider {
	return &googleProvider{baseURL: baseURL, apiKey: apiKey, http: client}
}

func (p *googleProvider) Name() string { return "google" }

type googleMatrixResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status   string `json:"status"`
			Duration struct {
				Value int `json:"value"` // seconds
			} `json:"duration"`
			DurationInTraffic struct {
				Value int `json:"value"`
			} `json:"duration_in_traffic"`
		} `json:"elements"`
	} `json:"rows"`
}

func (p *googleProvider) Estimate(ctx context.Context, origin, destination Coordinates) (*Result, error) {
	u, err := url.Parse(p.baseURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("origins", fmt.Sprintf("%f,%f", origin.Lat, origin.Lng))
	q.Set("destinations", fmt.Sprintf("%f,%f", destination.Lat, destination.Lng))
	q.Set("departure_time", "now")
	q.Set("key", p.apiKey)
	u.RawQuery = q.Encode()

	raw, err := fetchJSON(ctx, p.http, u.String(), nil)
	if err != nil {
		return nil, err
	}

	var parsed googleMatrixResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, err
	}
	if parsed.Status != "OK" || len(parsed.Rows) == 0 || len(parsed.Rows[0].Elements) == 0 {
		return nil, fmt.Errorf("google matrix status %q", parsed.Status)
	}
	element := parsed.Rows[0].Elements[0]
	if element.Status != "OK" || element.Duration.Value <= 0 {
		return nil, fmt.Errorf("google element status %q", element.Status)
	}

	seconds := element.Duration.Value
	var traffic *string
	if element.DurationInTraffic.Value > 0 {
		seconds = element.DurationInTraffic.Value
		level := trafficLevel(float64(element.DurationInTraffic.Value) / float64(element.Duration.Value))
		traffic = &level
	}

	return &Result{
		EtaMinutes:   int(math.Ceil(float64(seconds) / 60)),
		TrafficLevel: traffic,
		Raw:          raw,
	}, nil
}

// trafficLevel buckets the traffic/free-flow duration ratio.
func trafficLevel(ratio float64) string {
	switch {
	case ratio >= 1.5:
		return TrafficHeavy
	case ratio >= 1.15:
		return TrafficModerate
	default:
		return TrafficLow
	}
}

// fetchJSON performs a GET and returns the body on a 2xx response.
// A non-2xx status is a soft failure reported as an error to the adapter.
func fetchJSON(ctx context.Context, client *http.Client, url string, headers map[string]string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}
	return body, nil
}
