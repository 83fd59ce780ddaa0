package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/arrivohq/arrivo/internal/config"
	"github.com/arrivohq/arrivo/internal/notification/domain"
	"github.com/arrivohq/arrivo/internal/observability/tracing"
	"gorm.io/gorm"
)

// pushTargets resolves the professional's most recently registered active
// device token.
type pushTargets struct{}

func (pushTargets) Resolve(ctx context.Context, db *gorm.DB, n domain.Notification) (*Target, string, error) {
	var row struct {
		Token string `gorm:"column:token"`
	}
	err := db.WithContext(ctx).Raw(
		`SELECT token
		 FROM device_tokens
		 WHERE tenant_id = ? AND professional_id = ? AND active = ?
		 ORDER BY updated_at DESC
		 LIMIT 1`,
		n.TenantID,
		n.ProfessionalID,
		true,
	).Scan(&row).Error
	if err != nil {
		return nil, "", err
	}
	if row.Token == "" {
		return nil, domain.ReasonNoDeviceToken, nil
	}
	return &Target{DeviceToken: row.Token}, "", nil
}

// fcmSender posts to an FCM-style legacy send endpoint.
type fcmSender struct {
	url       string
	serverKey string
	http      *http.Client
}

func newFCMSender(cfg config.PushConfig) *fcmSender {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &fcmSender{
		url:       cfg.URL,
		serverKey: cfg.ServerKey,
		http:      tracing.WrapHTTPClient(&http.Client{Timeout: timeout}),
	}
}

func (*fcmSender) Name() string { return "fcm" }

type fcmResponse struct {
	Success int `json:"success"`
	Results []struct {
		MessageID string `json:"message_id"`
		Error     string `json:"error"`
	} `json:"results"`
}

func (s *fcmSender) Send(ctx context.Context, target Target, n domain.Notification) (string, map[string]any, error) {
	priority := "normal"
	if n.Priority == domain.PriorityHigh {
		priority = "high"
	}
	payload := map[string]any{
		"to":       target.DeviceToken,
		"priority": priority,
		"notification": map[string]any{
			"title": n.Title,
			"body":  n.Body,
		},
		"data": map[string]any{
			"appointment_id": n.AppointmentID.String(),
			"type":           n.Type,
		},
	}

	raw, err := postJSON(ctx, s.http, s.url, payload, map[string]string{
		"Authorization": "key=" + s.serverKey,
	})
	diagnostics := map[string]any{}
	if len(raw) > 0 {
		diagnostics["provider_response"] = json.RawMessage(raw)
	}
	if err != nil {
		return "", diagnostics, err
	}

	var parsed fcmResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", diagnostics, err
	}
	if parsed.Success < 1 || len(parsed.Results) == 0 || parsed.Results[0].MessageID == "" {
		reason := "unknown"
		if len(parsed.Results) > 0 && parsed.Results[0].Error != "" {
			reason = parsed.Results[0].Error
		}
		return "", diagnostics, fmt.Errorf("fcm send rejected: %s", reason)
	}
	return parsed.Results[0].MessageID, diagnostics, nil
}

// NewPushDispatcher assembles the push channel dispatcher. Provider "none"
// selects the deterministic mock sender.
func NewPushDispatcher(deps Deps, cfg config.PushConfig) *Dispatcher {
	var sender Sender
	if cfg.Provider == "none" || cfg.Provider == "" {
		sender = newMockSender(domain.ChannelPush)
	} else {
		sender = newFCMSender(cfg)
	}
	return NewDispatcher(deps.DB, deps.Log, deps.Queue, domain.ChannelPush, pushTargets{}, sender, deps.Metrics)
}

// postJSON posts a JSON body and returns the response body; non-2xx is an
// error with the body preserved for diagnostics.
func postJSON(ctx context.Context, client *http.Client, url string, payload any, headers map[string]string) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return respBody, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return respBody, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}
	return respBody, nil
}
