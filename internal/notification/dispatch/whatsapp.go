package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/arrivohq/arrivo/internal/config"
	"github.com/arrivohq/arrivo/internal/notification/domain"
	"github.com/arrivohq/arrivo/internal/observability/tracing"
	"gorm.io/gorm"
)

// whatsappTargets resolves the professional's registered phone and the
// tenant's sending number, falling back to the configured default sender.
type whatsappTargets struct {
	defaultSender string
}

func (t whatsappTargets) Resolve(ctx context.Context, db *gorm.DB, n domain.Notification) (*Target, string, error) {
	var row struct {
		Phone string `gorm:"column:phone"`
	}
	err := db.WithContext(ctx).Raw(
		`SELECT phone
		 FROM professionals
		 WHERE tenant_id = ? AND id = ?
		 LIMIT 1`,
		n.TenantID,
		n.ProfessionalID,
	).Scan(&row).Error
	if err != nil {
		return nil, "", err
	}
	if row.Phone == "" {
		return nil, domain.ReasonNoPhone, nil
	}

	var tenant struct {
		WhatsappNumber string `gorm:"column:whatsapp_number"`
	}
	err = db.WithContext(ctx).Raw(
		`SELECT whatsapp_number
		 FROM tenants
		 WHERE id = ?
		 LIMIT 1`,
		n.TenantID,
	).Scan(&tenant).Error
	if err != nil {
		return nil, "", err
	}

	sender := tenant.WhatsappNumber
	if sender == "" {
		sender = t.defaultSender
	}
	if sender == "" {
		return nil, domain.ReasonNoSendingNumber, nil
	}

	return &Target{Phone: row.Phone, Sender: sender}, "", nil
}

// cloudSender posts a text message to a WhatsApp Cloud-style endpoint.
type cloudSender struct {
	url   string
	token string
	http  *http.Client
}

func newCloudSender(cfg config.WhatsAppConfig) *cloudSender {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &cloudSender{
		url:   cfg.URL,
		token: cfg.Token,
		http:  tracing.WrapHTTPClient(&http.Client{Timeout: timeout}),
	}
}

func (*cloudSender) Name() string { return "whatsapp_cloud" }

type cloudResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

func (s *cloudSender) Send(ctx context.Context, target Target, n domain.Notification) (string, map[string]any, error) {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"from":              target.Sender,
		"to":                target.Phone,
		"type":              "text",
		"text": map[string]any{
			"body": n.Body,
		},
	}

	raw, err := postJSON(ctx, s.http, s.url, payload, map[string]string{
		"Authorization": "Bearer " + s.token,
	})
	diagnostics := map[string]any{}
	if len(raw) > 0 {
		diagnostics["provider_response"] = json.RawMessage(raw)
	}
	if err != nil {
		return "", diagnostics, err
	}

	var parsed cloudResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", diagnostics, err
	}
	if len(parsed.Messages) == 0 || parsed.Messages[0].ID == "" {
		return "", diagnostics, fmt.Errorf("whatsapp send rejected")
	}
	return parsed.Messages[0].ID, diagnostics, nil
}

// NewWhatsAppDispatcher assembles the WhatsApp channel dispatcher. Provider
// "none" selects the deterministic mock sender.
func NewWhatsAppDispatcher(deps Deps, cfg config.WhatsAppConfig) *Dispatcher {
	var sender Sender
	if cfg.Provider == "none" || cfg.Provider == "" {
		sender = newMockSender(domain.ChannelWhatsApp)
	} else {
		sender = newCloudSender(cfg)
	}
	targets := whatsappTargets{defaultSender: cfg.DefaultSender}
	return NewDispatcher(deps.DB, deps.Log, deps.Queue, domain.ChannelWhatsApp, targets, sender, deps.Metrics)
}
