// Package config centralises environment configuration for the service.
// Components never read the environment themselves; everything is resolved
// once at startup and handed over through fx.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr        string
	Environment string
	// RateLimit caps trigger-endpoint calls per caller per minute.
	RateLimit int
}

// DatabaseConfig selects the gorm driver and DSN.
type DatabaseConfig struct {
	Driver string // postgres | sqlite
	DSN    string
}

// EtaConfig selects and tunes the live ETA provider.
type EtaConfig struct {
	Provider    string // google | mapbox | osrm | none
	Timeout     time.Duration
	MaxAttempts int

	GoogleBaseURL string
	GoogleAPIKey  string
	MapboxBaseURL string
	MapboxToken   string
	OSRMBaseURL   string
}

// MonitorConfig tunes the punctuality monitoring pass.
type MonitorConfig struct {
	WindowBefore time.Duration
	WindowAfter  time.Duration
	BatchSize    int
	DedupWindow  time.Duration
}

// PushConfig selects the push delivery provider. Provider "none" enables
// mock mode: dispatch synthesises deterministic successes.
type PushConfig struct {
	Provider  string // fcm | none
	URL       string
	ServerKey string
	Timeout   time.Duration
}

// WhatsAppConfig selects the WhatsApp delivery provider.
type WhatsAppConfig struct {
	Provider      string // cloud | none
	URL           string
	Token         string
	DefaultSender string
	Timeout       time.Duration
	Enabled       bool
}

// Secrets holds one independent shared secret per pipeline function.
// A function whose secret is empty refuses to operate.
type Secrets struct {
	Monitor            string
	Scheduler          string
	PushDispatcher     string
	WhatsAppDispatcher string
	Retention          string
}

// TracingConfig configures the OTLP exporter.
type TracingConfig struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	SamplingRatio    float64
}

// Config is the root configuration object provided via fx.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Server         ServerConfig
	Database       DatabaseConfig
	Eta            EtaConfig
	Monitor        MonitorConfig
	Push           PushConfig
	WhatsApp       WhatsAppConfig
	Secrets        Secrets
	Tracing        TracingConfig
	SchedulerCap   int
}

// Load builds the Config from the process environment. A .env file is
// honoured when present so local development matches deployment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ServiceName:    getEnv("SERVICE_NAME", "arrivo"),
		ServiceVersion: getEnv("SERVICE_VERSION", "dev"),
		Server: ServerConfig{
			Addr:        getEnv("HTTP_ADDR", ":8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			RateLimit:   getInt("HTTP_RATE_LIMIT", 60),
		},
		Database: DatabaseConfig{
			Driver: getEnv("DB_DRIVER", "postgres"),
			DSN:    os.Getenv("DATABASE_URL"),
		},
		Eta: EtaConfig{
			Provider:      strings.ToLower(getEnv("ETA_PROVIDER", "none")),
			Timeout:       getDuration("ETA_TIMEOUT", 4500*time.Millisecond),
			MaxAttempts:   getInt("ETA_MAX_ATTEMPTS", 2),
			GoogleBaseURL: getEnv("ETA_GOOGLE_BASE_URL", "https://maps.googleapis.com/maps/api/distancematrix/json"),
			GoogleAPIKey:  os.Getenv("ETA_GOOGLE_API_KEY"),
			MapboxBaseURL: getEnv("ETA_MAPBOX_BASE_URL", "https://api.mapbox.com/directions/v5/mapbox/driving-traffic"),
			MapboxToken:   os.Getenv("ETA_MAPBOX_TOKEN"),
			OSRMBaseURL:   getEnv("ETA_OSRM_BASE_URL", "https://router.project-osrm.org/route/v1/driving"),
		},
		Monitor: MonitorConfig{
			WindowBefore: getDuration("MONITOR_WINDOW_BEFORE", 15*time.Minute),
			WindowAfter:  getDuration("MONITOR_WINDOW_AFTER", 180*time.Minute),
			BatchSize:    getInt("MONITOR_BATCH_SIZE", 200),
			DedupWindow:  getDuration("NOTIFICATION_DEDUP_WINDOW", 10*time.Minute),
		},
		Push: PushConfig{
			Provider:  strings.ToLower(getEnv("PUSH_PROVIDER", "none")),
			URL:       getEnv("PUSH_URL", "https://fcm.googleapis.com/fcm/send"),
			ServerKey: os.Getenv("PUSH_SERVER_KEY"),
			Timeout:   getDuration("PUSH_TIMEOUT", 10*time.Second),
		},
		WhatsApp: WhatsAppConfig{
			Provider:      strings.ToLower(getEnv("WHATSAPP_PROVIDER", "none")),
			URL:           os.Getenv("WHATSAPP_URL"),
			Token:         os.Getenv("WHATSAPP_TOKEN"),
			DefaultSender: os.Getenv("WHATSAPP_DEFAULT_SENDER"),
			Timeout:       getDuration("WHATSAPP_TIMEOUT", 10*time.Second),
			Enabled:       getBool("WHATSAPP_DISPATCH_ENABLED", false),
		},
		Secrets: Secrets{
			Monitor:            os.Getenv("MONITOR_SECRET"),
			Scheduler:          os.Getenv("SCHEDULER_SECRET"),
			PushDispatcher:     os.Getenv("PUSH_DISPATCHER_SECRET"),
			WhatsAppDispatcher: os.Getenv("WHATSAPP_DISPATCHER_SECRET"),
			Retention:          os.Getenv("RETENTION_SECRET"),
		},
		Tracing: TracingConfig{
			Enabled:          getBool("TRACING_ENABLED", false),
			ExporterEndpoint: os.Getenv("OTLP_ENDPOINT"),
			ExporterProtocol: getEnv("OTLP_PROTOCOL", "grpc"),
			SamplingRatio:    getFloat("TRACING_SAMPLING_RATIO", 0.1),
		},
		SchedulerCap: getInt("SCHEDULER_TENANT_CAP", 100),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Eta.Provider {
	case "google", "mapbox", "osrm", "none":
	default:
		return fmt.Errorf("unsupported eta provider %q", c.Eta.Provider)
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Monitor.BatchSize <= 0 {
		return fmt.Errorf("monitor batch size must be positive")
	}
	return nil
}

// IsProduction reports whether the service runs with production guarantees.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func getFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}

func getBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	return raw == "1" || raw == "true" || raw == "yes"
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
