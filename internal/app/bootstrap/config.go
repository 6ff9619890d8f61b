package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for the export service.
// It merges file defaults and environment overrides to support both local and
// deployed runs.
type Config struct {
	ServiceID string

	HTTPPort int

	DatabaseURL string
	RedisURL    string

	ExportDir           string
	VerificationBaseURL string
	ArchiveWorkers      int
	AllowSampleData     bool

	JWTPrivateKeyPEM  string
	JWTPublicKeyPEM   string
	JWTKeyID          string
	AllowEphemeralJWT bool

	TokenTTL      time.Duration
	SweepInterval time.Duration

	OTPRateLimitThreshold int
	OTPRateLimitWindow    time.Duration

	TwilioBaseURL    string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioServiceSID string
	ProviderTimeout  time.Duration

	MailerEndpoint string
	MailerAPIKey   string
	MailerFrom     string

	MaxDBConns int32
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// It is intentionally separate from Config so runtime-only fields stay
// internal.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL string `yaml:"postgres_url"`
		RedisURL    string `yaml:"redis_url"`
	} `yaml:"dependencies"`
	Export struct {
		Dir                 string `yaml:"dir"`
		VerificationBaseURL string `yaml:"verification_base_url"`
		ArchiveWorkers      int    `yaml:"archive_workers"`
		AllowSampleData     bool   `yaml:"allow_sample_data"`
	} `yaml:"export"`
	Providers struct {
		Twilio struct {
			BaseURL    string `yaml:"base_url"`
			AccountSID string `yaml:"account_sid"`
			AuthToken  string `yaml:"auth_token"`
			ServiceSID string `yaml:"verify_service_sid"`
		} `yaml:"twilio"`
		Mailer struct {
			Endpoint string `yaml:"endpoint"`
			APIKey   string `yaml:"api_key"`
			From     string `yaml:"from"`
		} `yaml:"mailer"`
	} `yaml:"providers"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// This order keeps local bootstrap simple while allowing environment-specific
// overrides.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:             "Chatty-Export-Service",
		HTTPPort:              8080,
		ExportDir:             "exports",
		VerificationBaseURL:   "https://chatty.app/export/verify",
		ArchiveWorkers:        2,
		JWTKeyID:              "chatty-export-key-1",
		AllowEphemeralJWT:     true,
		TokenTTL:              24 * time.Hour,
		SweepInterval:         15 * time.Minute,
		OTPRateLimitThreshold: 5,
		OTPRateLimitWindow:    10 * time.Minute,
		ProviderTimeout:       8 * time.Second,
		MaxDBConns:            10,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if f.Export.Dir != "" {
			cfg.ExportDir = f.Export.Dir
		}
		if f.Export.VerificationBaseURL != "" {
			cfg.VerificationBaseURL = f.Export.VerificationBaseURL
		}
		if f.Export.ArchiveWorkers > 0 {
			cfg.ArchiveWorkers = f.Export.ArchiveWorkers
		}
		cfg.AllowSampleData = f.Export.AllowSampleData
		if f.Providers.Twilio.BaseURL != "" {
			cfg.TwilioBaseURL = f.Providers.Twilio.BaseURL
		}
		if f.Providers.Twilio.AccountSID != "" {
			cfg.TwilioAccountSID = f.Providers.Twilio.AccountSID
		}
		if f.Providers.Twilio.AuthToken != "" {
			cfg.TwilioAuthToken = f.Providers.Twilio.AuthToken
		}
		if f.Providers.Twilio.ServiceSID != "" {
			cfg.TwilioServiceSID = f.Providers.Twilio.ServiceSID
		}
		if f.Providers.Mailer.Endpoint != "" {
			cfg.MailerEndpoint = f.Providers.Mailer.Endpoint
		}
		if f.Providers.Mailer.APIKey != "" {
			cfg.MailerAPIKey = f.Providers.Mailer.APIKey
		}
		if f.Providers.Mailer.From != "" {
			cfg.MailerFrom = f.Providers.Mailer.From
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.ExportDir = envOrDefault("EXPORT_DIR", cfg.ExportDir)
	cfg.VerificationBaseURL = envOrDefault("EXPORT_VERIFICATION_BASE_URL", cfg.VerificationBaseURL)
	cfg.AllowSampleData = envBool("EXPORT_ALLOW_SAMPLE_DATA", cfg.AllowSampleData)
	cfg.JWTPrivateKeyPEM = envOrDefault("JWT_PRIVATE_KEY_PEM", cfg.JWTPrivateKeyPEM)
	cfg.JWTPublicKeyPEM = envOrDefault("JWT_PUBLIC_KEY_PEM", cfg.JWTPublicKeyPEM)
	cfg.JWTKeyID = envOrDefault("JWT_KEY_ID", cfg.JWTKeyID)
	cfg.AllowEphemeralJWT = envBool("JWT_ALLOW_EPHEMERAL", cfg.AllowEphemeralJWT)
	cfg.TwilioBaseURL = envOrDefault("TWILIO_BASE_URL", cfg.TwilioBaseURL)
	cfg.TwilioAccountSID = envOrDefault("TWILIO_ACCOUNT_SID", cfg.TwilioAccountSID)
	cfg.TwilioAuthToken = envOrDefault("TWILIO_AUTH_TOKEN", cfg.TwilioAuthToken)
	cfg.TwilioServiceSID = envOrDefault("TWILIO_VERIFY_SERVICE_SID", cfg.TwilioServiceSID)
	cfg.MailerEndpoint = envOrDefault("MAILER_ENDPOINT", cfg.MailerEndpoint)
	cfg.MailerAPIKey = envOrDefault("MAILER_API_KEY", cfg.MailerAPIKey)
	cfg.MailerFrom = envOrDefault("MAILER_FROM", cfg.MailerFrom)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.ArchiveWorkers = envInt("EXPORT_ARCHIVE_WORKERS", cfg.ArchiveWorkers)
	cfg.OTPRateLimitThreshold = envInt("OTP_RATE_LIMIT_THRESHOLD", cfg.OTPRateLimitThreshold)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))

	cfg.TokenTTL = time.Duration(envInt("EXPORT_TOKEN_TTL_HOURS", int(cfg.TokenTTL.Hours()))) * time.Hour
	cfg.SweepInterval = time.Duration(envInt("EXPORT_SWEEP_MINUTES", int(cfg.SweepInterval.Minutes()))) * time.Minute
	cfg.OTPRateLimitWindow = time.Duration(envInt("OTP_RATE_LIMIT_WINDOW_SECONDS", int(cfg.OTPRateLimitWindow.Seconds()))) * time.Second
	cfg.ProviderTimeout = time.Duration(envInt("PROVIDER_TIMEOUT_SECONDS", int(cfg.ProviderTimeout.Seconds()))) * time.Second

	if cfg.DatabaseURL == "" && !cfg.AllowSampleData {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL (set EXPORT_ALLOW_SAMPLE_DATA=1 for local fixture data)")
	}
	if (cfg.JWTPrivateKeyPEM == "" || cfg.JWTPublicKeyPEM == "") && !cfg.AllowEphemeralJWT {
		return Config{}, fmt.Errorf("missing JWT_PRIVATE_KEY_PEM or JWT_PUBLIC_KEY_PEM")
	}

	return cfg, nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envBool parses common boolean env forms while keeping a deterministic fallback.
func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}
