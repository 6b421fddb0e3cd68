package config

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds runtime configuration for the assetdesk service.
type Config struct {
	Addr           string        `env:"ADDR,default=:8085"`
	BackendBaseURL string        `env:"BACKEND_BASE_URL,required"`
	BackendTimeout time.Duration `env:"BACKEND_TIMEOUT,default=15s"`

	// OIDC_SCOPES is comma-separated; when unset the session layer
	// falls back to openid+email.
	OIDCIssuer            string        `env:"OIDC_ISSUER"`
	OIDCClientID          string        `env:"OIDC_CLIENT_ID"`
	OIDCClientSecret      string        `env:"OIDC_CLIENT_SECRET"`
	OIDCScopes            []string      `env:"OIDC_SCOPES"`
	OIDCRedirectURL       string        `env:"OIDC_REDIRECT_URL"`
	OIDCPostLogoutURL     string        `env:"OIDC_POST_LOGOUT_URL"`
	OIDCAuthLocale        string        `env:"OIDC_AUTH_LOCALE,default=es"`
	TokenRenewalLeadTime  time.Duration `env:"TOKEN_RENEWAL_LEAD_TIME,default=2m"`
	SessionTTL            time.Duration `env:"SESSION_TTL,default=12h"`
	CookieDomain          string        `env:"COOKIE_DOMAIN"`
	CookieSecure          bool          `env:"COOKIE_SECURE,default=false"`
	LandingURL            string        `env:"LANDING_URL,default=/"`

	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:4200"`
	RateLimit      int      `env:"RATE_LIMIT_PER_MINUTE,default=300"`

	ReportCatalogPath string `env:"REPORT_CATALOG_PATH"`
	OTLPEndpoint      string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load returns a Config populated from environment variables.
func Load(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if _, err := url.ParseRequestURI(c.BackendBaseURL); err != nil {
		return fmt.Errorf("invalid BACKEND_BASE_URL: %w", err)
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive, got %d", c.RateLimit)
	}
	if c.TokenRenewalLeadTime < 0 {
		return fmt.Errorf("TOKEN_RENEWAL_LEAD_TIME must not be negative")
	}
	return nil
}

// ValidateOIDC checks the settings the HTTP service needs on top of
// the shared ones. The report CLI never touches the identity provider,
// so these are not enforced at Load time.
func (c Config) ValidateOIDC() error {
	if !strings.HasPrefix(c.OIDCIssuer, "https://") && !strings.HasPrefix(c.OIDCIssuer, "http://") {
		return fmt.Errorf("invalid OIDC_ISSUER: %q", c.OIDCIssuer)
	}
	for name, v := range map[string]string{
		"OIDC_CLIENT_ID":       c.OIDCClientID,
		"OIDC_REDIRECT_URL":    c.OIDCRedirectURL,
		"OIDC_POST_LOGOUT_URL": c.OIDCPostLogoutURL,
	} {
		if v == "" {
			return fmt.Errorf("%s is required", name)
		}
	}
	return nil
}
