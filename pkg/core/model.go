package core

import "time"

type Config struct {
	Environment string
	Otel        OtelConfig
	Port        int
	SkipAuth    bool
	Redis       RedisConfig
	Sophia      SophiaConfig
	Search      SearchConfig
	Google      GoogleConfig
}

type OtlpConfig struct {
	Endpoint string
	Insecure bool
}

type OtelConfig struct {
	OtlpExporter OtlpConfig
	Disable      bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Share the upstream credential between replicas through Redis.
	ShareToken bool
}

type SophiaConfig struct {
	Hostname string
	Tenant   string
	User     string
	Password string
	// Overrides the URL built from Hostname and Tenant. Mostly useful for tests.
	BaseURL string

	AuthTimeout   time.Duration
	SearchTimeout time.Duration
	PhotoTimeout  time.Duration
	TokenTTL      time.Duration
}

// APIBaseURL returns the root every upstream path is appended to, or "" when
// the upstream is not configured.
func (c SophiaConfig) APIBaseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	if c.Hostname == "" || c.Tenant == "" {
		return ""
	}
	return "https://" + c.Hostname + "/SophiAWebApi/" + c.Tenant
}

type SearchConfig struct {
	PhotoConcurrency int
}

type GoogleConfig struct {
	ClientID      string
	AllowedDomain string
}
