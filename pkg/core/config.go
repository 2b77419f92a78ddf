package core

import (
	"errors"
	"fmt"
	"time"
)

const (
	defaultConfigEnvironment = "development"
	defaultConfigPort        = 8000
	defaultSkipAuth          = false

	defaultOtelDisable          = false
	defaultOTLPExporterEndpoint = "localhost:4317"
	defaultOTLPInsecure         = false

	defaultRedisAddr       = "localhost:6379"
	defaultRedisPassword   = ""
	defaultRedisDB         = 0
	defaultRedisShareToken = false

	defaultSophiaAuthTimeout   = 10 * time.Second
	defaultSophiaSearchTimeout = 30 * time.Second
	defaultSophiaPhotoTimeout  = 5 * time.Second
	// upstream tokens live roughly 30 minutes
	defaultSophiaTokenTTL = 29 * time.Minute

	defaultPhotoConcurrency = 8

	defaultGoogleClientID      = "UNSET"
	defaultGoogleAllowedDomain = "colegiocarbonell.com.br"
)

func DefaultConfig() Config {
	return Config{
		Environment: defaultConfigEnvironment,
		Port:        defaultConfigPort,
		SkipAuth:    defaultSkipAuth,
		Otel: OtelConfig{
			Disable: defaultOtelDisable,
			OtlpExporter: OtlpConfig{
				Endpoint: defaultOTLPExporterEndpoint,
				Insecure: defaultOTLPInsecure,
			},
		},
		Redis: RedisConfig{
			Addr:       defaultRedisAddr,
			Password:   defaultRedisPassword,
			DB:         defaultRedisDB,
			ShareToken: defaultRedisShareToken,
		},
		Sophia: SophiaConfig{
			AuthTimeout:   defaultSophiaAuthTimeout,
			SearchTimeout: defaultSophiaSearchTimeout,
			PhotoTimeout:  defaultSophiaPhotoTimeout,
			TokenTTL:      defaultSophiaTokenTTL,
		},
		Search: SearchConfig{
			PhotoConcurrency: defaultPhotoConcurrency,
		},
		Google: GoogleConfig{
			ClientID:      defaultGoogleClientID,
			AllowedDomain: defaultGoogleAllowedDomain,
		},
	}
}

func NewConfig(options ...func(*Config)) Config {
	config := DefaultConfig()
	for _, opt := range options {
		opt(&config)
	}
	return config
}

func NewConfigFromEnv(options ...func(*Config)) (Config, error) {
	config := DefaultConfig()
	err := errors.Join(
		setFromEnv(&config.Environment, "ENVIRONMENT"),
		setFromEnv(&config.Port, "PORT"),
		setFromEnv(&config.SkipAuth, "SKIP_AUTH"),
		setFromEnv(&config.Otel.Disable, "OTEL_DISABLE"),
		setFromEnv(&config.Otel.OtlpExporter.Endpoint, "OTEL_OTLP_EXPORTER_ENDPOINT"),
		setFromEnv(&config.Otel.OtlpExporter.Insecure, "OTEL_OTLP_EXPORTER_INSECURE"),
		setFromEnv(&config.Redis.Addr, "REDIS_ADDR"),
		setFromEnv(&config.Redis.Password, "REDIS_PASSWORD"),
		setFromEnv(&config.Redis.DB, "REDIS_DB"),
		setFromEnv(&config.Redis.ShareToken, "REDIS_SHARE_TOKEN"),
		setFromEnv(&config.Sophia.Hostname, "SOPHIA_API_HOSTNAME"),
		setFromEnv(&config.Sophia.Tenant, "SOPHIA_TENANT"),
		setFromEnv(&config.Sophia.User, "SOPHIA_USER"),
		setFromEnv(&config.Sophia.Password, "SOPHIA_PASSWORD"),
		setFromEnv(&config.Sophia.BaseURL, "SOPHIA_BASE_URL"),
		setFromEnv(&config.Sophia.AuthTimeout, "SOPHIA_AUTH_TIMEOUT"),
		setFromEnv(&config.Sophia.SearchTimeout, "SOPHIA_SEARCH_TIMEOUT"),
		setFromEnv(&config.Sophia.PhotoTimeout, "SOPHIA_PHOTO_TIMEOUT"),
		setFromEnv(&config.Sophia.TokenTTL, "SOPHIA_TOKEN_TTL"),
		setFromEnv(&config.Search.PhotoConcurrency, "SEARCH_PHOTO_CONCURRENCY"),
		setFromEnv(&config.Google.ClientID, "GOOGLE_CLIENT_ID"),
		setFromEnv(&config.Google.AllowedDomain, "GOOGLE_ALLOWED_DOMAIN"),
	)

	for _, opt := range options {
		opt(&config)
	}

	return config, err
}

func LoadEnv(environment ...string) error {
	filenames := []string{
		".env.local",
		".env",
	}

	env := getEnv("ENVIRONMENT", DefaultConfig().Environment)
	if len(environment) > 0 {
		env = environment[0]
	}

	if env != "" {
		file := ".env." + env + ".local"
		filenames = append([]string{file}, filenames...)
	}

	var errs error

	for _, filename := range filenames {
		err := loadEnvFile(filename)
		if err != nil {
			errs = errors.Join(
				errs,
				fmt.Errorf("error loading %s: %w", filename, err),
			)
		}
	}

	return errs
}
