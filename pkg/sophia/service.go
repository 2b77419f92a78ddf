// Package sophia talks to the Sophia school-management API. Every assumption
// about its wire format (plain-text token, field names, photo envelope) lives
// in this package.
package sophia

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/carbonell/student-search-api/pkg/core"
)

const (
	authPath          = "/api/v1/Autenticacao"
	studentsPath      = "/api/v1/alunos"
	reducedPhotoPath  = "/Fotos/FotosReduzida"
	tokenHeader       = "token"
	applicationJSON   = "application/json"
	nameQueryParam    = "Nome"
	maxErrBodyLogSize = 800
)

var (
	// ErrNotConfigured is returned when hostname or tenant are missing.
	ErrNotConfigured = errors.New("sophia api is not configured")
	// ErrAuth wraps every failure to obtain an upstream token.
	ErrAuth = errors.New("sophia authentication failed")
	// ErrPhotoUnavailable means the student has no usable reduced photo.
	ErrPhotoUnavailable = errors.New("sophia photo unavailable")
)

type Client interface {
	Authenticate(ctx context.Context) (string, error)
	SearchStudents(ctx context.Context, token, name string) ([]Student, error)
	StudentPhoto(ctx context.Context, token string, id StudentID) (string, error)
}

type HTTPTransport interface {
	Do(req *http.Request) (*http.Response, error)
}

type Options struct {
	// Override for testing the HTTP client
	HTTPClient HTTPTransport
	// Structured logger using slog package
	Logger *slog.Logger
}

type service struct {
	cfg     *core.SophiaConfig
	baseURL string
	client  HTTPTransport
	logger  *slog.Logger
}

var _ Client = (*service)(nil)

func New(cfg *core.SophiaConfig, opts Options) Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger = logger.With(
		slog.String("component", "sophia"),
		slog.String("vendor", "sophia"),
	)

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	return &service{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.APIBaseURL(), "/"),
		client:  client,
		logger:  logger,
	}
}

func (s *service) configured() error {
	if s.baseURL == "" {
		return ErrNotConfigured
	}
	return nil
}

func snippet(body []byte) string {
	out := strings.TrimSpace(string(body))
	if len(out) > maxErrBodyLogSize {
		out = out[:maxErrBodyLogSize] + "..."
	}
	return out
}

func prefix(s string, n int) string {
	if n <= 0 || s == "" {
		return ""
	}
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
