package sophia

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

const (
	defaultTokenTTL = 29 * time.Minute
	// Sophia expects the raw value in a "token" header, not Authorization.
	tokenType = "token"
)

type Authenticator interface {
	Authenticate(ctx context.Context) (string, error)
}

// TokenStore shares a credential between processes. Load returns nil, nil
// when nothing is stored.
type TokenStore interface {
	Load(ctx context.Context) (*oauth2.Token, error)
	Save(ctx context.Context, tok *oauth2.Token) error
}

type TokenManagerOptions struct {
	// Lifetime assigned to a freshly issued token. Defaults to 29 minutes.
	TTL time.Duration
	// Optional second-level cache shared with other replicas.
	Store  TokenStore
	Logger *slog.Logger
	// Clock override for tests.
	Now func() time.Time
}

// TokenManager caches the upstream credential for the whole process. Reads
// and refreshes are guarded by a RWMutex; two callers may refresh at the same
// time, the last write wins and both tokens stay valid upstream.
type TokenManager struct {
	auth   Authenticator
	ttl    time.Duration
	store  TokenStore
	logger *slog.Logger
	now    func() time.Time

	mu    sync.RWMutex
	token *oauth2.Token
}

func NewTokenManager(auth Authenticator, opts TokenManagerOptions) *TokenManager {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &TokenManager{
		auth:   auth,
		ttl:    ttl,
		store:  opts.Store,
		logger: logger.With(slog.String("component", "sophia_token")),
		now:    now,
	}
}

// Token returns the cached credential while it is still valid, otherwise it
// authenticates again.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	if tok := m.cached(); tok != nil {
		return tok.AccessToken, nil
	}

	if tok := m.loadShared(ctx); tok != nil {
		m.set(tok)
		return tok.AccessToken, nil
	}

	return m.Refresh(ctx)
}

// Refresh always authenticates. On failure the previous credential, expired
// or not, is left in place.
func (m *TokenManager) Refresh(ctx context.Context) (string, error) {
	value, err := m.auth.Authenticate(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to obtain sophia token", slog.Any("error", err))
		return "", fmt.Errorf("%w: %w", ErrAuth, err)
	}

	tok := &oauth2.Token{
		AccessToken: value,
		TokenType:   tokenType,
		Expiry:      m.now().Add(m.ttl),
	}
	m.set(tok)
	m.saveShared(ctx, tok)

	m.logger.InfoContext(ctx, "new sophia token cached", slog.Time("expires_at", tok.Expiry))

	return value, nil
}

// Current returns a copy of the cached credential, valid or not, or nil.
func (m *TokenManager) Current() *oauth2.Token {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.token == nil {
		return nil
	}
	cp := *m.token
	return &cp
}

// TokenSource adapts the manager to oauth2.TokenSource, bound to ctx.
func (m *TokenManager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &managerTokenSource{ctx: ctx, m: m}
}

func (m *TokenManager) cached() *oauth2.Token {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.token != nil && m.now().Before(m.token.Expiry) {
		return m.token
	}
	return nil
}

func (m *TokenManager) set(tok *oauth2.Token) {
	m.mu.Lock()
	m.token = tok
	m.mu.Unlock()
}

func (m *TokenManager) loadShared(ctx context.Context) *oauth2.Token {
	if m.store == nil {
		return nil
	}

	tok, err := m.store.Load(ctx)
	if err != nil {
		m.logger.WarnContext(ctx, "shared token store load failed", slog.Any("error", err))
		return nil
	}
	if tok == nil || tok.AccessToken == "" || !m.now().Before(tok.Expiry) {
		return nil
	}
	return tok
}

func (m *TokenManager) saveShared(ctx context.Context, tok *oauth2.Token) {
	if m.store == nil {
		return
	}

	err := m.store.Save(ctx, tok)
	if err != nil {
		m.logger.WarnContext(ctx, "shared token store save failed", slog.Any("error", err))
	}
}

type managerTokenSource struct {
	ctx context.Context
	m   *TokenManager
}

func (s *managerTokenSource) Token() (*oauth2.Token, error) {
	if _, err := s.m.Token(s.ctx); err != nil {
		return nil, err
	}

	tok := s.m.Current()
	if tok == nil {
		return nil, ErrAuth
	}
	return tok, nil
}
