package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	GoogleIssuer  = "https://accounts.google.com"
	GoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

	bearerPrefix = "Bearer "
	jwksTimeout  = 5 * time.Second
)

// Google signs some ID tokens with the bare host as issuer.
var googleIssuers = []string{GoogleIssuer, "accounts.google.com"}

type OIDCConfig struct {
	// OAuth client id the ID token must be issued for.
	ClientID string
	// Only e-mails ending in "@" + AllowedDomain are let through.
	AllowedDomain string
}

// OIDCVerifier checks the Google ID token a signed-in staff member sends as
// a bearer token.
type OIDCVerifier struct {
	issuers []string
	jwksURL string
	cache   *jwk.Cache
	cfg     OIDCConfig
}

func NewOIDCVerifier(cfg OIDCConfig) (*OIDCVerifier, error) {
	return newOIDCVerifier(cfg, googleIssuers, GoogleJWKSURL)
}

// copy for testing
func NewOIDCVerifierWithURLs(cfg OIDCConfig, issuer, jwksURL string) (*OIDCVerifier, error) {
	if issuer == "" {
		return nil, errors.New("issuer is required")
	}
	return newOIDCVerifier(cfg, []string{issuer}, jwksURL)
}

func newOIDCVerifier(cfg OIDCConfig, issuers []string, jwksURL string) (*OIDCVerifier, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("ClientID is required")
	}

	if cfg.AllowedDomain == "" {
		return nil, errors.New("AllowedDomain is required")
	}

	if jwksURL == "" {
		return nil, errors.New("jwksURL is required")
	}

	cache := jwk.NewCache(context.Background())
	// register the JWKS URL with the default refresh window
	if err := cache.Register(jwksURL); err != nil {
		return nil, err
	}

	return &OIDCVerifier{
		issuers: issuers,
		jwksURL: jwksURL,
		cache:   cache,
		cfg:     cfg,
	}, nil
}

func (v *OIDCVerifier) FiberMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return fiber.ErrUnauthorized
		}

		ctx, cancel := context.WithTimeout(c.Context(), jwksTimeout)
		defer cancel()

		keyset, err := v.cache.Get(ctx, v.jwksURL)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "unable to load jwks")
		}

		tok, err := jwt.Parse(
			[]byte(raw),
			// Google's JWKS may omit "alg"; take it from the key type then.
			jwt.WithKeySet(keyset, jws.WithInferAlgorithmFromKey(true)),
			jwt.WithValidate(true),
			jwt.WithAudience(v.cfg.ClientID),
		)
		if err != nil {
			return fiber.ErrUnauthorized
		}

		if !v.trustedIssuer(tok.Issuer()) {
			return fiber.ErrUnauthorized
		}

		email, _ := claimString(tok, "email")
		if !emailVerified(tok) || !v.allowedEmail(email) {
			return fiber.NewError(fiber.StatusUnauthorized, "account not allowed")
		}

		c.Locals("email", email)
		c.Locals("sub", tok.Subject())
		if name, ok := claimString(tok, "name"); ok {
			c.Locals("name", name)
		}

		return c.Next()
	}
}

func (v *OIDCVerifier) trustedIssuer(iss string) bool {
	for _, want := range v.issuers {
		if iss == want {
			return true
		}
	}
	return false
}

func (v *OIDCVerifier) allowedEmail(email string) bool {
	return email != "" && strings.HasSuffix(strings.ToLower(email), "@"+strings.ToLower(v.cfg.AllowedDomain))
}

func bearerToken(header string) (string, bool) {
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	raw := strings.TrimSpace(header[len(bearerPrefix):])
	return raw, raw != ""
}

func claimString(tok jwt.Token, name string) (string, bool) {
	v, ok := tok.Get(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// email_verified arrives as a bool, or as a string in older tokens.
func emailVerified(tok jwt.Token) bool {
	v, ok := tok.Get("email_verified")
	if !ok {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "true"
	}
	return false
}
