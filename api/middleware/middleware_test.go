package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://issuer.example"
	testClientID = "client-123.apps.googleusercontent.com"
	testDomain   = "colegiocarbonell.com.br"
)

func newRSAKeyPair(t *testing.T) (*rsa.PrivateKey, jwk.Key) {
	t.Helper()

	priv, pubJWK := newRSAKeyPairWithoutAlg(t)
	require.NoError(t, pubJWK.Set(jwk.AlgorithmKey, jwa.RS256))

	return priv, pubJWK
}

// Google's published keys do not always carry "alg".
func newRSAKeyPairWithoutAlg(t *testing.T) (*rsa.PrivateKey, jwk.Key) {
	t.Helper()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pubJWK, err := jwk.FromRaw(&priv.PublicKey)
	require.NoError(t, err)

	require.NoError(t, pubJWK.Set(jwk.KeyIDKey, "test-kid"))

	return priv, pubJWK
}

func newJWKSserver(t *testing.T, set jwk.Set) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(set))
	}))
}

func newFailingJWKSserver() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
}

func signIDToken(t *testing.T, priv *rsa.PrivateKey, claims map[string]any) string {
	t.Helper()

	tok := jwt.New()
	require.NoError(t, tok.Set(jwt.IssuerKey, testIssuer))
	require.NoError(t, tok.Set(jwt.AudienceKey, testClientID))
	require.NoError(t, tok.Set(jwt.SubjectKey, "user-123"))
	require.NoError(t, tok.Set(jwt.ExpirationKey, time.Now().Add(time.Hour)))
	require.NoError(t, tok.Set("email", "secretaria@colegiocarbonell.com.br"))
	require.NoError(t, tok.Set("email_verified", true))
	require.NoError(t, tok.Set("name", "Secretaria"))

	for k, v := range claims {
		require.NoError(t, tok.Set(k, v))
	}

	hdrs := jws.NewHeaders()
	require.NoError(t, hdrs.Set(jws.KeyIDKey, "test-kid"))

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, priv, jws.WithProtectedHeaders(hdrs)))
	require.NoError(t, err)

	return string(signed)
}

func makeAppWithMiddleware(v *OIDCVerifier) *fiber.App {
	app := fiber.New()
	app.Use(v.FiberMiddleware())
	app.Get("/ok", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"sub":   c.Locals("sub"),
			"email": c.Locals("email"),
			"name":  c.Locals("name"),
		})
	})
	return app
}

func newTestVerifier(t *testing.T) (*rsa.PrivateKey, *OIDCVerifier, func()) {
	t.Helper()

	priv, pub := newRSAKeyPair(t)

	set := jwk.NewSet()
	require.NoError(t, set.AddKey(pub))

	jwksSrv := newJWKSserver(t, set)

	v, err := NewOIDCVerifierWithURLs(OIDCConfig{ClientID: testClientID, AllowedDomain: testDomain}, testIssuer, jwksSrv.URL)
	require.NoError(t, err)

	return priv, v, jwksSrv.Close
}

func doRequest(t *testing.T, app *fiber.App, authorization string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestNewOIDCVerifier_Validation(t *testing.T) {
	_, err := NewOIDCVerifier(OIDCConfig{})
	assert.Error(t, err)
	assert.Equal(t, "ClientID is required", err.Error())

	_, err = NewOIDCVerifier(OIDCConfig{ClientID: "cid"})
	assert.Error(t, err)
	assert.Equal(t, "AllowedDomain is required", err.Error())
}

func TestNewOIDCVerifier_UsesGoogleEndpoints(t *testing.T) {
	v, err := NewOIDCVerifier(OIDCConfig{ClientID: "cid", AllowedDomain: testDomain})
	require.NoError(t, err)
	require.NotNil(t, v)

	assert.Equal(t, GoogleJWKSURL, v.jwksURL)
	assert.True(t, v.trustedIssuer("https://accounts.google.com"))
	assert.True(t, v.trustedIssuer("accounts.google.com"))
	assert.False(t, v.trustedIssuer("https://issuer.example"))
	assert.NotNil(t, v.cache)
}

func TestNewOIDCVerifierWithURLs_Validation(t *testing.T) {
	cfg := OIDCConfig{ClientID: "cid", AllowedDomain: testDomain}

	_, err := NewOIDCVerifierWithURLs(cfg, "", "jwks")
	assert.Error(t, err)
	assert.Equal(t, "issuer is required", err.Error())

	_, err = NewOIDCVerifierWithURLs(cfg, "iss", "")
	assert.Error(t, err)
	assert.Equal(t, "jwksURL is required", err.Error())
}

func TestFiberMiddleware_MissingHeader_Unauthorized(t *testing.T) {
	_, v, done := newTestVerifier(t)
	defer done()

	app := makeAppWithMiddleware(v)

	assert.Equal(t, fiber.StatusUnauthorized, doRequest(t, app, "").StatusCode)
	assert.Equal(t, fiber.StatusUnauthorized, doRequest(t, app, "Basic abc").StatusCode)
	assert.Equal(t, fiber.StatusUnauthorized, doRequest(t, app, "Bearer ").StatusCode)
}

func TestFiberMiddleware_JWKSFetchFailure_Unauthorized(t *testing.T) {
	jwksSrv := newFailingJWKSserver()
	defer jwksSrv.Close()

	v, err := NewOIDCVerifierWithURLs(OIDCConfig{ClientID: "cid", AllowedDomain: testDomain}, testIssuer, jwksSrv.URL)
	require.NoError(t, err)

	resp := doRequest(t, makeAppWithMiddleware(v), "Bearer not-a-jwt")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestFiberMiddleware_InvalidToken_Unauthorized(t *testing.T) {
	_, v, done := newTestVerifier(t)
	defer done()

	resp := doRequest(t, makeAppWithMiddleware(v), "Bearer definitely-not-a-jwt")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestFiberMiddleware_RejectedClaims(t *testing.T) {
	tests := []struct {
		name   string
		claims map[string]any
	}{
		{name: "wrong issuer", claims: map[string]any{jwt.IssuerKey: "https://different-issuer.example"}},
		{name: "wrong audience", claims: map[string]any{jwt.AudienceKey: "other-client"}},
		{name: "expired", claims: map[string]any{jwt.ExpirationKey: time.Now().Add(-time.Hour)}},
		{name: "other domain", claims: map[string]any{"email": "someone@gmail.com"}},
		{name: "look-alike domain", claims: map[string]any{"email": "x@evil-colegiocarbonell.com.br"}},
		{name: "unverified email", claims: map[string]any{"email_verified": false}},
		{name: "missing email", claims: map[string]any{"email": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			priv, v, done := newTestVerifier(t)
			defer done()

			token := signIDToken(t, priv, tt.claims)

			resp := doRequest(t, makeAppWithMiddleware(v), "Bearer "+token)
			assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestFiberMiddleware_ValidToken_SetsLocals_AllowsRequest(t *testing.T) {
	priv, v, done := newTestVerifier(t)
	defer done()

	token := signIDToken(t, priv, map[string]any{"email_verified": "true"})

	resp := doRequest(t, makeAppWithMiddleware(v), "Bearer "+token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))

	assert.Equal(t, "user-123", got["sub"])
	assert.Equal(t, "secretaria@colegiocarbonell.com.br", got["email"])
	assert.Equal(t, "Secretaria", got["name"])
}

func TestFiberMiddleware_KeyWithoutAlg_AllowsRequest(t *testing.T) {
	priv, pub := newRSAKeyPairWithoutAlg(t)

	set := jwk.NewSet()
	require.NoError(t, set.AddKey(pub))

	jwksSrv := newJWKSserver(t, set)
	defer jwksSrv.Close()

	v, err := NewOIDCVerifierWithURLs(OIDCConfig{ClientID: testClientID, AllowedDomain: testDomain}, testIssuer, jwksSrv.URL)
	require.NoError(t, err)

	token := signIDToken(t, priv, nil)

	resp := doRequest(t, makeAppWithMiddleware(v), "Bearer "+token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "secretaria@colegiocarbonell.com.br", got["email"])
}

func TestFiberMiddleware_KeyWithoutAlg_StillChecksSignature(t *testing.T) {
	_, pub := newRSAKeyPairWithoutAlg(t)
	otherPriv, _ := newRSAKeyPairWithoutAlg(t)

	set := jwk.NewSet()
	require.NoError(t, set.AddKey(pub))

	jwksSrv := newJWKSserver(t, set)
	defer jwksSrv.Close()

	v, err := NewOIDCVerifierWithURLs(OIDCConfig{ClientID: testClientID, AllowedDomain: testDomain}, testIssuer, jwksSrv.URL)
	require.NoError(t, err)

	token := signIDToken(t, otherPriv, nil)

	resp := doRequest(t, makeAppWithMiddleware(v), "Bearer "+token)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
