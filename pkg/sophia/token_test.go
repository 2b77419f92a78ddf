package sophia

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeAuthenticator struct {
	calls  atomic.Int32
	tokens []string
	err    error
}

func (f *fakeAuthenticator) Authenticate(ctx context.Context) (string, error) {
	n := int(f.calls.Add(1))
	if f.err != nil {
		return "", f.err
	}
	if n <= len(f.tokens) {
		return f.tokens[n-1], nil
	}
	return f.tokens[len(f.tokens)-1], nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeStore struct {
	mu      sync.Mutex
	tok     *oauth2.Token
	loadErr error
	saveErr error
	saves   int
}

func (s *fakeStore) Load(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tok, s.loadErr
}

func (s *fakeStore) Save(ctx context.Context, tok *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.tok = tok
	return nil
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)}
}

func TestTokenManager_ReusesValidToken(t *testing.T) {
	auth := &fakeAuthenticator{tokens: []string{"T1", "T2"}}
	clock := newClock()

	m := NewTokenManager(auth, TokenManagerOptions{Logger: discardLogger(), Now: clock.Now})

	first, err := m.Token(context.Background())
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)

	second, err := m.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "T1", first)
	assert.Equal(t, "T1", second)
	assert.Equal(t, int32(1), auth.calls.Load(), "second call must not authenticate")
}

func TestTokenManager_RefreshesAfterExpiry(t *testing.T) {
	auth := &fakeAuthenticator{tokens: []string{"T1", "T2"}}
	clock := newClock()

	m := NewTokenManager(auth, TokenManagerOptions{TTL: 29 * time.Minute, Logger: discardLogger(), Now: clock.Now})

	_, err := m.Token(context.Background())
	require.NoError(t, err)

	clock.Advance(29 * time.Minute)

	tok, err := m.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "T2", tok)
	assert.Equal(t, int32(2), auth.calls.Load(), "exactly one new authentication after expiry")

	cur := m.Current()
	require.NotNil(t, cur)
	assert.Equal(t, clock.Now().Add(29*time.Minute), cur.Expiry)
	assert.Equal(t, "token", cur.TokenType)
}

func TestTokenManager_FailureKeepsPreviousToken(t *testing.T) {
	auth := &fakeAuthenticator{tokens: []string{"T1"}}
	clock := newClock()

	m := NewTokenManager(auth, TokenManagerOptions{Logger: discardLogger(), Now: clock.Now})

	_, err := m.Token(context.Background())
	require.NoError(t, err)

	auth.err = errors.New("upstream down")
	clock.Advance(time.Hour)

	_, err = m.Token(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuth)
	assert.Contains(t, err.Error(), "upstream down")

	cur := m.Current()
	require.NotNil(t, cur, "previous credential must survive a failed refresh")
	assert.Equal(t, "T1", cur.AccessToken)
}

func TestTokenManager_FirstFailureLeavesNoToken(t *testing.T) {
	auth := &fakeAuthenticator{err: errors.New("bad credentials")}

	m := NewTokenManager(auth, TokenManagerOptions{Logger: discardLogger()})

	_, err := m.Token(context.Background())
	require.ErrorIs(t, err, ErrAuth)
	assert.Nil(t, m.Current())
}

func TestTokenManager_RefreshAlwaysAuthenticates(t *testing.T) {
	auth := &fakeAuthenticator{tokens: []string{"T1", "T2"}}

	m := NewTokenManager(auth, TokenManagerOptions{Logger: discardLogger()})

	_, err := m.Token(context.Background())
	require.NoError(t, err)

	tok, err := m.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "T2", tok)
	assert.Equal(t, int32(2), auth.calls.Load())
}

func TestTokenManager_ConcurrentCallers(t *testing.T) {
	auth := &fakeAuthenticator{tokens: []string{"T1"}}

	m := NewTokenManager(auth, TokenManagerOptions{Logger: discardLogger()})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := m.Token(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "T1", tok)
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, auth.calls.Load(), int32(1))
	assert.Equal(t, "T1", m.Current().AccessToken)
}

func TestTokenManager_UsesSharedStore(t *testing.T) {
	clock := newClock()
	store := &fakeStore{tok: &oauth2.Token{
		AccessToken: "SHARED",
		TokenType:   "token",
		Expiry:      clock.Now().Add(5 * time.Minute),
	}}
	auth := &fakeAuthenticator{tokens: []string{"LOCAL"}}

	m := NewTokenManager(auth, TokenManagerOptions{Store: store, Logger: discardLogger(), Now: clock.Now})

	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SHARED", tok)
	assert.Equal(t, int32(0), auth.calls.Load())

	clock.Advance(6 * time.Minute)

	tok, err = m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "LOCAL", tok, "expired shared token must be replaced")
	assert.Equal(t, int32(1), auth.calls.Load())
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, "LOCAL", store.tok.AccessToken)
}

func TestTokenManager_StoreErrorsAreNotFatal(t *testing.T) {
	store := &fakeStore{loadErr: errors.New("redis down"), saveErr: errors.New("redis down")}
	auth := &fakeAuthenticator{tokens: []string{"T1"}}

	m := NewTokenManager(auth, TokenManagerOptions{Store: store, Logger: discardLogger()})

	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "T1", tok)
	assert.Equal(t, 1, store.saves)
}

func TestTokenManager_TokenSource(t *testing.T) {
	auth := &fakeAuthenticator{tokens: []string{"T1"}}
	clock := newClock()

	m := NewTokenManager(auth, TokenManagerOptions{TTL: time.Minute, Logger: discardLogger(), Now: clock.Now})

	tok, err := m.TokenSource(context.Background()).Token()
	require.NoError(t, err)
	assert.Equal(t, "T1", tok.AccessToken)
	assert.Equal(t, clock.Now().Add(time.Minute), tok.Expiry)

	auth.err = errors.New("nope")
	clock.Advance(2 * time.Minute)

	_, err = m.TokenSource(context.Background()).Token()
	assert.ErrorIs(t, err, ErrAuth)
}
