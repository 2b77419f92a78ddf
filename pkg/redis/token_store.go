package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

const DefaultTokenKey = "student-search:sophia:token"

// TokenStore keeps the upstream credential in Redis so every replica reuses
// the same one. Entries expire with the credential itself.
type TokenStore struct {
	rdb redis.Cmdable
	key string
	now func() time.Time
}

func NewTokenStore(rdb redis.Cmdable, key string) *TokenStore {
	if key == "" {
		key = DefaultTokenKey
	}
	return &TokenStore{rdb: rdb, key: key, now: time.Now}
}

type storedToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	Expiry      time.Time `json:"expiry"`
}

func (s *TokenStore) Load(ctx context.Context) (*oauth2.Token, error) {
	raw, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}

	var st storedToken
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode stored token: %w", err)
	}

	return &oauth2.Token{
		AccessToken: st.AccessToken,
		TokenType:   st.TokenType,
		Expiry:      st.Expiry,
	}, nil
}

func (s *TokenStore) Save(ctx context.Context, tok *oauth2.Token) error {
	if tok == nil || tok.AccessToken == "" {
		return errors.New("refusing to store an empty token")
	}

	ttl := tok.Expiry.Sub(s.now())
	if ttl <= 0 {
		return nil
	}

	raw, err := json.Marshal(storedToken{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		Expiry:      tok.Expiry,
	})
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}

	if err := s.rdb.Set(ctx, s.key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}
