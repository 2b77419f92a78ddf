package sophia

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Authenticate exchanges the configured user and password for a bearer
// token. The upstream answers with the token as plain text, not JSON.
func (s *service) Authenticate(ctx context.Context) (string, error) {
	if err := s.configured(); err != nil {
		s.logger.Warn("sophia api variables are not configured")
		return "", err
	}

	if s.cfg.AuthTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.AuthTimeout)
		defer cancel()
	}

	body, err := json.Marshal(authRequest{
		Usuario: s.cfg.User,
		Senha:   s.cfg.Password,
	})
	if err != nil {
		return "", fmt.Errorf("marshal auth body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+authPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create auth request: %w", err)
	}
	req.Header.Set("Content-Type", applicationJSON)

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)

	if err != nil {
		s.logger.Error("sophia auth request failed",
			slog.Any("error", err),
			slog.Duration("latency", latency),
		)
		return "", fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read auth response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Error("sophia auth non-2xx",
			slog.Int("status", resp.StatusCode),
			slog.String("body_snippet", snippet(respBytes)),
			slog.Duration("latency", latency),
		)
		return "", fmt.Errorf("sophia auth failed: status=%d", resp.StatusCode)
	}

	token := strings.TrimSpace(string(respBytes))
	if token == "" {
		return "", fmt.Errorf("sophia auth returned an empty token")
	}

	s.logger.Info("sophia token acquired",
		slog.String("token_prefix", prefix(token, 6)),
		slog.Duration("latency", latency),
	)

	return token, nil
}
