package sophia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

func (s *service) newGET(ctx context.Context, endpoint, token string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(tokenHeader, token)
	req.Header.Set("Accept", applicationJSON)
	return req, nil
}

// SearchStudents asks the upstream for students whose name matches name.
// The upstream only filters well on a single word, so callers pass one token
// and refine the result themselves.
func (s *service) SearchStudents(ctx context.Context, token, name string) ([]Student, error) {
	if err := s.configured(); err != nil {
		return nil, err
	}

	if s.cfg.SearchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.SearchTimeout)
		defer cancel()
	}

	endpoint := s.baseURL + studentsPath + "?" + url.Values{nameQueryParam: {name}}.Encode()

	req, err := s.newGET(ctx, endpoint, token)
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}

	log := s.logger.With(slog.String("name_filter", name))

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)

	if err != nil {
		log.Error("sophia search request failed",
			slog.Any("error", err),
			slog.Duration("latency", latency),
		)
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error("sophia search non-2xx",
			slog.Int("status", resp.StatusCode),
			slog.String("body_snippet", snippet(respBytes)),
		)
		return nil, fmt.Errorf("sophia search failed: status=%d", resp.StatusCode)
	}

	var students []Student
	if err := json.Unmarshal(respBytes, &students); err != nil {
		log.Error("sophia search decode failed", slog.Any("error", err))
		return nil, fmt.Errorf("decode sophia students: %w", err)
	}

	log.Debug("sophia search response received",
		slog.Int("count", len(students)),
		slog.Duration("latency", latency),
	)

	return students, nil
}

// StudentPhoto returns the base64 reduced photo of one student. A non-200
// answer, an empty body or an empty "foto" field yield ErrPhotoUnavailable.
func (s *service) StudentPhoto(ctx context.Context, token string, id StudentID) (string, error) {
	if err := s.configured(); err != nil {
		return "", err
	}

	if s.cfg.PhotoTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.PhotoTimeout)
		defer cancel()
	}

	endpoint := s.baseURL + studentsPath + "/" + url.PathEscape(id.String()) + reducedPhotoPath

	req, err := s.newGET(ctx, endpoint, token)
	if err != nil {
		return "", fmt.Errorf("create photo request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("photo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status=%d", ErrPhotoUnavailable, resp.StatusCode)
	}

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read photo response: %w", err)
	}
	if len(respBytes) == 0 {
		return "", fmt.Errorf("%w: empty body", ErrPhotoUnavailable)
	}

	var photo photoResponse
	if err := json.Unmarshal(respBytes, &photo); err != nil {
		return "", fmt.Errorf("decode photo response: %w", err)
	}
	if photo.Foto == "" {
		return "", fmt.Errorf("%w: missing foto field", ErrPhotoUnavailable)
	}

	return photo.Foto, nil
}
