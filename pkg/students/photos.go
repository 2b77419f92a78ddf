package students

import (
	"context"
	"errors"
	"log/slog"

	"github.com/carbonell/student-search-api/pkg/sophia"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

type photoResult struct {
	ID    sophia.StudentID
	Photo string
	OK    bool
}

type photoFetcher struct {
	upstream Upstream
	logger   *slog.Logger
	failures metric.Int64Counter
}

// fetch never fails: every error degrades to a result without a photo.
func (f *photoFetcher) fetch(ctx context.Context, id sophia.StudentID, token string) photoResult {
	photo, err := f.upstream.StudentPhoto(ctx, token, id)
	if err != nil {
		f.failures.Add(ctx, 1)

		level := slog.LevelWarn
		if errors.Is(err, sophia.ErrPhotoUnavailable) {
			level = slog.LevelDebug
		}
		f.logger.Log(ctx, level, "student photo unavailable",
			slog.String("student_id", id.String()),
			slog.Any("error", err),
		)
		return photoResult{ID: id}
	}

	return photoResult{ID: id, Photo: photo, OK: true}
}

// fetchAll runs one fetch per id with at most limit in flight and waits for
// all of them. The returned map only holds students that have a photo.
func (f *photoFetcher) fetchAll(ctx context.Context, ids []sophia.StudentID, token string, limit int) map[sophia.StudentID]string {
	results := make([]photoResult, len(ids))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, id := range ids {
		g.Go(func() error {
			results[i] = f.fetch(ctx, id, token)
			return nil
		})
	}
	_ = g.Wait()

	photos := make(map[sophia.StudentID]string, len(results))
	for _, r := range results {
		if r.OK {
			photos[r.ID] = r.Photo
		}
	}
	return photos
}
