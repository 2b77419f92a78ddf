// Package students implements the search pipeline: upstream query, local
// filtering and photo enrichment.
package students

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/carbonell/student-search-api/pkg/core"
	"github.com/carbonell/student-search-api/pkg/sophia"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/carbonell/student-search-api/pkg/students"

	defaultPhotoConcurrency = 8

	missingName  = "Nome não encontrado"
	missingClass = "Sem turma"
)

var (
	ErrUpstreamAuth = errors.New("upstream authentication failed")
	ErrSearch       = errors.New("upstream search failed")
)

// Result is one student in the search response.
type Result struct {
	ID           sophia.StudentID `json:"id"`
	NomeCompleto string           `json:"nomeCompleto"`
	Turma        string           `json:"turma"`
	// Base64 photo, null when the student has none.
	FotoURL *string `json:"fotoUrl"`
}

type Credentials interface {
	Token(ctx context.Context) (string, error)
}

type Upstream interface {
	SearchStudents(ctx context.Context, token, name string) ([]sophia.Student, error)
	StudentPhoto(ctx context.Context, token string, id sophia.StudentID) (string, error)
}

type Service interface {
	Search(ctx context.Context, q Query) ([]Result, error)
}

type Options struct {
	Logger *slog.Logger
	// Defaults to the global providers.
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

type service struct {
	creds            Credentials
	upstream         Upstream
	photos           *photoFetcher
	photoConcurrency int

	logger   *slog.Logger
	tracer   trace.Tracer
	searches metric.Int64Counter
	results  metric.Int64Histogram
}

var _ Service = (*service)(nil)

func New(cfg *core.SearchConfig, creds Credentials, upstream Upstream, opts Options) Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "students"))

	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	mp := opts.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	concurrency := defaultPhotoConcurrency
	if cfg != nil && cfg.PhotoConcurrency > 0 {
		concurrency = cfg.PhotoConcurrency
	}

	meter := mp.Meter(instrumentationName)
	fallback := noop.NewMeterProvider().Meter(instrumentationName)

	searches, err := meter.Int64Counter("students.searches",
		metric.WithDescription("Student searches by outcome"))
	if err != nil {
		logger.Warn("failed to create search counter", slog.Any("error", err))
		searches, _ = fallback.Int64Counter("students.searches")
	}

	results, err := meter.Int64Histogram("students.search.results",
		metric.WithDescription("Students returned per search"))
	if err != nil {
		logger.Warn("failed to create results histogram", slog.Any("error", err))
		results, _ = fallback.Int64Histogram("students.search.results")
	}

	photoFailures, err := meter.Int64Counter("students.photo.failures",
		metric.WithDescription("Photo fetches that degraded to no photo"))
	if err != nil {
		logger.Warn("failed to create photo failure counter", slog.Any("error", err))
		photoFailures, _ = fallback.Int64Counter("students.photo.failures")
	}

	return &service{
		creds:    creds,
		upstream: upstream,
		photos: &photoFetcher{
			upstream: upstream,
			logger:   logger.With(slog.String("step", "photo")),
			failures: photoFailures,
		},
		photoConcurrency: concurrency,
		logger:           logger,
		tracer:           tp.Tracer(instrumentationName),
		searches:         searches,
		results:          results,
	}
}

func (s *service) Search(ctx context.Context, q Query) ([]Result, error) {
	q.Segment = normalizeSegment(q.Segment)

	ctx, span := s.tracer.Start(ctx, "students.Search", trace.WithAttributes(
		attribute.String("search.segment", q.Segment),
	))
	defer span.End()

	if q.tooShort() {
		s.record(ctx, "short_query", 0)
		return []Result{}, nil
	}

	log := s.logger.With(
		slog.String("upstream_filter", q.upstreamFilter()),
		slog.String("segment", q.Segment),
	)

	token, err := s.creds.Token(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream auth")
		s.record(ctx, "auth_error", 0)
		return nil, fmt.Errorf("%w: %w", ErrUpstreamAuth, err)
	}

	start := time.Now()
	records, err := s.upstream.SearchStudents(ctx, token, q.upstreamFilter())
	if err != nil {
		log.ErrorContext(ctx, "student search failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream search")
		s.record(ctx, "search_error", 0)
		return nil, fmt.Errorf("%w: %w", ErrSearch, err)
	}

	matches := filterStudents(records, q)

	ids := make([]sophia.StudentID, len(matches))
	for i, st := range matches {
		ids[i] = st.Codigo
	}
	photos := s.photos.fetchAll(ctx, ids, token, s.photoConcurrency)

	out := make([]Result, 0, len(matches))
	for _, st := range matches {
		out = append(out, newResult(st, photos))
	}

	span.SetAttributes(
		attribute.Int("search.upstream_records", len(records)),
		attribute.Int("search.results", len(out)),
		attribute.Int("search.photos", len(photos)),
	)

	log.InfoContext(ctx, "student search completed",
		slog.Int("upstream_records", len(records)),
		slog.Int("results", len(out)),
		slog.Int("photos", len(photos)),
		slog.Duration("latency", time.Since(start)),
	)

	s.record(ctx, "ok", len(out))
	return out, nil
}

func (s *service) record(ctx context.Context, outcome string, n int) {
	s.searches.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	s.results.Record(ctx, int64(n))
}

func newResult(st sophia.Student, photos map[sophia.StudentID]string) Result {
	r := Result{
		ID:           st.Codigo,
		NomeCompleto: st.Nome,
		Turma:        st.ClassName(),
	}
	if r.NomeCompleto == "" {
		r.NomeCompleto = missingName
	}
	if r.Turma == "" {
		r.Turma = missingClass
	}
	if photo, ok := photos[st.Codigo]; ok {
		r.FotoURL = &photo
	}
	return r
}
