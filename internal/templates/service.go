package templates

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"prequal/internal/forms/schema"
	"prequal/internal/forms/variant"
)

// Service resolves template sets, caching them briefly in Redis. Template
// sets change rarely and back every categorical-field edit, so a short cache
// keeps edit latency off the database. Cache failures degrade to store reads.
type Service struct {
	store  Store
	cache  redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithCache enables Redis-backed caching of template sets.
func WithCache(cache redis.Cmdable, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = cache
		s.ttl = ttl
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, ttl: 5 * time.Minute, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set returns the template set for a kind.
func (s *Service) Set(ctx context.Context, kind schema.TemplateKind) (variant.TemplateSet, error) {
	names, err := s.names(ctx, kind)
	if err != nil {
		return variant.TemplateSet{}, err
	}
	return variant.NewTemplateSet(names), nil
}

// Names returns the raw entry list for snapshot responses.
func (s *Service) Names(ctx context.Context, kind schema.TemplateKind) ([]string, error) {
	return s.names(ctx, kind)
}

func (s *Service) names(ctx context.Context, kind schema.TemplateKind) ([]string, error) {
	key := "templates:" + string(kind)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var names []string
			if err := json.Unmarshal(raw, &names); err == nil {
				return names, nil
			}
		}
	}

	names, err := s.store.List(ctx, kind)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(names); err == nil {
			if err := s.cache.Set(ctx, key, raw, s.ttl).Err(); err != nil {
				s.logger.WarnContext(ctx, "template cache write failed", "kind", kind, "error", err)
			}
		}
	}
	return names, nil
}
