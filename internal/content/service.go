package content

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/chrissnell/moonshade/internal/log"
)

// Cache stores generated content under Request.CacheKey. Lookups that
// miss return an error; the Service treats every lookup error as a miss.
type Cache interface {
	Content(ctx context.Context, key string) (Content, error)
	SaveContent(ctx context.Context, key string, c Content) error
}

// Service picks a generator per request: the model when one is set,
// falling back to the dummy generator on any failure. Model output is
// cached; dummy output is cheap and never cached.
type Service struct {
	mu       sync.RWMutex
	primary  Generator
	fallback Generator
	cache    Cache
	model    string
	logger   *zap.SugaredLogger
}

// NewService returns a Service. With a usable apiKey it talks to Gemini;
// otherwise every request is served by the dummy generator. cache may be nil.
func NewService(ctx context.Context, apiKey, model string, cache Cache) (*Service, error) {
	s := &Service{
		fallback: DummyGenerator{},
		cache:    cache,
		model:    model,
		logger:   log.Named("content"),
	}
	if err := s.SetAPIKey(ctx, apiKey); err != nil {
		return nil, err
	}
	return s, nil
}

// NewServiceWithGenerator wires an explicit primary generator, which may
// be nil.
func NewServiceWithGenerator(primary Generator, cache Cache) *Service {
	return &Service{
		primary:  primary,
		fallback: DummyGenerator{},
		cache:    cache,
		logger:   log.Named("content"),
	}
}

// SetAPIKey swaps the Gemini key. An empty or placeholder key disables the
// model.
func (s *Service) SetAPIKey(ctx context.Context, apiKey string) error {
	var primary Generator
	if KeyConfigured(apiKey) {
		g, err := NewGeminiGenerator(ctx, apiKey, s.model)
		if err != nil {
			return err
		}
		primary = g
	}

	s.mu.Lock()
	s.primary = primary
	s.mu.Unlock()

	if primary == nil {
		s.logger.Info("generative API key not configured, using local content")
	}
	return nil
}

// UsesModel reports whether requests go to a model first
func (s *Service) UsesModel() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.primary != nil
}

// Generate returns content for req. It never fails: every error on the
// model path degrades to dummy content.
func (s *Service) Generate(ctx context.Context, req Request) Content {
	s.mu.RLock()
	primary := s.primary
	s.mu.RUnlock()

	if primary == nil {
		return s.dummy(ctx, req)
	}

	key := req.CacheKey()
	if s.cache != nil {
		if c, err := s.cache.Content(ctx, key); err == nil {
			s.logger.Debugw("content cache hit", "key", key)
			return c
		}
	}

	c, err := primary.Generate(ctx, req)
	if err != nil {
		s.logger.Warnw("content generation failed, using local content", "date", req.Date, "error", err)
		return s.dummy(ctx, req)
	}

	if s.cache != nil {
		if err := s.cache.SaveContent(ctx, key, c); err != nil {
			s.logger.Warnw("caching generated content", "key", key, "error", err)
		}
	}
	return c
}

func (s *Service) dummy(ctx context.Context, req Request) Content {
	// DummyGenerator cannot fail
	c, _ := s.fallback.Generate(ctx, req)
	return c
}
