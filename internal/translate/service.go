package translate

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/pavelanni/able/internal/model"
)

// Service answers translation requests from the cache, fetching and caching
// misses. Concurrent requests for the same batch share one fetch.
type Service struct {
	client   Translator
	cache    Cache
	logger   *slog.Logger
	fallback model.Language
	group    singleflight.Group
}

// NewService returns a service. A nil cache means a fresh MemoryCache.
func NewService(client Translator, cache Cache, logger *slog.Logger) *Service {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, cache: cache, logger: logger, fallback: model.DefaultLanguage}
}

// Translate returns texts rendered in lang. It never fails: on any error the
// source texts come back unchanged and nothing is cached.
func (s *Service) Translate(ctx context.Context, lang model.Language, texts []string) []string {
	if len(texts) == 0 || lang == "" || lang == s.fallback || s.client == nil {
		return texts
	}
	key := Key(lang, texts)

	if v, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn("translation cache read failed", "error", err)
	} else if ok && len(v) == len(texts) {
		return v
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		out, err := s.client.TranslateBatch(ctx, texts, lang)
		if err != nil {
			return nil, err
		}
		res := sanitizeAll(texts, out)
		if err := s.cache.Set(ctx, key, res); err != nil {
			s.logger.Warn("translation cache write failed", "error", err)
		}
		return res, nil
	})
	if err != nil {
		s.logger.Warn("translation failed, using source text", "lang", lang, "count", len(texts), "error", err)
		return texts
	}
	return append([]string(nil), v.([]string)...)
}
