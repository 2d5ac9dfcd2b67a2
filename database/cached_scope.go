package database

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"
	sideload "github.com/xompass/vsaas-sideload"
)

// CachedScope decorates a RepositoryScope with a Redis-backed result cache.
// Entries are keyed by model, namespace and the serialized filter, so two
// sideload resolutions of the same cohort share one fetch until the TTL
// expires. Cache failures degrade to the underlying fetch, never to an error.
type CachedScope[T RelationalModel] struct {
	client *redis.Client
	inner  *RepositoryScope[T]
	ttl    time.Duration
}

func NewCachedScope[T RelationalModel](client *redis.Client, inner *RepositoryScope[T], ttl time.Duration) *CachedScope[T] {
	return &CachedScope[T]{client: client, inner: inner, ttl: ttl}
}

func (s *CachedScope[T]) Resolve(ctx context.Context, opts sideload.ResolveOptions) ([]sideload.Record, error) {
	key, ok := s.cacheKey(opts)
	if ok {
		if data, err := s.client.Get(ctx, key).Bytes(); err == nil {
			var docs []T
			if err := sonic.Unmarshal(data, &docs); err == nil {
				return asRecords(docs), nil
			}
			// Stale or unreadable payload: fall through and overwrite it
		}
	}

	docs, err := s.inner.find(ctx, opts)
	if err != nil {
		return nil, err
	}

	if ok {
		if data, err := sonic.Marshal(docs); err == nil {
			if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
				log.Warnf("cannot cache sideload scope %q: %v", opts.Namespace, err)
			}
		}
	}

	return asRecords(docs), nil
}

func (s *CachedScope[T]) cacheKey(opts sideload.ResolveOptions) (string, bool) {
	filterJSON, err := s.inner.filter.ToJSON()
	if err != nil {
		return "", false
	}

	if !opts.DefaultPaginate {
		filterJSON += ":unpaginated"
	}

	sum := sha1.Sum([]byte(filterJSON))
	return "sideload:" + s.inner.repo.GetSchema().Name + ":" + opts.Namespace + ":" + hex.EncodeToString(sum[:]), true
}
