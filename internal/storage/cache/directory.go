// Package cache holds the Redis-backed decorators: a read-through user
// directory and the SMS once-guard.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cuongbtq/booking-service/internal/booking/domain"
)

const (
	userKeyPrefix  = "booking:user:"
	emailKeyPrefix = "booking:user-email:"
)

// Directory caches user lookups in front of another UserDirectory.
// Translator searches and blacklists always go to the backing directory,
// so a new blacklist entry hides the translator at once. Redis failures
// fall through to the backing directory.
type Directory struct {
	next   domain.UserDirectory
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

func NewDirectory(next domain.UserDirectory, client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *Directory {
	return &Directory{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "directory_cache")),
	}
}

func (d *Directory) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	if d.load(ctx, userKeyPrefix+id, &u) {
		return &u, nil
	}

	user, err := d.next.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	d.store(ctx, userKeyPrefix+id, user)
	return user, nil
}

func (d *Directory) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	key := emailKeyPrefix + strings.ToLower(strings.TrimSpace(email))

	var id string
	if d.load(ctx, key, &id) {
		return d.GetUser(ctx, id)
	}

	user, err := d.next.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	d.store(ctx, key, user.ID)
	d.store(ctx, userKeyPrefix+user.ID, user)
	return user, nil
}

func (d *Directory) FindTranslators(ctx context.Context, q domain.TranslatorQuery) ([]domain.User, error) {
	return d.next.FindTranslators(ctx, q)
}

func (d *Directory) BlacklistedTranslators(ctx context.Context, customerID string) ([]string, error) {
	return d.next.BlacklistedTranslators(ctx, customerID)
}

func (d *Directory) load(ctx context.Context, key string, dst any) bool {
	raw, err := d.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			d.logger.Warn("Cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		d.logger.Warn("Dropping undecodable cache entry", slog.String("key", key), slog.String("error", err.Error()))
		d.client.Del(ctx, key)
		return false
	}
	return true
}

func (d *Directory) store(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := d.client.Set(ctx, key, raw, d.ttl).Err(); err != nil {
		d.logger.Warn("Cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}
