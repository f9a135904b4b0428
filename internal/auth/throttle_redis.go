// Copyright (c) 2026 1move Community. All rights reserved.

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/onemove/affiliate-api/internal/platform/constants"
)

/*
RedisThrottle shares the failed-login counter across replicas through Redis.

Each failure runs INCR on a per-identifier key; the key gets its TTL on the
first increment so the whole window expires together. Redis outages fail
open: a broken throttle must not take logins down with it, since the
password check itself still stands between an attacker and the account.
*/
type RedisThrottle struct {
	client      *redis.Client
	window      time.Duration
	maxAttempts int
}

/*
NewRedisThrottle creates a Redis-backed login throttle.

Parameters:
  - client: connected Redis client shared with the rest of the application.
  - window: lifetime of the failure counter key.
  - maxAttempts: failures within the window before attempts are rejected.
*/
func NewRedisThrottle(client *redis.Client, window time.Duration, maxAttempts int) *RedisThrottle {
	return &RedisThrottle{
		client:      client,
		window:      window,
		maxAttempts: maxAttempts,
	}
}

// Allowed reports whether the identifier may attempt a login right now.
//
// The read here and the INCR in RecordFailure are separate commands, so a
// concurrent failure can land between them and the counter lags by at most
// one attempt. INCR keeps the counter itself exact.
func (throttle *RedisThrottle) Allowed(context context.Context, identifier string) bool {
	count, err := throttle.client.Get(context, throttle.key(identifier)).Int()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("login throttle read failed, allowing attempt", "error", err)
		}
		return true
	}
	return count < throttle.maxAttempts
}

// RecordFailure increments the failure counter, starting the window on the
// first failure.
func (throttle *RedisThrottle) RecordFailure(context context.Context, identifier string) {
	key := throttle.key(identifier)

	count, err := throttle.client.Incr(context, key).Result()
	if err != nil {
		slog.Warn("login throttle increment failed", "error", err)
		return
	}
	if count == 1 {
		if err := throttle.client.Expire(context, key, throttle.window).Err(); err != nil {
			slog.Warn("login throttle expire failed", "error", err)
		}
	}
}

// RecordSuccess removes the failure counter for the identifier.
func (throttle *RedisThrottle) RecordSuccess(context context.Context, identifier string) {
	if err := throttle.client.Del(context, throttle.key(identifier)).Err(); err != nil {
		slog.Warn("login throttle clear failed", "error", err)
	}
}

func (throttle *RedisThrottle) key(identifier string) string {
	return constants.RedisPrefixLoginFailures + identifier
}
