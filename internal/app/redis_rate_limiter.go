/**
 * @description
 * This file contains the Redis-backed rate limiter guarding withdrawal
 * requests. It implements a fixed window counter shared by every service
 * instance, so a user hammering the withdrawal endpoint is throttled no
 * matter which replica serves the request.
 *
 * Key features:
 * - The INCR and PEXPIRE run inside one Lua script, so the first request of
 *   a window atomically sets the window expiry. There is no race where a
 *   counter lives forever because the expiry write was lost.
 * - The script also returns the remaining window TTL, which becomes the
 *   Retry-After hint surfaced to throttled callers.
 * - The limiter degrades to a no-op when Redis is not configured; the
 *   service layer additionally fails open on Redis errors so an outage
 *   never blocks withdrawals.
 *
 * @dependencies
 * - context, fmt, strings, time: Standard Go libraries.
 * - github.com/redis/go-redis/v9: Redis client and Lua script support.
 */

package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Windows shorter than a second would round a nonzero Retry-After down to
// zero, so the limiter never runs one.
const minLimiterWindow = time.Second

// fixedWindowScript bumps the counter for the current window and reports the
// new count together with how long the window has left, in milliseconds.
// PTTL returns a negative value for a key without an expiry, which can only
// happen if the key predates this script; the window length stands in then.
var fixedWindowScript = redis.NewScript(`
local hits = redis.call("INCR", KEYS[1])
if hits == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local remaining = redis.call("PTTL", KEYS[1])
if remaining < 0 then
  remaining = tonumber(ARGV[1])
end
return {hits, remaining}
`)

// RedisRateLimiter counts requests per (scope, subject) pair in fixed
// windows. It satisfies the service's RateLimiter interface.
type RedisRateLimiter struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisRateLimiter(client redis.UniversalClient, prefix string) *RedisRateLimiter {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "coinharbor:rate_limit"
	}
	return &RedisRateLimiter{client: client, prefix: prefix}
}

func (r *RedisRateLimiter) windowKey(scope, subject string) string {
	return r.prefix + ":" + scope + ":" + subject
}

// ConsumeRateLimit records one hit against the subject's current window and
// returns the hit count plus a Retry-After in whole seconds. An unconfigured
// limiter, a nonpositive limit, or a blank scope or subject disables
// limiting and reports zero hits.
func (r *RedisRateLimiter) ConsumeRateLimit(
	ctx context.Context,
	scope string,
	subject string,
	limit int,
	window time.Duration,
) (count int, retryAfterSeconds int, err error) {
	if r == nil || r.client == nil || limit <= 0 || window <= 0 {
		return 0, 0, nil
	}
	scope = strings.TrimSpace(scope)
	subject = strings.TrimSpace(subject)
	if scope == "" || subject == "" {
		return 0, 0, nil
	}
	if window < minLimiterWindow {
		window = minLimiterWindow
	}

	reply, err := fixedWindowScript.Run(ctx, r.client, []string{r.windowKey(scope, subject)}, window.Milliseconds()).Result()
	if err != nil {
		return 0, 0, err
	}

	hits, remainingMs, err := parseWindowReply(reply)
	if err != nil {
		return 0, 0, err
	}
	if remainingMs < 0 {
		remainingMs = window.Milliseconds()
	}

	// Round the remaining window up so a throttled caller never retries
	// inside the same window.
	retryAfter := int((remainingMs + 999) / 1000)
	if retryAfter < 1 {
		retryAfter = 1
	}
	return hits, retryAfter, nil
}

// parseWindowReply unpacks the {hits, remainingMs} pair the window script
// returns. go-redis delivers Lua integer replies as int64.
func parseWindowReply(reply interface{}) (hits int, remainingMs int64, err error) {
	pair, ok := reply.([]interface{})
	if !ok || len(pair) != 2 {
		return 0, 0, fmt.Errorf("rate limit script returned %T, want a two element array", reply)
	}
	rawHits, ok := pair[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("rate limit script returned hits of type %T", pair[0])
	}
	rawRemaining, ok := pair[1].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("rate limit script returned ttl of type %T", pair[1])
	}
	return int(rawHits), rawRemaining, nil
}
