package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultDownloadLimitPrefix = "banksystem:downloads"

// DownloadQuota is a subject's usage of the current minute bucket.
type DownloadQuota struct {
	Used  int
	Reset time.Time
}

// DownloadLimiter meters CSV downloads per subject per calendar minute.
type DownloadLimiter interface {
	TakeDownload(ctx context.Context, subject string) (DownloadQuota, error)
}

// RedisDownloadLimiter keeps one counter per subject and minute so every
// replica draws from the same budget. Buckets expire a minute after they close.
type RedisDownloadLimiter struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisDownloadLimiter(client redis.UniversalClient, prefix string) *RedisDownloadLimiter {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = defaultDownloadLimitPrefix
	}
	return &RedisDownloadLimiter{client: client, prefix: prefix, now: time.Now}
}

// bucket returns the counter key for subject at t and the instant the bucket closes.
func (l *RedisDownloadLimiter) bucket(subject string, t time.Time) (string, time.Time) {
	start := t.UTC().Truncate(time.Minute)
	return fmt.Sprintf("%s:%s:%d", l.prefix, strings.TrimSpace(subject), start.Unix()), start.Add(time.Minute)
}

func (l *RedisDownloadLimiter) TakeDownload(ctx context.Context, subject string) (DownloadQuota, error) {
	if l == nil || l.client == nil || strings.TrimSpace(subject) == "" {
		return DownloadQuota{}, nil
	}

	key, reset := l.bucket(subject, l.now())
	var used *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		used = pipe.Incr(ctx, key)
		pipe.ExpireAt(ctx, key, reset.Add(time.Minute))
		return nil
	})
	if err != nil {
		return DownloadQuota{}, fmt.Errorf("count download for %s: %w", key, err)
	}
	return DownloadQuota{Used: int(used.Val()), Reset: reset}, nil
}
