package prefs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

// keyPrefix は他の用途のキーと衝突しないための接頭辞。
const keyPrefix = "churchdash:prefs:"

// RedisStore はRedisに値を保存するStore。複数プロセスで設定値を共有できる。
type RedisStore struct {
	rc  redis.Cmdable
	ttl time.Duration
}

// NewRedisStore は新しいRedisStoreを生成する。
func NewRedisStore(rc redis.Cmdable, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rc: rc, ttl: ttl}
}

// NewRedisClient はURLからRedisクライアントを生成し、疎通を確認する。
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	rc := redis.NewClient(opts)
	if err := rc.Ping(ctx).Err(); err != nil {
		rc.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rc, nil
}

// Get は値を取得する。キーが存在しない場合は ok=false を返す。
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rc.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get preference: %w", err)
	}
	return v, true, nil
}

// Set は値を保存する。保存のたびに保持期間を延長する。
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.rc.Set(ctx, keyPrefix+key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set preference: %w", err)
	}
	return nil
}
