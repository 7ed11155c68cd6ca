package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"asclepius-app/internal/config"
	"asclepius-app/internal/modules/classification/domain"
)

const (
	sessionKeyPrefix  = "session:"
	fieldCurrentImage = "currentImageUri"
	defaultSessionTTL = 24 * time.Hour
)

// RedisStateRepository セッション状態のRedis実装
//
// session:<id> のハッシュに currentImageUri を保持する
type RedisStateRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStateRepository 新しいRedisStateRepositoryを作成
func NewRedisStateRepository(cfg *config.RedisConfig) (*RedisStateRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// 接続確認
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStateRepositoryWithClient(client, time.Duration(cfg.SessionTTL)*time.Second), nil
}

// NewRedisStateRepositoryWithClient クライアントから作成（テスト用）
func NewRedisStateRepositoryWithClient(client *redis.Client, ttl time.Duration) *RedisStateRepository {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &RedisStateRepository{client: client, ttl: ttl}
}

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

// Save セッション状態を保存。画像未選択ならフィールドを削除
func (r *RedisStateRepository) Save(ctx context.Context, sessionID string, state *domain.SessionState) error {
	key := sessionKey(sessionID)

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if state == nil || state.CurrentImageURI == "" {
			pipe.HDel(ctx, key, fieldCurrentImage)
			return nil
		}
		pipe.HSet(ctx, key, fieldCurrentImage, state.CurrentImageURI)
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save session state: %w", err)
	}
	return nil
}

// Load セッション状態を取得。存在しなければ空の状態を返す
func (r *RedisStateRepository) Load(ctx context.Context, sessionID string) (*domain.SessionState, error) {
	uri, err := r.client.HGet(ctx, sessionKey(sessionID), fieldCurrentImage).Result()
	if errors.Is(err, redis.Nil) {
		return &domain.SessionState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session state: %w", err)
	}
	return &domain.SessionState{CurrentImageURI: uri}, nil
}

// Delete セッション状態を削除
func (r *RedisStateRepository) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session state: %w", err)
	}
	return nil
}

// Exists セッション状態が存在するか確認
func (r *RedisStateRepository) Exists(ctx context.Context, sessionID string) (bool, error) {
	count, err := r.client.Exists(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session existence: %w", err)
	}
	return count > 0, nil
}

// Ping 接続確認
func (r *RedisStateRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close Redis接続を閉じる
func (r *RedisStateRepository) Close() error {
	return r.client.Close()
}
