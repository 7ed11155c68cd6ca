// Package testcontainer 統合テスト用にRedisとMySQLをDockerで起動する
package testcontainer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	rediscontainer "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"asclepius-app/internal/config"
)

const (
	redisImage = "redis:7-alpine"
	mysqlImage = "mysql:8.0"

	testDatabase = "asclepius_test"
	testUser     = "testuser"
	testPassword = "testpass"

	// テスト用セッションTTL（秒）
	testSessionTTL = 3600
)

// RedisContainer セッション状態ストア用のRedis
type RedisContainer struct {
	Container *rediscontainer.RedisContainer
	Host      string
	Port      int
}

// MySQLContainer メディア・分類結果ストア用のMySQL
type MySQLContainer struct {
	Container *mysql.MySQLContainer
	Host      string
	Port      int
}

// requireDocker -shortではコンテナを使うテストをスキップ
func requireDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in -short mode")
	}
}

// StartRedis Redisコンテナを起動
func StartRedis(ctx context.Context, t *testing.T) (*RedisContainer, error) {
	t.Helper()
	requireDocker(t)

	container, err := rediscontainer.Run(ctx, redisImage,
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start redis container: %w", err)
	}

	host, port, err := endpoint(ctx, container, "6379/tcp")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("redis: %w", err)
	}

	return &RedisContainer{Container: container, Host: host, Port: port}, nil
}

// StartMySQL MySQLコンテナを起動
func StartMySQL(ctx context.Context, t *testing.T) (*MySQLContainer, error) {
	t.Helper()
	requireDocker(t)

	container, err := mysql.Run(ctx, mysqlImage,
		mysql.WithDatabase(testDatabase),
		mysql.WithUsername(testUser),
		mysql.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("port: 3306  MySQL Community Server").WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start mysql container: %w", err)
	}

	host, port, err := endpoint(ctx, container, "3306/tcp")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("mysql: %w", err)
	}

	return &MySQLContainer{Container: container, Host: host, Port: port}, nil
}

// endpoint ホストとマップされたポートを取得
func endpoint(ctx context.Context, c testcontainers.Container, port string) (string, int, error) {
	host, err := c.Host(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("failed to get host: %w", err)
	}
	mapped, err := c.MappedPort(ctx, nat.Port(port))
	if err != nil {
		return "", 0, fmt.Errorf("failed to get mapped port %s: %w", port, err)
	}
	return host, mapped.Int(), nil
}

// Close Redisコンテナを停止
func (r *RedisContainer) Close(ctx context.Context) error {
	if r.Container == nil {
		return nil
	}
	return r.Container.Terminate(ctx)
}

// Close MySQLコンテナを停止
func (m *MySQLContainer) Close(ctx context.Context) error {
	if m.Container == nil {
		return nil
	}
	return m.Container.Terminate(ctx)
}

// Config セッション状態ストア用のRedis設定
func (r *RedisContainer) Config() *config.RedisConfig {
	return &config.RedisConfig{
		Host:       r.Host,
		Port:       r.Port,
		SessionTTL: testSessionTTL,
	}
}

// DSN database/sql用の接続文字列
func (m *MySQLContainer) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		testUser, testPassword, m.Host, m.Port, testDatabase)
}

// Config メディア・分類結果ストア用のMySQL設定
func (m *MySQLContainer) Config() *config.MySQLConfig {
	return &config.MySQLConfig{
		Host:     m.Host,
		Port:     m.Port,
		User:     testUser,
		Password: testPassword,
		Database: testDatabase,
	}
}

// Services アプリ全体の統合テストで使うRedisとMySQL
type Services struct {
	Redis *RedisContainer
	MySQL *MySQLContainer
}

// StartServices RedisとMySQLを起動し、テスト終了時に停止する
func StartServices(ctx context.Context, t *testing.T) (*Services, error) {
	t.Helper()

	redisContainer, err := StartRedis(ctx, t)
	if err != nil {
		return nil, err
	}
	t.Cleanup(func() { _ = redisContainer.Close(context.Background()) })

	mysqlContainer, err := StartMySQL(ctx, t)
	if err != nil {
		return nil, err
	}
	t.Cleanup(func() { _ = mysqlContainer.Close(context.Background()) })

	return &Services{Redis: redisContainer, MySQL: mysqlContainer}, nil
}

// AppConfig 起動したコンテナに接続するアプリ設定（分類器などは既定値）
func (s *Services) AppConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Redis = *s.Redis.Config()
	cfg.MySQL = *s.MySQL.Config()
	return cfg
}
