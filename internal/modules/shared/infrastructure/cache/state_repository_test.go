package cache

import (
	"context"
	"testing"
	"time"

	"asclepius-app/internal/modules/classification/domain"
	"asclepius-app/internal/modules/shared/infrastructure/testcontainer"
)

func setupStateRepo(t *testing.T) (*RedisStateRepository, func()) {
	t.Helper()
	ctx := context.Background()

	// TestContainer起動
	redisContainer, err := testcontainer.StartRedis(ctx, t)
	if err != nil {
		t.Fatalf("Failed to start redis container: %v", err)
	}

	// Redisリポジトリ作成
	repo, err := NewRedisStateRepository(redisContainer.Config())
	if err != nil {
		_ = redisContainer.Close(ctx)
		t.Fatalf("Failed to create redis state repository: %v", err)
	}

	return repo, func() {
		_ = repo.Close()
		_ = redisContainer.Close(ctx)
	}
}

func TestRedisStateRepository_SaveAndLoad(t *testing.T) {
	repo, cleanup := setupStateRepo(t)
	defer cleanup()

	ctx := context.Background()

	tests := []struct {
		name      string
		sessionID string
		state     *domain.SessionState
		wantURI   string
	}{
		{
			name:      "正常系: 画像参照を保存",
			sessionID: "s1",
			state:     &domain.SessionState{CurrentImageURI: "content://media/external/images/42"},
			wantURI:   "content://media/external/images/42",
		},
		{
			name:      "正常系: fileスキーム",
			sessionID: "s2",
			state:     &domain.SessionState{CurrentImageURI: "file:///data/media/mole.jpg"},
			wantURI:   "file:///data/media/mole.jpg",
		},
		{
			name:      "境界値: 画像未選択",
			sessionID: "s3",
			state:     &domain.SessionState{},
			wantURI:   "",
		},
		{
			name:      "境界値: nil状態",
			sessionID: "s4",
			state:     nil,
			wantURI:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := repo.Save(ctx, tt.sessionID, tt.state); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			got, err := repo.Load(ctx, tt.sessionID)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if got.CurrentImageURI != tt.wantURI {
				t.Errorf("CurrentImageURI = %q, want %q", got.CurrentImageURI, tt.wantURI)
			}
		})
	}
}

func TestRedisStateRepository_Overwrite(t *testing.T) {
	repo, cleanup := setupStateRepo(t)
	defer cleanup()

	ctx := context.Background()

	if err := repo.Save(ctx, "s1", &domain.SessionState{CurrentImageURI: "content://media/external/images/1"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := repo.Save(ctx, "s1", &domain.SessionState{CurrentImageURI: "content://media/external/images/2"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.CurrentImageURI != "content://media/external/images/2" {
		t.Errorf("CurrentImageURI = %q, want latest pick", got.CurrentImageURI)
	}

	// 画像を外すと参照も消える
	if err := repo.Save(ctx, "s1", &domain.SessionState{}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err = repo.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.CurrentImageURI != "" {
		t.Errorf("CurrentImageURI = %q, want empty", got.CurrentImageURI)
	}
}

func TestRedisStateRepository_Load_NotFound(t *testing.T) {
	repo, cleanup := setupStateRepo(t)
	defer cleanup()

	got, err := repo.Load(context.Background(), "unknown-session")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got == nil || got.CurrentImageURI != "" {
		t.Errorf("Load() = %+v, want empty state", got)
	}
}

func TestRedisStateRepository_TTL(t *testing.T) {
	repo, cleanup := setupStateRepo(t)
	defer cleanup()

	ctx := context.Background()

	if err := repo.Save(ctx, "ttl", &domain.SessionState{CurrentImageURI: "content://media/external/images/9"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	ttl, err := repo.client.TTL(ctx, sessionKey("ttl")).Result()
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl <= 0 || ttl > time.Hour {
		t.Errorf("TTL = %v, want (0, 1h]", ttl)
	}
}

func TestRedisStateRepository_DeleteAndExists(t *testing.T) {
	repo, cleanup := setupStateRepo(t)
	defer cleanup()

	ctx := context.Background()

	if err := repo.Save(ctx, "del", &domain.SessionState{CurrentImageURI: "content://media/external/images/3"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	tests := []struct {
		name       string
		sessionID  string
		wantExists bool
	}{
		{name: "正常系: 存在するセッション", sessionID: "del", wantExists: true},
		{name: "正常系: 存在しないセッション", sessionID: "missing", wantExists: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exists, err := repo.Exists(ctx, tt.sessionID)
			if err != nil {
				t.Fatalf("Exists() error = %v", err)
			}
			if exists != tt.wantExists {
				t.Errorf("Exists() = %v, want %v", exists, tt.wantExists)
			}
		})
	}

	// 削除
	if err := repo.Delete(ctx, "del"); err != nil {
		t.Errorf("Delete() error = %v", err)
	}

	exists, err := repo.Exists(ctx, "del")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if exists {
		t.Error("Session still exists after Delete()")
	}
}

// TestNewRedisStateRepository_ConnectionError 接続できない場合のエラーテスト
func TestNewRedisStateRepository_ConnectionError(t *testing.T) {
	ctx := context.Background()

	redisContainer, err := testcontainer.StartRedis(ctx, t)
	if err != nil {
		t.Fatalf("Failed to start redis container: %v", err)
	}

	cfg := redisContainer.Config()

	// コンテナ停止後は接続できない
	if err := redisContainer.Close(ctx); err != nil {
		t.Fatalf("Failed to close redis container: %v", err)
	}

	_, err = NewRedisStateRepository(cfg)
	if err == nil {
		t.Error("Expected connection error after container stopped")
	}
}
