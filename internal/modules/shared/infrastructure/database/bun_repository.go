package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"

	"github.com/go-sql-driver/mysql"

	"asclepius-app/internal/config"
	"asclepius-app/internal/modules/classification/domain"
)

// MediaImage BUNモデル
type MediaImage struct {
	bun.BaseModel `bun:"table:media_images"`

	ID          int64     `bun:"id,pk,autoincrement"`
	Filename    string    `bun:"filename,notnull,type:varchar(255),default:''"`
	ContentType string    `bun:"content_type,notnull,type:varchar(100)"`
	Data        []byte    `bun:"data,notnull,type:mediumblob"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// ClassificationResult BUNモデル
type ClassificationResult struct {
	bun.BaseModel `bun:"table:classification_results"`

	ID              string    `bun:"id,pk,type:varchar(36)"`
	ImageURI        string    `bun:"image_uri,notnull,type:varchar(512)"`
	DisplayResult   string    `bun:"display_result,notnull,type:varchar(255)"`
	Label           string    `bun:"label,notnull,type:varchar(255)"`
	Score           float32   `bun:"score,notnull"`
	InferenceTimeMs int64     `bun:"inference_time_ms,notnull,default:0"`
	CreatedAt       time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// Open MySQLに接続してbun.DBを返す
func Open(cfg *config.MySQLConfig) (*bun.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=true&loc=Local",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	sqldb, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := bun.NewDB(sqldb, mysqldialect.New())

	// 接続確認
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Migrate テーブルが無ければ作成
func Migrate(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*MediaImage)(nil),
		(*ClassificationResult)(nil),
	}
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	_, err := db.NewCreateIndex().
		Model((*ClassificationResult)(nil)).
		Index("idx_classification_results_created_at").
		Column("created_at").
		Exec(ctx)
	if err != nil && !isDuplicateKeyName(err) {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// isDuplicateKeyName インデックス作成済みのエラー（MySQL 1061）かどうか
func isDuplicateKeyName(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1061
}

// BunMediaRepository BUN実装
type BunMediaRepository struct {
	db *bun.DB
}

// NewBunMediaRepository 新しいBunMediaRepositoryを作成
func NewBunMediaRepository(cfg *config.MySQLConfig) (*BunMediaRepository, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	return &BunMediaRepository{db: db}, nil
}

// NewBunMediaRepositoryWithDB DBインスタンスから作成（テスト用）
func NewBunMediaRepositoryWithDB(db *bun.DB) *BunMediaRepository {
	return &BunMediaRepository{db: db}
}

// Create 画像を保存し、採番されたIDをmediaに設定
func (r *BunMediaRepository) Create(ctx context.Context, media *domain.MediaImage) error {
	if media.CreatedAt.IsZero() {
		media.CreatedAt = time.Now()
	}

	model := &MediaImage{
		Filename:    media.Filename,
		ContentType: media.ContentType,
		Data:        media.Data,
		CreatedAt:   media.CreatedAt,
	}

	if _, err := r.db.NewInsert().Model(model).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create media image: %w", err)
	}

	media.ID = model.ID
	return nil
}

// FindByID IDで画像を検索
func (r *BunMediaRepository) FindByID(ctx context.Context, id int64) (*domain.MediaImage, error) {
	model := &MediaImage{}
	err := r.db.NewSelect().
		Model(model).
		Where("id = ?", id).
		Scan(ctx)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("media image %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find media image: %w", err)
	}

	return &domain.MediaImage{
		ID:          model.ID,
		Filename:    model.Filename,
		ContentType: model.ContentType,
		Data:        model.Data,
		CreatedAt:   model.CreatedAt,
	}, nil
}

// Ping 接続確認
func (r *BunMediaRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close データベース接続を閉じる
func (r *BunMediaRepository) Close() error {
	return r.db.Close()
}

// BunResultRepository BUN実装
type BunResultRepository struct {
	db *bun.DB
}

// NewBunResultRepository 新しいBunResultRepositoryを作成
func NewBunResultRepository(cfg *config.MySQLConfig) (*BunResultRepository, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	return &BunResultRepository{db: db}, nil
}

// NewBunResultRepositoryWithDB DBインスタンスから作成（テスト用）
func NewBunResultRepositoryWithDB(db *bun.DB) *BunResultRepository {
	return &BunResultRepository{db: db}
}

// Create 分類結果を保存
func (r *BunResultRepository) Create(ctx context.Context, record *domain.ClassificationRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	if _, err := r.db.NewInsert().Model(r.toModel(record)).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create classification result: %w", err)
	}
	return nil
}

// FindByID IDで分類結果を検索
func (r *BunResultRepository) FindByID(ctx context.Context, id string) (*domain.ClassificationRecord, error) {
	model := &ClassificationResult{}
	err := r.db.NewSelect().
		Model(model).
		Where("id = ?", id).
		Scan(ctx)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("classification result %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find classification result: %w", err)
	}

	return r.toEntity(model), nil
}

// FindRecent 新しい順に分類結果を取得
func (r *BunResultRepository) FindRecent(ctx context.Context, limit int) ([]*domain.ClassificationRecord, error) {
	var models []ClassificationResult
	query := r.db.NewSelect().
		Model(&models).
		Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to find classification results: %w", err)
	}

	records := make([]*domain.ClassificationRecord, len(models))
	for i := range models {
		records[i] = r.toEntity(&models[i])
	}
	return records, nil
}

// Ping 接続確認
func (r *BunResultRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close データベース接続を閉じる
func (r *BunResultRepository) Close() error {
	return r.db.Close()
}

// toModel エンティティをモデルに変換
func (r *BunResultRepository) toModel(record *domain.ClassificationRecord) *ClassificationResult {
	return &ClassificationResult{
		ID:              record.ID,
		ImageURI:        record.ImageURI,
		DisplayResult:   record.DisplayResult,
		Label:           record.Label,
		Score:           record.Score,
		InferenceTimeMs: record.InferenceTimeMs,
		CreatedAt:       record.CreatedAt,
	}
}

// toEntity モデルをエンティティに変換
func (r *BunResultRepository) toEntity(model *ClassificationResult) *domain.ClassificationRecord {
	return &domain.ClassificationRecord{
		ID:              model.ID,
		ImageURI:        model.ImageURI,
		DisplayResult:   model.DisplayResult,
		Label:           model.Label,
		Score:           model.Score,
		InferenceTimeMs: model.InferenceTimeMs,
		CreatedAt:       model.CreatedAt,
	}
}
