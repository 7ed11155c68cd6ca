package usecase

import (
	"context"
	"fmt"
	"time"

	"asclepius-app/internal/modules/classification/domain"
)

// MaxImageSize 選択できる画像の最大サイズ（既定10MB）
const MaxImageSize = 10 << 20

var (
	ErrNotAnImage    = domain.ErrNotAnImage
	ErrImageTooLarge = domain.ErrImageTooLarge
)

// Upload ピッカーから受け取ったファイル
type Upload struct {
	Filename string
	Data     []byte
}

// GalleryUseCase 画像ピッカー（画像のみ・単一選択）のユースケース
type GalleryUseCase struct {
	mediaRepo domain.MediaRepository
	maxBytes  int64
}

// NewGalleryUseCase 新しいGalleryUseCaseを作成。maxBytesが0以下ならMaxImageSize
func NewGalleryUseCase(mediaRepo domain.MediaRepository, maxBytes int64) *GalleryUseCase {
	if maxBytes <= 0 || maxBytes > MaxImageSize {
		maxBytes = MaxImageSize
	}
	return &GalleryUseCase{mediaRepo: mediaRepo, maxBytes: maxBytes}
}

// Pick アップロードを保存して画像参照を返す。未選択ならnil
func (uc *GalleryUseCase) Pick(ctx context.Context, upload *Upload) (*domain.ImageRef, error) {
	if upload == nil || len(upload.Data) == 0 {
		return nil, nil
	}

	contentType, err := domain.ValidateImageData(upload.Data, uc.maxBytes)
	if err != nil {
		return nil, err
	}

	media := &domain.MediaImage{
		Filename:    upload.Filename,
		ContentType: contentType,
		Data:        upload.Data,
		CreatedAt:   time.Now(),
	}
	if err := uc.mediaRepo.Create(ctx, media); err != nil {
		return nil, fmt.Errorf("failed to store picked image: %w", err)
	}

	ref := media.Ref()
	return &ref, nil
}

// Open 保存済みの画像を取得（プレビュー表示用）
func (uc *GalleryUseCase) Open(ctx context.Context, id int64) (*domain.MediaImage, error) {
	media, err := uc.mediaRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return media, nil
}
