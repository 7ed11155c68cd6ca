package domain

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // GIF形式のサポート
	_ "image/jpeg" // JPEG形式のサポート
	_ "image/png"  // PNG形式のサポート
)

var (
	// ErrNotAnImage 画像以外のファイルが選択された
	ErrNotAnImage = errors.New("selected file is not an image")
	// ErrImageTooLarge 画像サイズが上限を超えている
	ErrImageTooLarge = errors.New("image size exceeds limit")
)

// MaxImagePixels デコードを許可する最大画素数（幅×高さ）
const MaxImagePixels = 40_000_000

var allowedFormats = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
}

// ValidateImageData 画像データを検証し、Content-Typeを返す
func ValidateImageData(data []byte, maxBytes int64) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: image data is empty", ErrNotAnImage)
	}

	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrImageTooLarge, len(data))
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotAnImage, err)
	}
	if err := CheckDimensions(cfg); err != nil {
		return "", err
	}

	contentType, ok := allowedFormats[format]
	if !ok {
		return "", fmt.Errorf("%w: unsupported format %s", ErrNotAnImage, format)
	}

	return contentType, nil
}

// CheckDimensions ヘッダーの幅と高さが画素数の上限内か検証する
func CheckDimensions(cfg image.Config) error {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: invalid dimensions %dx%d", ErrNotAnImage, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return fmt.Errorf("%w: %dx%d pixels", ErrImageTooLarge, cfg.Width, cfg.Height)
	}
	return nil
}
