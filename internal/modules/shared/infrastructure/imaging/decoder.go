package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"  // GIF形式のサポート
	_ "image/jpeg" // JPEG形式のサポート
	_ "image/png"  // PNG形式のサポート
	"os"
	"path/filepath"
	"strings"

	"asclepius-app/internal/modules/classification/domain"
)

var (
	// ErrUnsupportedScheme 解決できない画像参照
	ErrUnsupportedScheme = errors.New("unsupported image reference scheme")
	// ErrOutsideMediaRoot メディアルート外のファイル参照
	ErrOutsideMediaRoot = errors.New("file is outside media root")
)

// Decoder 画像参照を解決してNRGBAにデコード
type Decoder struct {
	mediaRepo domain.MediaRepository
	mediaRoot string
	realRoot  string
	maxBytes  int64
}

// NewDecoder 新しいDecoderを作成。mediaRootが空ならfile://は使用不可
func NewDecoder(mediaRepo domain.MediaRepository, mediaRoot string, maxBytes int64) *Decoder {
	realRoot := mediaRoot
	if mediaRoot != "" {
		if abs, err := filepath.Abs(mediaRoot); err == nil {
			mediaRoot = abs
		}
		realRoot = mediaRoot
		if resolved, err := filepath.EvalSymlinks(mediaRoot); err == nil {
			realRoot = resolved
		}
	}
	return &Decoder{
		mediaRepo: mediaRepo,
		mediaRoot: mediaRoot,
		realRoot:  realRoot,
		maxBytes:  maxBytes,
	}
}

// Decode 画像参照をデコード
func (d *Decoder) Decode(ctx context.Context, ref domain.ImageRef) (*image.NRGBA, error) {
	data, err := d.read(ctx, ref)
	if err != nil {
		return nil, err
	}

	// 画素バッファの確保前にヘッダーで寸法を確認
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to read image header: %w", err)
	}
	if err := domain.CheckDimensions(cfg); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	return ToNRGBA(img), nil
}

// read 画像参照からバイト列を取得
func (d *Decoder) read(ctx context.Context, ref domain.ImageRef) ([]byte, error) {
	if id, ok := ref.MediaID(); ok {
		if d.mediaRepo == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, ref.Scheme())
		}
		media, err := d.mediaRepo.FindByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to open media: %w", err)
		}
		return media.Data, nil
	}

	if p, ok := ref.FilePath(); ok && d.mediaRoot != "" {
		if !withinRoot(d.mediaRoot, p) {
			return nil, fmt.Errorf("%w: %s", ErrOutsideMediaRoot, p)
		}
		// ルート内のシンボリックリンクが外部を指していないか実パスでも確認
		resolved, err := filepath.EvalSymlinks(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve image path: %w", err)
		}
		if !withinRoot(d.realRoot, resolved) {
			return nil, fmt.Errorf("%w: %s", ErrOutsideMediaRoot, p)
		}
		p = resolved

		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat image: %w", err)
		}
		if d.maxBytes > 0 && info.Size() > d.maxBytes {
			return nil, fmt.Errorf("image too large: %d bytes", info.Size())
		}

		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		return data, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, ref.String())
}

func withinRoot(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ToNRGBA 任意の画像を32bit NRGBA（アルファ付きRGB）に変換
func ToNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Rect.Min == (image.Point{}) {
		return nrgba
	}

	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
