package imaging

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"asclepius-app/internal/modules/classification/domain"
)

// MockMediaRepository メディアリポジトリのモック
type MockMediaRepository struct {
	items map[int64]*domain.MediaImage
}

func (m *MockMediaRepository) Create(ctx context.Context, media *domain.MediaImage) error {
	return errors.New("not implemented")
}

func (m *MockMediaRepository) FindByID(ctx context.Context, id int64) (*domain.MediaImage, error) {
	if media, ok := m.items[id]; ok {
		return media, nil
	}
	return nil, errors.New("media not found")
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h)), nil); err != nil {
		t.Fatalf("jpeg.Encode() error = %v", err)
	}
	return buf.Bytes()
}

// headerOnlyPNG IHDRで寸法だけを宣言し、画素データを持たないPNG
func headerOnlyPNG(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	chunk := func(typ string, data []byte) {
		_ = binary.Write(&buf, binary.BigEndian, uint32(len(data)))
		body := append([]byte(typ), data...)
		buf.Write(body)
		_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(body))
	}

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // RGBA
	chunk("IHDR", ihdr)
	chunk("IDAT", nil)
	chunk("IEND", nil)
	return buf.Bytes()
}

func mustRef(t *testing.T, s string) domain.ImageRef {
	t.Helper()
	ref, err := domain.ParseImageRef(s)
	if err != nil {
		t.Fatalf("ParseImageRef() error = %v", err)
	}
	return ref
}

func TestDecoder_Decode_Media(t *testing.T) {
	repo := &MockMediaRepository{items: map[int64]*domain.MediaImage{
		1: {ID: 1, Data: encodePNG(t, 4, 3)},
		2: {ID: 2, Data: encodeJPEG(t, 8, 8)},
		3: {ID: 3, Data: []byte("not an image")},
	}}
	decoder := NewDecoder(repo, "", 0)

	tests := []struct {
		name    string
		ref     string
		wantW   int
		wantH   int
		wantErr bool
	}{
		{name: "正常系: PNG", ref: "content://media/external/images/1", wantW: 4, wantH: 3},
		{name: "正常系: JPEG", ref: "content://media/external/images/2", wantW: 8, wantH: 8},
		{name: "異常系: 画像ではない", ref: "content://media/external/images/3", wantErr: true},
		{name: "異常系: 存在しない", ref: "content://media/external/images/99", wantErr: true},
		{name: "異常系: 未対応スキーム", ref: "https://example.com/a.png", wantErr: true},
		{name: "異常系: file無効", ref: "file:///etc/passwd", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := decoder.Decode(context.Background(), mustRef(t, tt.ref))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if img.Bounds().Dx() != tt.wantW || img.Bounds().Dy() != tt.wantH {
				t.Errorf("size = %v, want %dx%d", img.Bounds(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestDecoder_Decode_Dimensions(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{name: "異常系: 40000x40000を宣言", data: headerOnlyPNG(40000, 40000), wantErr: domain.ErrImageTooLarge},
		{name: "境界値: 上限を1画素超える", data: headerOnlyPNG(domain.MaxImagePixels/1000, 1001), wantErr: domain.ErrImageTooLarge},
		{name: "異常系: 幅0", data: headerOnlyPNG(0, 10), wantErr: errors.New("header")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockMediaRepository{items: map[int64]*domain.MediaImage{
				1: {ID: 1, Data: tt.data},
			}}
			decoder := NewDecoder(repo, "", 10<<20)

			img, err := decoder.Decode(context.Background(), domain.MediaImageRef(1))
			if err == nil {
				t.Fatalf("Expected error, got image %v", img.Bounds())
			}
			if errors.Is(tt.wantErr, domain.ErrImageTooLarge) && !errors.Is(err, domain.ErrImageTooLarge) {
				t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecoder_Decode_SymlinkOutsideRoot(t *testing.T) {
	root := t.TempDir()
	outside := filepath.Join(t.TempDir(), "secret.png")
	if err := os.WriteFile(outside, encodePNG(t, 2, 2), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	link := filepath.Join(root, "link.png")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlink not supported: %v", err)
	}
	inner := filepath.Join(root, "inner.png")
	if err := os.WriteFile(inner, encodePNG(t, 2, 2), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	innerLink := filepath.Join(root, "inner-link.png")
	if err := os.Symlink(inner, innerLink); err != nil {
		t.Skipf("symlink not supported: %v", err)
	}

	decoder := NewDecoder(nil, root, 0)

	_, err := decoder.Decode(context.Background(), mustRef(t, "file://"+filepath.ToSlash(link)))
	if !errors.Is(err, ErrOutsideMediaRoot) {
		t.Errorf("Decode() error = %v, want %v", err, ErrOutsideMediaRoot)
	}

	if _, err := decoder.Decode(context.Background(), mustRef(t, "file://"+filepath.ToSlash(innerLink))); err != nil {
		t.Errorf("Decode() error = %v for link inside root", err)
	}
}

func TestDecoder_Decode_PixelFormat(t *testing.T) {
	repo := &MockMediaRepository{items: map[int64]*domain.MediaImage{
		1: {ID: 1, Data: encodePNG(t, 2, 2)},
	}}
	decoder := NewDecoder(repo, "", 0)

	img, err := decoder.Decode(context.Background(), domain.MediaImageRef(1))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	got := img.NRGBAAt(0, 0)
	want := color.NRGBA{R: 200, G: 100, B: 50, A: 255}
	if got != want {
		t.Errorf("pixel = %v, want %v", got, want)
	}
	if img.Stride != 4*2 {
		t.Errorf("Stride = %d, want 8 (4 bytes per pixel)", img.Stride)
	}
}

func TestDecoder_Decode_File(t *testing.T) {
	root := t.TempDir()
	inside := filepath.Join(root, "mole.png")
	if err := os.WriteFile(inside, encodePNG(t, 5, 5), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	outsideDir := t.TempDir()
	outside := filepath.Join(outsideDir, "other.png")
	if err := os.WriteFile(outside, encodePNG(t, 5, 5), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	tests := []struct {
		name     string
		path     string
		maxBytes int64
		wantErr  error
	}{
		{name: "正常系: ルート内", path: inside},
		{name: "異常系: ルート外", path: outside, wantErr: ErrOutsideMediaRoot},
		{name: "異常系: 存在しない", path: filepath.Join(root, "missing.png"), wantErr: os.ErrNotExist},
		{name: "境界値: サイズ上限", path: inside, maxBytes: 1, wantErr: errors.New("too large")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoder := NewDecoder(nil, root, tt.maxBytes)

			_, err := decoder.Decode(context.Background(), mustRef(t, "file://"+filepath.ToSlash(tt.path)))
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Decode() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Expected error")
			}
			if errors.Is(tt.wantErr, ErrOutsideMediaRoot) || errors.Is(tt.wantErr, os.ErrNotExist) {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
				}
			}
		})
	}
}

func TestToNRGBA(t *testing.T) {
	src := image.NewGray(image.Rect(10, 10, 14, 12))
	src.SetGray(10, 10, color.Gray{Y: 77})

	dst := ToNRGBA(src)

	if dst.Bounds() != image.Rect(0, 0, 4, 2) {
		t.Errorf("Bounds() = %v, want (0,0)-(4,2)", dst.Bounds())
	}
	if got := dst.NRGBAAt(0, 0); got != (color.NRGBA{R: 77, G: 77, B: 77, A: 255}) {
		t.Errorf("pixel = %v", got)
	}

	already := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	if ToNRGBA(already) != already {
		t.Error("Expected NRGBA at origin to be returned as-is")
	}
}
