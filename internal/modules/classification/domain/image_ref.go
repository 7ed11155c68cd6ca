package domain

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
)

const (
	// SchemeContent メディアストアに保存された画像のスキーム
	SchemeContent = "content"
	// SchemeFile ローカルファイルのスキーム
	SchemeFile = "file"

	mediaAuthority  = "media"
	mediaImagesPath = "/external/images/"
)

// ErrInvalidImageRef 画像参照として解釈できない
var ErrInvalidImageRef = errors.New("invalid image reference")

// ImageRef ユーザーが選択した画像の参照（URI）
type ImageRef struct {
	raw string
	uri *url.URL
}

// ParseImageRef 文字列から画像参照を復元
func ParseImageRef(s string) (ImageRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ImageRef{}, fmt.Errorf("%w: empty", ErrInvalidImageRef)
	}

	u, err := url.Parse(s)
	if err != nil {
		return ImageRef{}, fmt.Errorf("%w: %v", ErrInvalidImageRef, err)
	}
	if u.Scheme == "" {
		return ImageRef{}, fmt.Errorf("%w: missing scheme: %s", ErrInvalidImageRef, s)
	}

	return ImageRef{raw: s, uri: u}, nil
}

// MediaImageRef メディアストアIDから画像参照を作成
func MediaImageRef(id int64) ImageRef {
	ref, _ := ParseImageRef(fmt.Sprintf("%s://%s%s%d", SchemeContent, mediaAuthority, mediaImagesPath, id))
	return ref
}

// String 保存用の文字列表現
func (r ImageRef) String() string {
	return r.raw
}

// IsZero 未設定かどうか
func (r ImageRef) IsZero() bool {
	return r.uri == nil
}

// Equal 同じ参照かどうか
func (r ImageRef) Equal(other ImageRef) bool {
	return r.raw == other.raw
}

// Scheme URIスキーム
func (r ImageRef) Scheme() string {
	if r.uri == nil {
		return ""
	}
	return r.uri.Scheme
}

// MediaID content://media/external/images/<id> 形式ならIDを返す
func (r ImageRef) MediaID() (int64, bool) {
	if r.uri == nil || r.uri.Scheme != SchemeContent || r.uri.Host != mediaAuthority {
		return 0, false
	}
	if !strings.HasPrefix(r.uri.Path, mediaImagesPath) {
		return 0, false
	}

	id, err := strconv.ParseInt(strings.TrimPrefix(r.uri.Path, mediaImagesPath), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// FilePath file:// 形式ならパスを返す
func (r ImageRef) FilePath() (string, bool) {
	if r.uri == nil || r.uri.Scheme != SchemeFile || r.uri.Path == "" {
		return "", false
	}
	return path.Clean(r.uri.Path), true
}
