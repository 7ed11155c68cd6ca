package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"asclepius-app/internal/modules/classification/domain"
	"asclepius-app/internal/modules/classification/usecase"
)

// multipartOverhead 画像以外のフォーム部分に許容するサイズ
const multipartOverhead = 1 << 20

// requestError リクエスト自体の不備
type requestError struct {
	message string
}

func (e *requestError) Error() string {
	return e.message
}

func badRequest(message string) error {
	return &requestError{message: message}
}

// statusForError エラー種別をHTTPステータスに変換
func statusForError(err error) int {
	if ce, ok := domain.AsClassificationError(err); ok {
		switch ce.Kind {
		case domain.KindPickerCancelled, domain.KindNoImageSelected:
			return http.StatusBadRequest
		case domain.KindLoadFailure:
			return http.StatusUnprocessableEntity
		case domain.KindEmptyResult:
			return http.StatusOK
		default:
			return http.StatusInternalServerError
		}
	}

	var re *requestError
	switch {
	case errors.As(err, &re), errors.Is(err, domain.ErrInvalidImageRef):
		return http.StatusBadRequest
	case errors.Is(err, usecase.ErrNotAnImage):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, usecase.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// userMessage ユーザーに見せるメッセージ。内部エラーの詳細は出さない
func userMessage(err error) string {
	if ce, ok := domain.AsClassificationError(err); ok {
		return ce.Message
	}

	var re *requestError
	switch {
	case errors.As(err, &re):
		return re.message
	case errors.Is(err, domain.ErrInvalidImageRef):
		return "Invalid image reference."
	case errors.Is(err, usecase.ErrNotAnImage):
		return "Selected file is not an image."
	case errors.Is(err, usecase.ErrImageTooLarge):
		return "Image is too large."
	case errors.Is(err, domain.ErrNotFound):
		return "Not found."
	default:
		return "Internal server error"
	}
}

// readUpload multipartの image フィールドを読み込む。未選択ならnil
func readUpload(w http.ResponseWriter, r *http.Request) (*usecase.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, usecase.MaxImageSize+multipartOverhead)
	if err := r.ParseMultipartForm(usecase.MaxImageSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, usecase.ErrImageTooLarge
		}
		return nil, badRequest("Failed to parse form")
	}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, badRequest("Image file is required")
	}
	defer func() {
		_ = file.Close()
	}()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	return &usecase.Upload{Filename: header.Filename, Data: data}, nil
}

// imageSrc 画像参照を<img>で表示できるURLに変換
func imageSrc(ref *domain.ImageRef) string {
	if ref == nil {
		return ""
	}
	if id, ok := ref.MediaID(); ok {
		return fmt.Sprintf("/media/%d", id)
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
