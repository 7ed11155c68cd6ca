package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"asclepius-app/internal/modules/classification/domain"
)

// APIHandler 分類APIのハンドラー
type APIHandler struct {
	analysisUseCase AnalysisUseCaseInterface
	galleryUseCase  GalleryUseCaseInterface
}

// NewAPIHandler 新しいAPIHandlerを作成
func NewAPIHandler(analysisUseCase AnalysisUseCaseInterface, galleryUseCase GalleryUseCaseInterface) *APIHandler {
	return &APIHandler{
		analysisUseCase: analysisUseCase,
		galleryUseCase:  galleryUseCase,
	}
}

// ClassifyRequest JSONで画像参照を指定する場合のリクエスト
type ClassifyRequest struct {
	ImageURI string `json:"image_uri"`
}

// CategoryResponse スコア付きカテゴリ
type CategoryResponse struct {
	Index int     `json:"index"`
	Label string  `json:"label"`
	Score float32 `json:"score"`
}

// ClassifyResponse 分類APIレスポンス
type ClassifyResponse struct {
	Success         bool               `json:"success"`
	ResultID        string             `json:"result_id,omitempty"`
	ImageURI        string             `json:"image_uri,omitempty"`
	Result          string             `json:"result,omitempty"`
	Categories      []CategoryResponse `json:"categories,omitempty"`
	InferenceTimeMs int64              `json:"inference_time_ms"`
	Error           string             `json:"error,omitempty"`
}

// ResultResponse 分類結果レスポンス
type ResultResponse struct {
	ID              string    `json:"id"`
	ImageURI        string    `json:"image_uri"`
	Result          string    `json:"result"`
	Label           string    `json:"label"`
	Score           float32   `json:"score"`
	InferenceTimeMs int64     `json:"inference_time_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

// ResultsResponse 分類結果一覧レスポンス
type ResultsResponse struct {
	Success bool             `json:"success"`
	Results []ResultResponse `json:"results"`
	Error   string           `json:"error,omitempty"`
}

// HandleClassify 画像を分類（multipartの image、またはJSONの image_uri）
func (h *APIHandler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	ref, err := h.resolveImage(w, r)
	if err != nil {
		h.sendError(w, userMessage(err), statusForError(err))
		return
	}
	if ref == nil {
		h.sendError(w, domain.MessagePickerCancelled, http.StatusBadRequest)
		return
	}

	nav, err := h.analysisUseCase.AnalyzeImage(ctx, *ref)
	if err != nil {
		status := statusForError(err)
		if status >= http.StatusInternalServerError {
			slog.Error("Classification failed", "image_uri", ref.String(), "error", err)
		}
		writeJSON(w, status, ClassifyResponse{
			Success:  false,
			ImageURI: ref.String(),
			Error:    userMessage(err),
		})
		return
	}

	categories := make([]CategoryResponse, len(nav.Categories))
	for i, c := range nav.Categories {
		categories[i] = CategoryResponse{Index: c.Index, Label: c.Label, Score: c.Score}
	}

	writeJSON(w, http.StatusOK, ClassifyResponse{
		Success:         true,
		ResultID:        nav.ResultID,
		ImageURI:        nav.ImageRef.String(),
		Result:          nav.DisplayResult,
		Categories:      categories,
		InferenceTimeMs: nav.InferenceTime.Milliseconds(),
	})
}

// HandleResults 最近の分類結果一覧
func (h *APIHandler) HandleResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			h.sendError(w, "limit must be a number", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := h.analysisUseCase.ListResults(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to list results", "error", err)
		h.sendError(w, "Failed to list results", http.StatusInternalServerError)
		return
	}

	results := make([]ResultResponse, len(records))
	for i, record := range records {
		results[i] = toResultResponse(record)
	}

	writeJSON(w, http.StatusOK, ResultsResponse{Success: true, Results: results})
}

// HandleResult 分類結果を1件取得（/api/v1/results/<id>）
func (h *APIHandler) HandleResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/results/")
	if id == "" || strings.Contains(id, "/") {
		h.sendError(w, "ID is required", http.StatusBadRequest)
		return
	}

	record, err := h.analysisUseCase.GetResult(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.sendError(w, domain.MessageNoResult, http.StatusNotFound)
			return
		}
		slog.Error("Failed to get result", "id", id, "error", err)
		h.sendError(w, "Failed to get result", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toResultResponse(record))
}

// resolveImage リクエストから画像参照を取得。画像が無ければnil
func (h *APIHandler) resolveImage(w http.ResponseWriter, r *http.Request) (*domain.ImageRef, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		upload, err := readUpload(w, r)
		if err != nil {
			return nil, err
		}
		return h.galleryUseCase.Pick(r.Context(), upload)
	}

	var req ClassifyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		return nil, badRequest("Invalid request body")
	}
	if strings.TrimSpace(req.ImageURI) == "" {
		return nil, nil
	}

	ref, err := domain.ParseImageRef(req.ImageURI)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func (h *APIHandler) sendError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, ClassifyResponse{
		Success: false,
		Error:   message,
	})
}

func toResultResponse(record *domain.ClassificationRecord) ResultResponse {
	return ResultResponse{
		ID:              record.ID,
		ImageURI:        record.ImageURI,
		Result:          record.DisplayText(),
		Label:           record.Label,
		Score:           record.Score,
		InferenceTimeMs: record.InferenceTimeMs,
		CreatedAt:       record.CreatedAt,
	}
}
