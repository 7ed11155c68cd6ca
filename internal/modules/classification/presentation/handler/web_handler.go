package handler

import (
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"asclepius-app/internal/modules/classification/domain"
	"asclepius-app/web"
)

// SessionCookieName セッションIDを保持するCookie名
const SessionCookieName = "session_id"

const historyLimit = 50

// pageData テンプレートに渡すデータ
type pageData struct {
	Title         string
	Engine        string
	Message       string
	Informational bool

	ImageSrc      string
	DisplayResult string
	Record        *domain.ClassificationRecord
	Records       []*domain.ClassificationRecord
	Empty         string
}

// WebHandler Web UIのハンドラー（メイン画面と結果画面）
type WebHandler struct {
	analysisUseCase AnalysisUseCaseInterface
	galleryUseCase  GalleryUseCaseInterface
	engineName      string
	pages           map[string]*template.Template
}

// NewWebHandler 新しいWebHandlerを作成
func NewWebHandler(analysisUseCase AnalysisUseCaseInterface, galleryUseCase GalleryUseCaseInterface, engineName string) (*WebHandler, error) {
	pages := make(map[string]*template.Template)
	for _, page := range []string{"main.html", "result.html", "history.html"} {
		tmpl, err := template.ParseFS(web.Templates,
			"templates/layout/base.html",
			"templates/layout/header.html",
			"templates/layout/footer.html",
			"templates/pages/"+page,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", page, err)
		}
		pages[page] = tmpl
	}

	return &WebHandler{
		analysisUseCase: analysisUseCase,
		galleryUseCase:  galleryUseCase,
		engineName:      engineName,
		pages:           pages,
	}, nil
}

// HandleMainPage メイン画面を表示
func (h *WebHandler) HandleMainPage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.renderMain(w, r, http.StatusOK, nil)
}

// HandleGallery ギャラリーから選択された画像を保持してメイン画面に戻る
func (h *WebHandler) HandleGallery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	sessionID := h.session(w, r)

	upload, err := readUpload(w, r)
	if err != nil {
		h.renderMain(w, r, statusForError(err), err)
		return
	}

	picked, err := h.galleryUseCase.Pick(ctx, upload)
	if err != nil {
		h.renderMain(w, r, statusForError(err), err)
		return
	}

	if err := h.analysisUseCase.PickImage(ctx, sessionID, picked); err != nil {
		h.renderMain(w, r, statusForError(err), err)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleAnalyze 保持している画像を解析して結果画面にリダイレクト
func (h *WebHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := h.session(w, r)

	nav, err := h.analysisUseCase.Analyze(r.Context(), sessionID)
	if err != nil {
		h.renderMain(w, r, statusForError(err), err)
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/result?id=%s", nav.ResultID), http.StatusSeeOther)
}

// HandleResult 結果画面を表示
func (h *WebHandler) HandleResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// IDパラメータの取得
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "ID is required", http.StatusBadRequest)
		return
	}

	record, err := h.analysisUseCase.GetResult(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, domain.MessageNoResult, http.StatusNotFound)
			return
		}
		slog.Error("Failed to get result", "id", id, "error", err)
		http.Error(w, "Failed to get result", http.StatusInternalServerError)
		return
	}

	data := h.newPageData("分類結果")
	data.Record = record
	data.DisplayResult = record.DisplayText()
	if ref, err := domain.ParseImageRef(record.ImageURI); err == nil {
		data.ImageSrc = imageSrc(&ref)
	}

	h.render(w, "result.html", http.StatusOK, data)
}

// HandleHistory 分類履歴を表示
func (h *WebHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	records, err := h.analysisUseCase.ListResults(r.Context(), historyLimit)
	if err != nil {
		slog.Error("Failed to list results", "error", err)
		http.Error(w, "Failed to list results", http.StatusInternalServerError)
		return
	}

	data := h.newPageData("分類履歴")
	data.Records = records
	data.Empty = domain.MessageNoResult

	h.render(w, "history.html", http.StatusOK, data)
}

// HandleMedia 保存済みの画像を配信（/media/<id>）
func (h *WebHandler) HandleMedia(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/media/"), 10, 64)
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return
	}

	media, err := h.galleryUseCase.Open(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		slog.Error("Failed to open media", "id", id, "error", err)
		http.Error(w, "Failed to open media", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", media.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(media.Data)))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(media.Data)
}

// renderMain メイン画面を描画。errがあればトーストとして表示
func (h *WebHandler) renderMain(w http.ResponseWriter, r *http.Request, status int, err error) {
	data := h.newPageData("画像の選択")

	if err != nil {
		data.Message = userMessage(err)
		if ce, ok := domain.AsClassificationError(err); ok && ce.IsInformational() {
			// キャンセルは通知のみ
			data.Informational = true
			status = http.StatusOK
		}
		if status >= http.StatusInternalServerError {
			slog.Error("Request failed", "path", r.URL.Path, "error", err)
		}
	}

	if cookie, cerr := r.Cookie(SessionCookieName); cerr == nil {
		current, lerr := h.analysisUseCase.CurrentImage(r.Context(), cookie.Value)
		if lerr != nil {
			slog.Warn("Failed to restore session state", "error", lerr)
		}
		data.ImageSrc = imageSrc(current)
	}

	h.render(w, "main.html", status, data)
}

func (h *WebHandler) render(w http.ResponseWriter, page string, status int, data *pageData) {
	tmpl, ok := h.pages[page]
	if !ok {
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		slog.Error("Failed to render template", "page", page, "error", err)
	}
}

func (h *WebHandler) newPageData(title string) *pageData {
	return &pageData{
		Title:  title,
		Engine: h.engineName,
	}
}

// session Cookieからセッションを取得。無ければ発行する
func (h *WebHandler) session(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	sessionID := uuid.NewString()
	cookie := &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(24 * time.Hour),
	}
	http.SetCookie(w, cookie)
	// 同じリクエスト内の後続処理からも参照できるようにする
	r.AddCookie(cookie)
	return sessionID
}
