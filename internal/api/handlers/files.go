// files.go — HTTP handlers для файловых операций.
// Upload, Download, List, Delete.
package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/fileshare/internal/api/middleware"
	"github.com/bigkaa/fileshare/internal/domain/model"
	"github.com/bigkaa/fileshare/internal/service"
)

// FilesHandler — обработчик файловых endpoints.
type FilesHandler struct {
	uploadSvc     *service.UploadService
	downloadSvc   *service.DownloadService
	fileSvc       *service.FileService
	maxUploadSize int64
	// trustProxy — доверять X-Forwarded-Proto/Host при построении ссылок
	trustProxy bool
}

// NewFilesHandler создаёт обработчик файловых endpoints.
func NewFilesHandler(
	uploadSvc *service.UploadService,
	downloadSvc *service.DownloadService,
	fileSvc *service.FileService,
	maxUploadSize int64,
	trustProxy bool,
) *FilesHandler {
	return &FilesHandler{
		uploadSvc:     uploadSvc,
		downloadSvc:   downloadSvc,
		fileSvc:       fileSvc,
		maxUploadSize: maxUploadSize,
		trustProxy:    trustProxy,
	}
}

// uploadResponse — ответ на успешную загрузку.
type uploadResponse struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

// fileItem — элемент списка файлов. Время — epoch milliseconds.
type fileItem struct {
	Token          string `json:"token"`
	Name           string `json:"name"`
	Size           int64  `json:"size"`
	ContentType    string `json:"contentType"`
	Downloads      int64  `json:"downloads"`
	Created        int64  `json:"created"`
	LastDownloaded int64  `json:"lastDownloaded"`
}

// UploadFile обрабатывает POST /api/upload.
// Тело — multipart/form-data, используется первая часть с filename.
func (h *FilesHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	rec, opErr := h.uploadSvc.Upload(service.UploadParams{
		ContentType: r.Header.Get("Content-Type"),
		Body:        r.Body,
		UploadedBy:  middleware.UsernameFromContext(r.Context()),
	})
	if opErr != nil {
		opErr.Write(w)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Token: rec.Token,
		URL:   DownloadURL(r, rec.Token, h.trustProxy),
	})
}

// DownloadFile обрабатывает GET /d/{token}.
func (h *FilesHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if !model.ValidToken(token) {
		notFound(w, token)
		return
	}

	if opErr := h.downloadSvc.Serve(w, r, token); opErr != nil {
		opErr.Write(w)
	}
}

// ListFiles обрабатывает GET /api/files.
func (h *FilesHandler) ListFiles(w http.ResponseWriter, _ *http.Request) {
	records, opErr := h.fileSvc.List()
	if opErr != nil {
		opErr.Write(w)
		return
	}

	items := make([]fileItem, 0, len(records))
	for _, rec := range records {
		items = append(items, toFileItem(rec))
	}

	writeJSON(w, http.StatusOK, map[string]any{"files": items})
}

// DeleteFile обрабатывает DELETE /api/delete/{token}.
func (h *FilesHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if !model.ValidToken(token) {
		notFound(w, token)
		return
	}

	if opErr := h.fileSvc.Delete(token); opErr != nil {
		opErr.Write(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func toFileItem(rec *model.FileRecord) fileItem {
	item := fileItem{
		Token:       rec.Token,
		Name:        rec.OriginalName,
		Size:        rec.SizeBytes,
		ContentType: rec.ContentType,
		Downloads:   rec.DownloadCount,
		Created:     epochMillis(rec.CreatedAt.Unix()),
	}
	if !rec.LastDownloadedAt.IsZero() {
		item.LastDownloaded = epochMillis(rec.LastDownloadedAt.Unix())
	}
	return item
}

func epochMillis(sec int64) int64 {
	if sec <= 0 {
		return 0
	}
	return sec * 1000
}

// DownloadURL строит публичную ссылку на скачивание.
// X-Forwarded-Proto и X-Forwarded-Host учитываются только при trustProxy,
// иначе клиент мог бы подменить хост в выдаваемой ссылке.
func DownloadURL(r *http.Request, token string, trustProxy bool) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if !trustProxy {
		return scheme + "://" + r.Host + "/d/" + token
	}
	if proto := firstHeaderValue(r.Header.Get("X-Forwarded-Proto")); proto != "" {
		scheme = proto
	}

	host := r.Host
	if fwd := firstHeaderValue(r.Header.Get("X-Forwarded-Host")); fwd != "" {
		host = fwd
	}

	return scheme + "://" + host + "/d/" + token
}

// firstHeaderValue берёт первое значение из списка через запятую.
func firstHeaderValue(v string) string {
	first, _, _ := strings.Cut(v, ",")
	return strings.TrimSpace(first)
}
