// download.go — сервис скачивания файлов.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"

	"github.com/bigkaa/fileshare/internal/api/middleware"
	"github.com/bigkaa/fileshare/internal/storage/filestore"
)

// DownloadService — сервис скачивания файлов.
type DownloadService struct {
	store  *filestore.FileStore
	logger *slog.Logger
}

// NewDownloadService создаёт сервис скачивания файлов.
func NewDownloadService(store *filestore.FileStore, logger *slog.Logger) *DownloadService {
	return &DownloadService{
		store:  store,
		logger: logger.With(slog.String("component", "download_service")),
	}
}

// Serve отдаёт файл клиенту через http.ServeContent.
// Поддерживает Range requests (206 Partial Content) и ETag (If-None-Match).
// Скачивание фиксируется в метаданных только когда ServeContent отправляет
// 200 или 206; HEAD, 304, 412 и 416 не считаются.
func (s *DownloadService) Serve(w http.ResponseWriter, r *http.Request, token string) *OpError {
	// 1. Открываем блоб вместе с метаданными
	file, rec, err := s.store.Open(token)
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			middleware.OperationsTotal.WithLabelValues("download", "not_found").Inc()
			return notFound(token)
		}
		s.logger.Error("Ошибка открытия файла",
			slog.String("token", token),
			slog.String("error", err.Error()),
		)
		middleware.OperationsTotal.WithLabelValues("download", "error").Inc()
		return internalError("Ошибка чтения файла")
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		s.logger.Error("Ошибка получения stat файла",
			slog.String("token", token),
			slog.String("error", err.Error()),
		)
		middleware.OperationsTotal.WithLabelValues("download", "error").Inc()
		return internalError("Ошибка чтения файла")
	}

	// 2. Заголовки
	w.Header().Set("Content-Type", rec.ContentType)
	w.Header().Set("Content-Disposition", ContentDisposition(rec.DisplayName()))
	w.Header().Set("ETag", fmt.Sprintf("\"%s\"", rec.Token))
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	// 3. http.ServeContent обрабатывает Range, If-None-Match, Content-Length.
	// Счётчик обновляется в момент отправки статуса 200/206.
	dw := &downloadWriter{ResponseWriter: w}
	if r.Method != http.MethodHead {
		dw.touch = func() *OpError { return s.touch(token) }
	}
	http.ServeContent(dw, r, rec.DisplayName(), stat.ModTime(), file)

	switch {
	case dw.failed != nil:
		if dw.failed.StatusCode == http.StatusNotFound {
			middleware.OperationsTotal.WithLabelValues("download", "not_found").Inc()
		} else {
			middleware.OperationsTotal.WithLabelValues("download", "error").Inc()
		}
		return nil
	case dw.status == http.StatusNotModified:
		middleware.OperationsTotal.WithLabelValues("download", "not_modified").Inc()
		return nil
	case dw.status != http.StatusOK && dw.status != http.StatusPartialContent:
		middleware.OperationsTotal.WithLabelValues("download", "rejected").Inc()
		return nil
	}

	middleware.OperationsTotal.WithLabelValues("download", "success").Inc()

	s.logger.Debug("Файл скачан",
		slog.String("token", token),
		slog.String("filename", rec.OriginalName),
		slog.Int64("size", rec.SizeBytes),
		slog.Int("status", dw.status),
	)

	return nil
}

// touch фиксирует скачивание. Файл мог быть удалён конкурентно, тогда 404.
func (s *DownloadService) touch(token string) *OpError {
	if _, err := s.store.TouchDownload(token); err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			return notFound(token)
		}
		s.logger.Error("Ошибка обновления счётчика скачиваний",
			slog.String("token", token),
			slog.String("error", err.Error()),
		)
		return internalError("Ошибка обновления метаданных")
	}
	return nil
}

// Заголовки содержимого, которые не должны попасть в ответ с ошибкой.
var contentHeaders = []string{
	"Content-Length", "Content-Range", "Content-Disposition",
	"ETag", "Last-Modified", "Accept-Ranges",
}

// downloadWriter перехватывает статус ответа ServeContent.
// При 200/206 вызывает touch до отправки заголовков; если touch
// вернул ошибку, вместо содержимого отправляется JSON-ошибка,
// а тело файла отбрасывается.
type downloadWriter struct {
	http.ResponseWriter
	touch  func() *OpError
	status int
	failed *OpError
}

func (w *downloadWriter) WriteHeader(code int) {
	if w.status != 0 {
		return
	}
	w.status = code

	if w.touch != nil && (code == http.StatusOK || code == http.StatusPartialContent) {
		if opErr := w.touch(); opErr != nil {
			w.failed = opErr
			for _, h := range contentHeaders {
				w.ResponseWriter.Header().Del(h)
			}
			opErr.Write(w.ResponseWriter)
			return
		}
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *downloadWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	if w.failed != nil {
		return len(b), nil
	}
	return w.ResponseWriter.Write(b)
}

// Unwrap возвращает оригинальный ResponseWriter для http.ResponseController.
func (w *downloadWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// ContentDisposition формирует заголовок attachment для имени файла.
// Не-ASCII имена и управляющие символы передаются в filename* (RFC 2231).
func ContentDisposition(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}
