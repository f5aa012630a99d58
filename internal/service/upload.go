// upload.go — сервис загрузки файлов из multipart/form-data.
package service

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/fileshare/internal/api/errors"
	"github.com/bigkaa/fileshare/internal/api/middleware"
	"github.com/bigkaa/fileshare/internal/domain/model"
	"github.com/bigkaa/fileshare/internal/multipart"
	"github.com/bigkaa/fileshare/internal/storage/filestore"
)

// UploadParams — параметры загрузки файла.
type UploadParams struct {
	// ContentType — заголовок Content-Type запроса (с boundary)
	ContentType string
	// Body — тело запроса
	Body io.Reader
	// UploadedBy — имя пользователя из токена (пусто при выключенной аутентификации)
	UploadedBy string
}

// UploadService — сервис загрузки файлов.
type UploadService struct {
	store   *filestore.FileStore
	maxSize int64
	logger  *slog.Logger
}

// NewUploadService создаёт сервис загрузки. maxSize ограничивает размер тела запроса.
func NewUploadService(store *filestore.FileStore, maxSize int64, logger *slog.Logger) *UploadService {
	return &UploadService{
		store:   store,
		maxSize: maxSize,
		logger:  logger.With(slog.String("component", "upload_service")),
	}
}

// Upload извлекает первую файловую часть из тела и сохраняет её.
//
// Поток:
//  1. Проверка Content-Type и boundary
//  2. Чтение тела с ограничением размера
//  3. Извлечение файловой части
//  4. FileStore.Save (блоб, затем метаданные)
func (s *UploadService) Upload(params UploadParams) (*model.FileRecord, *OpError) {
	boundary, err := multipart.ParseBoundary(params.ContentType)
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("upload", "rejected").Inc()
		return nil, multipartError(err)
	}

	body, err := io.ReadAll(io.LimitReader(params.Body, s.maxSize+1))
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("upload", "rejected").Inc()
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, s.tooLarge()
		}
		return nil, &OpError{
			StatusCode: http.StatusBadRequest,
			Code:       apierrors.CodeValidationError,
			Message:    "Ошибка чтения тела запроса",
		}
	}
	if int64(len(body)) > s.maxSize {
		middleware.OperationsTotal.WithLabelValues("upload", "rejected").Inc()
		return nil, s.tooLarge()
	}

	part, err := multipart.Extract(body, boundary)
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("upload", "rejected").Inc()
		return nil, multipartError(err)
	}

	rec, err := s.store.Save(bytes.NewReader(part.Data), part.Filename, part.ContentType)
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("upload", "error").Inc()
		s.logger.Error("Ошибка сохранения файла",
			slog.String("filename", part.Filename),
			slog.String("error", err.Error()),
		)
		return nil, internalError("Ошибка сохранения файла на диск")
	}

	middleware.OperationsTotal.WithLabelValues("upload", "success").Inc()
	middleware.UploadBytesTotal.Add(float64(rec.SizeBytes))

	s.logger.Info("Файл загружен",
		slog.String("token", rec.Token),
		slog.String("filename", rec.OriginalName),
		slog.Int64("size", rec.SizeBytes),
		slog.String("uploaded_by", params.UploadedBy),
	)

	return rec, nil
}

func (s *UploadService) tooLarge() *OpError {
	return &OpError{
		StatusCode: http.StatusRequestEntityTooLarge,
		Code:       apierrors.CodeFileTooLarge,
		Message:    fmt.Sprintf("Размер запроса превышает максимум %d байт", s.maxSize),
	}
}

// multipartError сопоставляет ошибку разбора с кодом ответа.
func multipartError(err error) *OpError {
	e := &OpError{StatusCode: http.StatusBadRequest, Message: err.Error()}
	switch {
	case errors.Is(err, multipart.ErrNotMultipart):
		e.Code = apierrors.CodeNotMultipart
		e.Message = "Ожидается Content-Type multipart/form-data"
	case errors.Is(err, multipart.ErrBoundaryMissing):
		e.Code = apierrors.CodeBoundaryMissing
		e.Message = "В Content-Type не указан boundary"
	case errors.Is(err, multipart.ErrNoFilePart):
		e.Code = apierrors.CodeNoFilePart
		e.Message = "В запросе нет части с файлом"
	default:
		e.Code = apierrors.CodeValidationError
		e.Message = "Некорректное тело multipart-запроса"
	}
	return e
}
