// files.go — листинг, поиск и удаление файлов.
package service

import (
	"errors"
	"log/slog"
	"sort"

	"github.com/bigkaa/fileshare/internal/api/middleware"
	"github.com/bigkaa/fileshare/internal/domain/model"
	"github.com/bigkaa/fileshare/internal/storage/filestore"
)

// FileService — операции над набором загруженных файлов.
type FileService struct {
	store  *filestore.FileStore
	logger *slog.Logger
}

// NewFileService создаёт FileService.
func NewFileService(store *filestore.FileStore, logger *slog.Logger) *FileService {
	return &FileService{
		store:  store,
		logger: logger.With(slog.String("component", "file_service")),
	}
}

// List возвращает все файлы, новые первыми.
func (s *FileService) List() ([]*model.FileRecord, *OpError) {
	records, err := s.store.ListMetas()
	if err != nil {
		s.logger.Error("Ошибка листинга метаданных", slog.String("error", err.Error()))
		return nil, internalError("Ошибка чтения списка файлов")
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].Token < records[j].Token
	})
	return records, nil
}

// Get возвращает метаданные файла или 404.
func (s *FileService) Get(token string) (*model.FileRecord, *OpError) {
	rec, err := s.store.ReadMeta(token)
	if err != nil {
		s.logger.Error("Ошибка чтения метаданных",
			slog.String("token", token),
			slog.String("error", err.Error()),
		)
		return nil, internalError("Ошибка чтения метаданных")
	}
	if rec == nil {
		return nil, notFound(token)
	}
	return rec, nil
}

// Delete удаляет файл по токену.
func (s *FileService) Delete(token string) *OpError {
	if err := s.store.Delete(token); err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			middleware.OperationsTotal.WithLabelValues("delete", "not_found").Inc()
			return notFound(token)
		}
		middleware.OperationsTotal.WithLabelValues("delete", "error").Inc()
		s.logger.Error("Ошибка удаления файла",
			slog.String("token", token),
			slog.String("error", err.Error()),
		)
		return internalError("Ошибка удаления файла")
	}

	middleware.OperationsTotal.WithLabelValues("delete", "success").Inc()
	s.logger.Info("Файл удалён", slog.String("token", token))
	return nil
}
