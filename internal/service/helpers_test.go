package service

import (
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/fileshare/internal/domain/model"
	"github.com/bigkaa/fileshare/internal/storage/filestore"
	"github.com/bigkaa/fileshare/internal/storage/meta"
)

// testLogger — логгер, пропускающий только ошибки.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// setupTestStore создаёт FileStore во временной директории без кэша.
func setupTestStore(t *testing.T) *filestore.FileStore {
	t.Helper()

	store, err := filestore.New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Ошибка создания FileStore: %v", err)
	}
	return store
}

// createTestFile сохраняет файл и переписывает его метаданные
// с заданными временем загрузки и последнего скачивания.
func createTestFile(t *testing.T, store *filestore.FileStore, name, data string, createdAt, lastDownloaded time.Time, downloads int64) *model.FileRecord {
	t.Helper()

	rec, err := store.Save(strings.NewReader(data), name, "")
	if err != nil {
		t.Fatalf("Ошибка сохранения тестового файла: %v", err)
	}

	rec.CreatedAt = createdAt.Truncate(time.Second).UTC()
	if !lastDownloaded.IsZero() {
		rec.LastDownloadedAt = lastDownloaded.Truncate(time.Second).UTC()
	}
	rec.DownloadCount = downloads

	if err := meta.Write(store.MetaPath(rec.Token), rec); err != nil {
		t.Fatalf("Ошибка записи метаданных: %v", err)
	}
	return rec
}
