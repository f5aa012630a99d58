// Пакет meta — чтение и запись файлов метаданных (<token>.meta).
// Каждый блоб в хранилище имеет сопутствующий .meta, который является
// единственным источником истины для имени, типа, размера и счётчиков.
//
// Формат — UTF-8 текст, одна строка key=value на поле:
// token, originalName, contentType, sizeBytes, createdAtEpochSec,
// lastDownloadedEpochSec, downloadCount. При чтении неизвестные ключи
// игнорируются, последнее вхождение ключа побеждает, отсутствующие поля
// получают нулевые значения.
//
// Все операции записи выполняются атомарно: temp → fsync → rename.
package meta

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bigkaa/fileshare/internal/domain/model"
)

// Suffix — суффикс файла метаданных.
const Suffix = ".meta"

// tmpSuffix — суффикс временного файла при атомарной записи.
const tmpSuffix = ".tmp"

// Ключи формата.
const (
	keyToken          = "token"
	keyOriginalName   = "originalName"
	keyContentType    = "contentType"
	keySizeBytes      = "sizeBytes"
	keyCreatedAt      = "createdAtEpochSec"
	keyLastDownloaded = "lastDownloadedEpochSec"
	keyDownloadCount  = "downloadCount"
)

// FileName возвращает имя файла метаданных для токена: "<token>.meta".
func FileName(token string) string {
	return token + Suffix
}

// TokenFromPath извлекает токен из пути к файлу метаданных.
// Пример: "/data/meta/abc.meta" → "abc"
func TokenFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), Suffix)
}

// Encode сериализует запись в текстовый формат key=value.
// Переводы строк в значениях заменяются пробелами, иначе они
// разорвали бы формат.
func Encode(rec *model.FileRecord) []byte {
	var b bytes.Buffer
	writeLine(&b, keyToken, rec.Token)
	writeLine(&b, keyOriginalName, rec.OriginalName)
	writeLine(&b, keyContentType, rec.ContentType)
	writeLine(&b, keySizeBytes, strconv.FormatInt(rec.SizeBytes, 10))
	writeLine(&b, keyCreatedAt, strconv.FormatInt(epochSec(rec.CreatedAt), 10))
	writeLine(&b, keyLastDownloaded, strconv.FormatInt(epochSec(rec.LastDownloadedAt), 10))
	writeLine(&b, keyDownloadCount, strconv.FormatInt(rec.DownloadCount, 10))
	return b.Bytes()
}

// Decode разбирает текстовый формат. Никогда не возвращает ошибку:
// строки без '=' пропускаются, некорректные числа читаются как 0,
// пустой или отсутствующий contentType заменяется на application/octet-stream.
// Поле token из файла игнорируется — доверяем имени файла.
func Decode(token string, data []byte) *model.FileRecord {
	rec := &model.FileRecord{Token: token}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSuffix(line, "\r")
		i := strings.IndexByte(line, '=')
		if i <= 0 {
			continue
		}
		key, val := line[:i], line[i+1:]

		switch key {
		case keyOriginalName:
			rec.OriginalName = val
		case keyContentType:
			rec.ContentType = val
		case keySizeBytes:
			rec.SizeBytes = parseInt(val)
		case keyCreatedAt:
			rec.CreatedAt = fromEpochSec(parseInt(val))
		case keyLastDownloaded:
			rec.LastDownloadedAt = fromEpochSec(parseInt(val))
		case keyDownloadCount:
			rec.DownloadCount = parseInt(val)
		}
	}

	if strings.TrimSpace(rec.ContentType) == "" {
		rec.ContentType = model.DefaultContentType
	}

	return rec
}

// Write атомарно записывает метаданные в .meta файл.
// Паттерн: текст → temp файл → fsync → atomic rename.
func Write(path string, rec *model.FileRecord) error {
	tmpPath := path + tmpSuffix

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(Encode(rec)); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return nil
}

// Read читает метаданные из .meta файла.
// Если файл не существует, ошибка оборачивает os.ErrNotExist.
func Read(path, token string) (*model.FileRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения %s: %w", path, err)
	}
	return Decode(token, data), nil
}

// Delete удаляет .meta файл.
// Возвращает nil если файл уже не существует.
func Delete(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления %s: %w", path, err)
	}
	return nil
}

// ScanDir возвращает пути ко всем файлам метаданных в директории.
// Не рекурсивный. Временные файлы (.meta.tmp) не попадают в результат.
func ScanDir(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+Suffix))
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования директории %s: %w", dir, err)
	}
	return matches, nil
}

// --- Вспомогательные функции ---

func writeLine(b *bytes.Buffer, key, val string) {
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(strings.NewReplacer("\r", " ", "\n", " ").Replace(val))
	b.WriteByte('\n')
}

func parseInt(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// epochSec переводит время в секунды Unix; нулевое время → 0.
func epochSec(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

// fromEpochSec — обратное преобразование; 0 → нулевое время.
func fromEpochSec(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
