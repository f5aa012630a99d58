// Пакет filestore — хранение блобов и метаданных файлов на локальном диске.
//
// Раскладка на диске (совместима с существующими данными):
//
//	<dataDir>/files/<token>.bin   — содержимое файла
//	<dataDir>/meta/<token>.meta   — метаданные (см. пакет meta)
//
// Инвариант пары: блоб и .meta существуют вместе или не существуют вовсе.
// Save пишет сначала блоб, затем метаданные, оба через temp → fsync → rename,
// поэтому сбой оставляет либо ничего, либо полный блоб без ссылки на него.
// Удаление идёт в обратном порядке: блоб, затем .meta.
//
// Все мутации метаданных выполняются под per-token блокировкой (moby/locker),
// поэтому параллельные TouchDownload одного токена не теряют инкременты.
// Удаление, конкурирующее со скачиванием или retention, безопасно:
// оба удаления идемпотентны, проигравшее скачивание видит ErrNotFound.
package filestore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/moby/locker"

	"github.com/bigkaa/fileshare/internal/domain/model"
	"github.com/bigkaa/fileshare/internal/storage/cache"
	"github.com/bigkaa/fileshare/internal/storage/meta"
)

// Имена поддиректорий и суффикс блоба.
const (
	filesSubdir = "files"
	metaSubdir  = "meta"
	blobSuffix  = ".bin"
	tmpSuffix   = ".tmp"
)

// ErrNotFound — файл с указанным токеном отсутствует.
var ErrNotFound = errors.New("файл не найден")

// FileStore — управление блобами и метаданными на диске.
type FileStore struct {
	// dataDir — корневая директория хранения (DATA_DIR)
	dataDir  string
	filesDir string
	metaDir  string

	// cache — кэш метаданных, может быть nil
	cache *cache.MetaCache
	// locks — per-token сериализация мутаций метаданных
	locks *locker.Locker
	// now — источник времени (подменяется в тестах)
	now func() time.Time
}

// New создаёт FileStore. Создаёт директории files/ и meta/, если их нет.
// metaCache может быть nil — тогда метаданные всегда читаются с диска.
func New(dataDir string, metaCache *cache.MetaCache) (*FileStore, error) {
	fs := &FileStore{
		dataDir:  dataDir,
		filesDir: filepath.Join(dataDir, filesSubdir),
		metaDir:  filepath.Join(dataDir, metaSubdir),
		cache:    metaCache,
		locks:    locker.New(),
		now:      time.Now,
	}

	for _, dir := range []string{fs.filesDir, fs.metaDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
		}
	}

	return fs, nil
}

// Save записывает поток на диск и создаёт метаданные для нового токена.
// Пустой contentType заменяется на application/octet-stream.
//
// Порядок: блоб (temp → fsync → rename) → .meta (temp → fsync → rename).
// При ошибке записи метаданных блоб удаляется.
func (fs *FileStore) Save(reader io.Reader, originalName, contentType string) (*model.FileRecord, error) {
	token := model.NewToken()
	blobPath := fs.FilePath(token)
	tmpPath := blobPath + tmpSuffix

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	size, err := io.Copy(f, reader)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, blobPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	if strings.TrimSpace(contentType) == "" {
		contentType = model.DefaultContentType
	}

	rec := &model.FileRecord{
		Token:        token,
		OriginalName: originalName,
		ContentType:  contentType,
		SizeBytes:    size,
		CreatedAt:    time.Unix(fs.now().Unix(), 0).UTC(),
	}

	if err := meta.Write(fs.MetaPath(token), rec); err != nil {
		os.Remove(blobPath)
		return nil, fmt.Errorf("ошибка записи метаданных: %w", err)
	}

	return rec, nil
}

// FilePath возвращает путь к блобу: <dataDir>/files/<token>.bin.
func (fs *FileStore) FilePath(token string) string {
	return filepath.Join(fs.filesDir, token+blobSuffix)
}

// MetaPath возвращает путь к метаданным: <dataDir>/meta/<token>.meta.
func (fs *FileStore) MetaPath(token string) string {
	return filepath.Join(fs.metaDir, meta.FileName(token))
}

// ReadMeta возвращает метаданные токена.
// Возвращает (nil, nil), если метаданных нет или токен некорректен.
func (fs *FileStore) ReadMeta(token string) (*model.FileRecord, error) {
	if !model.ValidToken(token) {
		return nil, nil
	}

	unlock := fs.lock(token)
	defer unlock()

	return fs.readMetaLocked(token, true)
}

// readMetaLocked читает метаданные; вызывается под блокировкой токена.
// useCache=false принудительно читает с диска (для read-modify-write).
func (fs *FileStore) readMetaLocked(token string, useCache bool) (*model.FileRecord, error) {
	if useCache {
		if rec, ok := fs.cache.Get(token); ok {
			return rec, nil
		}
	}

	rec, err := meta.Read(fs.MetaPath(token), token)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fs.cache.Delete(token)
			return nil, nil
		}
		return nil, err
	}

	fs.cache.Set(rec)
	return rec, nil
}

// TouchDownload фиксирует успешное скачивание: downloadCount+1,
// lastDownloadedAt = now. Сериализуется по токену.
// Возвращает обновлённую запись или ErrNotFound.
func (fs *FileStore) TouchDownload(token string) (*model.FileRecord, error) {
	if !model.ValidToken(token) {
		return nil, ErrNotFound
	}

	unlock := fs.lock(token)
	defer unlock()

	rec, err := fs.readMetaLocked(token, false)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}

	rec.DownloadCount++
	rec.LastDownloadedAt = time.Unix(fs.now().Unix(), 0).UTC()

	if err := meta.Write(fs.MetaPath(token), rec); err != nil {
		fs.cache.Delete(token)
		return nil, fmt.Errorf("ошибка обновления метаданных %s: %w", token, err)
	}
	fs.cache.Set(rec)

	return rec, nil
}

// Open открывает блоб для чтения вместе с его метаданными.
// Вызывающий код обязан закрыть файл.
// Возвращает ErrNotFound, если нет метаданных или блоба.
func (fs *FileStore) Open(token string) (*os.File, *model.FileRecord, error) {
	rec, err := fs.ReadMeta(token)
	if err != nil {
		return nil, nil, err
	}
	if rec == nil {
		return nil, nil, ErrNotFound
	}

	f, err := os.Open(fs.FilePath(token))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("ошибка открытия файла %s: %w", token, err)
	}

	return f, rec, nil
}

// ListMetas возвращает метаданные всех файлов. Порядок не определён.
// Нечитаемые или некорректно названные .meta пропускаются.
func (fs *FileStore) ListMetas() ([]*model.FileRecord, error) {
	paths, err := meta.ScanDir(fs.metaDir)
	if err != nil {
		return nil, err
	}

	result := make([]*model.FileRecord, 0, len(paths))
	for _, path := range paths {
		token := meta.TokenFromPath(path)
		if !model.ValidToken(token) {
			continue
		}
		rec, err := meta.Read(path, token)
		if err != nil {
			continue
		}
		result = append(result, rec)
	}

	return result, nil
}

// Delete удаляет файл: блоб, затем метаданные.
// Возвращает ErrNotFound, если метаданных не было.
func (fs *FileStore) Delete(token string) error {
	if !model.ValidToken(token) {
		return ErrNotFound
	}

	unlock := fs.lock(token)
	defer unlock()

	rec, err := fs.readMetaLocked(token, false)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrNotFound
	}

	return fs.removeLocked(token)
}

// DeleteStale удаляет файлы, у которых now - max(createdAt, lastDownloadedAt) >= ttl.
// Каждый кандидат перечитывается под блокировкой токена, чтобы не удалить
// файл, скачанный между листингом и удалением.
// Возвращает количество реально удалённых файлов; ошибки по отдельным
// файлам не прерывают проход и возвращаются объединёнными.
func (fs *FileStore) DeleteStale(ttl time.Duration) (int, error) {
	records, err := fs.ListMetas()
	if err != nil {
		return 0, err
	}

	now := fs.now()
	deleted := 0
	var errs []error

	for _, candidate := range records {
		if !candidate.IsStale(now, ttl) {
			continue
		}

		removed, err := fs.deleteIfStale(candidate.Token, now, ttl)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if removed {
			deleted++
		}
	}

	return deleted, errors.Join(errs...)
}

// deleteIfStale повторно проверяет запись под блокировкой и удаляет её.
func (fs *FileStore) deleteIfStale(token string, now time.Time, ttl time.Duration) (bool, error) {
	unlock := fs.lock(token)
	defer unlock()

	rec, err := fs.readMetaLocked(token, false)
	if err != nil {
		return false, err
	}
	if rec == nil || !rec.IsStale(now, ttl) {
		return false, nil
	}

	if err := fs.removeLocked(token); err != nil {
		return false, err
	}
	return true, nil
}

// removeLocked удаляет блоб и метаданные; вызывается под блокировкой токена.
// Отсутствие любого из файлов не считается ошибкой.
func (fs *FileStore) removeLocked(token string) error {
	fs.cache.Delete(token)

	if err := os.Remove(fs.FilePath(token)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", token, err)
	}
	if err := meta.Delete(fs.MetaPath(token)); err != nil {
		return err
	}
	return nil
}

// lock захватывает блокировку токена и возвращает функцию освобождения.
// Запись о токене удаляется, когда его никто не держит и не ждёт.
func (fs *FileStore) lock(token string) (unlock func()) {
	fs.locks.Lock(token)
	return func() {
		_ = fs.locks.Unlock(token)
	}
}

// DataDir возвращает путь к корневой директории данных.
func (fs *FileStore) DataDir() string {
	return fs.dataDir
}

// FilesDir возвращает путь к директории блобов.
func (fs *FileStore) FilesDir() string {
	return fs.filesDir
}

// MetaDir возвращает путь к директории метаданных.
func (fs *FileStore) MetaDir() string {
	return fs.metaDir
}
