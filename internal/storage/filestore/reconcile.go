// reconcile.go — сверка files/ и meta/ после сбоев.
//
// Обнаруживает и устраняет:
//   - stale_temp: незавершённая атомарная запись (*.tmp)
//   - orphaned_blob: блоб без метаданных (сбой между записью блоба и .meta)
//   - orphaned_meta: .meta без блоба (сбой между удалением блоба и .meta)
//
// size_mismatch (размер блоба не совпадает с .meta) только фиксируется.
package filestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bigkaa/fileshare/internal/domain/model"
	"github.com/bigkaa/fileshare/internal/storage/meta"
)

// Типы расхождений.
const (
	IssueStaleTemp    = "stale_temp"
	IssueOrphanedBlob = "orphaned_blob"
	IssueOrphanedMeta = "orphaned_meta"
	IssueSizeMismatch = "size_mismatch"
)

// ReconcileIssue — обнаруженное расхождение.
type ReconcileIssue struct {
	Type  string
	Token string
	Path  string
	// Fixed — расхождение устранено (файл удалён)
	Fixed bool
}

// ReconcileResult — итог сверки.
type ReconcileResult struct {
	// Checked — количество проверенных .meta
	Checked int
	Issues  []ReconcileIssue
}

// Reconcile сверяет блобы и метаданные.
// Файлы моложе minAge не трогаются: Save пишет .meta после rename блоба
// без блокировки токена, и свежий блоб без .meta — нормальное состояние.
// Ошибки по отдельным файлам не прерывают проход и возвращаются объединёнными.
func (fs *FileStore) Reconcile(minAge time.Duration) (*ReconcileResult, error) {
	now := fs.now()
	result := &ReconcileResult{}
	var errs []error

	// 1. Временные файлы
	for _, dir := range []string{fs.filesDir, fs.metaDir} {
		issues, err := fs.removeStaleTemp(dir, now, minAge)
		if err != nil {
			errs = append(errs, err)
		}
		result.Issues = append(result.Issues, issues...)
	}

	// 2. Блобы без метаданных
	entries, err := os.ReadDir(fs.filesDir)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения директории %s: %w", fs.filesDir, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, blobSuffix) {
			continue
		}
		token := strings.TrimSuffix(name, blobSuffix)
		if !model.ValidToken(token) {
			continue
		}

		issue, err := fs.reconcileBlob(token, now, minAge)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if issue != nil {
			result.Issues = append(result.Issues, *issue)
		}
	}

	// 3. Метаданные без блоба и расхождение размера
	paths, err := meta.ScanDir(fs.metaDir)
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		token := meta.TokenFromPath(path)
		if !model.ValidToken(token) {
			continue
		}
		result.Checked++

		issue, err := fs.reconcileMeta(token)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if issue != nil {
			result.Issues = append(result.Issues, *issue)
		}
	}

	return result, errors.Join(errs...)
}

func (fs *FileStore) removeStaleTemp(dir string, now time.Time, minAge time.Duration) ([]ReconcileIssue, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения директории %s: %w", dir, err)
	}

	var issues []ReconcileIssue
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), tmpSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || now.Sub(info.ModTime()) < minAge {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("ошибка удаления %s: %w", path, err))
			continue
		}
		issues = append(issues, ReconcileIssue{Type: IssueStaleTemp, Path: path, Fixed: true})
	}

	return issues, errors.Join(errs...)
}

// reconcileBlob удаляет блоб без метаданных, если он старше minAge.
func (fs *FileStore) reconcileBlob(token string, now time.Time, minAge time.Duration) (*ReconcileIssue, error) {
	unlock := fs.lock(token)
	defer unlock()

	if _, err := os.Stat(fs.MetaPath(token)); err == nil {
		return nil, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("ошибка проверки метаданных %s: %w", token, err)
	}

	blobPath := fs.FilePath(token)
	info, err := os.Stat(blobPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка проверки файла %s: %w", token, err)
	}
	if now.Sub(info.ModTime()) < minAge {
		return nil, nil
	}

	if err := os.Remove(blobPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("ошибка удаления файла %s: %w", token, err)
	}
	return &ReconcileIssue{Type: IssueOrphanedBlob, Token: token, Path: blobPath, Fixed: true}, nil
}

// reconcileMeta удаляет .meta без блоба и сверяет размер.
func (fs *FileStore) reconcileMeta(token string) (*ReconcileIssue, error) {
	unlock := fs.lock(token)
	defer unlock()

	rec, err := fs.readMetaLocked(token, false)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}

	blobPath := fs.FilePath(token)
	info, err := os.Stat(blobPath)
	if os.IsNotExist(err) {
		fs.cache.Delete(token)
		if err := meta.Delete(fs.MetaPath(token)); err != nil {
			return nil, err
		}
		return &ReconcileIssue{Type: IssueOrphanedMeta, Token: token, Path: fs.MetaPath(token), Fixed: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка проверки файла %s: %w", token, err)
	}

	if info.Size() != rec.SizeBytes {
		return &ReconcileIssue{Type: IssueSizeMismatch, Token: token, Path: blobPath}, nil
	}
	return nil, nil
}
