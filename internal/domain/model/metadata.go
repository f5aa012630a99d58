// Пакет model — доменные модели файлового обменника.
// FileRecord — единая структура метаданных файла, используется
// как in-memory представление и как содержимое <token>.meta на диске.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultContentType — MIME-тип по умолчанию, если клиент его не указал.
const DefaultContentType = "application/octet-stream"

// TokenLength — длина токена файла в hex-символах.
const TokenLength = 32

// FileRecord — метаданные загруженного файла. Соответствует содержимому .meta.
type FileRecord struct {
	// Token — уникальный идентификатор файла (32 hex-символа), неизменяемый
	Token string

	// OriginalName — имя файла от клиента, может быть пустым
	OriginalName string

	// ContentType — MIME-тип файла
	ContentType string

	// SizeBytes — размер блоба в байтах, фиксируется при загрузке
	SizeBytes int64

	// CreatedAt — время загрузки (точность — секунды)
	CreatedAt time.Time

	// LastDownloadedAt — время последнего успешного скачивания.
	// Нулевое значение — файл ещё не скачивался.
	LastDownloadedAt time.Time

	// DownloadCount — количество успешных скачиваний
	DownloadCount int64
}

// NewToken генерирует новый токен файла: UUID v4 (crypto/rand) без дефисов.
func NewToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ValidToken проверяет формат токена файла: ровно 32 символа [0-9a-f].
// Токен попадает в имя файла на диске, поэтому всё остальное отклоняется.
func ValidToken(token string) bool {
	if len(token) != TokenLength {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

// LastAccess возвращает точку отсчёта TTL: max(CreatedAt, LastDownloadedAt).
func (r *FileRecord) LastAccess() time.Time {
	if r.LastDownloadedAt.After(r.CreatedAt) {
		return r.LastDownloadedAt
	}
	return r.CreatedAt
}

// IsStale проверяет, истёк ли срок хранения файла на момент now.
func (r *FileRecord) IsStale(now time.Time, ttl time.Duration) bool {
	return now.Sub(r.LastAccess()) >= ttl
}

// DisplayName возвращает имя для Content-Disposition: оригинальное
// имя файла или токен, если имя пустое.
func (r *FileRecord) DisplayName() string {
	if strings.TrimSpace(r.OriginalName) == "" {
		return r.Token
	}
	return r.OriginalName
}
