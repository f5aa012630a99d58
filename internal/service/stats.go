// stats.go — сводная и детальная статистика по хранилищу.
package service

import (
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bigkaa/fileshare/internal/domain/model"
	"github.com/bigkaa/fileshare/internal/storage/filestore"
)

// BasicStats — сводная статистика.
type BasicStats struct {
	TotalFiles     int   `json:"totalFiles"`
	TotalBytes     int64 `json:"totalBytes"`
	TotalDownloads int64 `json:"totalDownloads"`
}

// Summary — распределение значения по файлам.
// Median — элемент с индексом n/2 отсортированного ряда,
// Average — целочисленное деление суммы на количество.
type Summary struct {
	Max     int64 `json:"max"`
	Min     int64 `json:"min"`
	Median  int64 `json:"median"`
	Average int64 `json:"average"`
}

// TimeStats — время загрузки: Oldest и Newest в epoch ms, MedianAge в секундах.
type TimeStats struct {
	Oldest    int64 `json:"oldest"`
	Newest    int64 `json:"newest"`
	MedianAge int64 `json:"medianAge"`
}

// FormatStat — количество и объём файлов одного расширения.
type FormatStat struct {
	Format string `json:"format"`
	Count  int    `json:"count"`
	Size   int64  `json:"size"`
}

// DetailedStats — детальная статистика.
type DetailedStats struct {
	TotalFiles     int          `json:"totalFiles"`
	TotalSize      int64        `json:"totalSize"`
	TotalDownloads int64        `json:"totalDownloads"`
	SizeStats      Summary      `json:"sizeStats"`
	DownloadStats  Summary      `json:"downloadStats"`
	TimeStats      TimeStats    `json:"timeStats"`
	FormatStats    []FormatStat `json:"formatStats"`
}

// StatsService — вычисление статистики по метаданным.
type StatsService struct {
	store  *filestore.FileStore
	logger *slog.Logger
	now    func() time.Time
}

// NewStatsService создаёт StatsService.
func NewStatsService(store *filestore.FileStore, logger *slog.Logger) *StatsService {
	return &StatsService{
		store:  store,
		logger: logger.With(slog.String("component", "stats_service")),
		now:    time.Now,
	}
}

// Basic возвращает количество файлов, суммарный объём и число скачиваний.
func (s *StatsService) Basic() (*BasicStats, *OpError) {
	records, opErr := s.list()
	if opErr != nil {
		return nil, opErr
	}

	stats := &BasicStats{TotalFiles: len(records)}
	for _, rec := range records {
		stats.TotalBytes += rec.SizeBytes
		stats.TotalDownloads += rec.DownloadCount
	}
	return stats, nil
}

// Detailed возвращает распределения размеров, скачиваний, возраста и форматов.
func (s *StatsService) Detailed() (*DetailedStats, *OpError) {
	records, opErr := s.list()
	if opErr != nil {
		return nil, opErr
	}
	return computeDetailed(records, s.now()), nil
}

func (s *StatsService) list() ([]*model.FileRecord, *OpError) {
	records, err := s.store.ListMetas()
	if err != nil {
		s.logger.Error("Ошибка листинга метаданных", slog.String("error", err.Error()))
		return nil, internalError("Ошибка получения статистики")
	}
	return records, nil
}

// computeDetailed считает детальную статистику. Пустой набор даёт нули.
func computeDetailed(records []*model.FileRecord, now time.Time) *DetailedStats {
	stats := &DetailedStats{
		TotalFiles:  len(records),
		FormatStats: []FormatStat{},
	}
	if len(records) == 0 {
		return stats
	}

	sizes := make([]int64, 0, len(records))
	downloads := make([]int64, 0, len(records))
	ages := make([]int64, 0, len(records))
	formats := make(map[string]*FormatStat)

	oldest, newest := createdSec(records[0]), createdSec(records[0])
	for _, rec := range records {
		created := createdSec(rec)
		stats.TotalSize += rec.SizeBytes
		stats.TotalDownloads += rec.DownloadCount
		sizes = append(sizes, rec.SizeBytes)
		downloads = append(downloads, rec.DownloadCount)
		ages = append(ages, now.Unix()-created)

		oldest = min(oldest, created)
		newest = max(newest, created)

		ext := FileExtension(rec.OriginalName)
		fs, ok := formats[ext]
		if !ok {
			fs = &FormatStat{Format: ext}
			formats[ext] = fs
		}
		fs.Count++
		fs.Size += rec.SizeBytes
	}

	stats.SizeStats = summarize(sizes, stats.TotalSize)
	stats.DownloadStats = summarize(downloads, stats.TotalDownloads)

	sortInt64(ages)
	stats.TimeStats = TimeStats{
		Oldest:    oldest * 1000,
		Newest:    newest * 1000,
		MedianAge: ages[len(ages)/2],
	}

	for _, fs := range formats {
		stats.FormatStats = append(stats.FormatStats, *fs)
	}
	sort.Slice(stats.FormatStats, func(i, j int) bool {
		a, b := stats.FormatStats[i], stats.FormatStats[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Format < b.Format
	})

	return stats
}

// createdSec возвращает время загрузки в секундах эпохи.
// Записи без createdAtEpochSec считаются загруженными в момент 0.
func createdSec(rec *model.FileRecord) int64 {
	return max(rec.CreatedAt.Unix(), 0)
}

// summarize считает max/min/median/average по непустому ряду.
func summarize(values []int64, total int64) Summary {
	sortInt64(values)
	n := len(values)
	return Summary{
		Max:     values[n-1],
		Min:     values[0],
		Median:  values[n/2],
		Average: total / int64(n),
	}
}

func sortInt64(values []int64) {
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
}

// FileExtension возвращает расширение в нижнем регистре без точки.
// Пустое имя — "unknown", имя без расширения — "no_extension".
func FileExtension(name string) string {
	if name == "" {
		return "unknown"
	}
	ext := filepath.Ext(name)
	if len(ext) <= 1 {
		return "no_extension"
	}
	return strings.ToLower(ext[1:])
}
