// retention.go — фоновое удаление файлов, к которым давно не обращались.
//
// Файл устаревает, когда с момента max(createdAt, lastDownloadedAt) прошло
// не меньше TTL (DAYS_TO_LIVE). Проход запускается после начальной задержки
// и далее с периодом CLEANUP_INTERVAL. Ошибки прохода логируются и не
// прерывают расписание.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/fileshare/internal/storage/filestore"
)

// Prometheus метрики retention
var (
	retentionRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_retention_runs_total",
		Help: "Общее количество проходов очистки устаревших файлов",
	})

	retentionFilesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_retention_files_deleted_total",
		Help: "Общее количество файлов, удалённых по TTL",
	})

	retentionErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_retention_errors_total",
		Help: "Общее количество ошибок при удалении устаревших файлов",
	})

	retentionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fs_retention_duration_seconds",
		Help:    "Длительность прохода очистки в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// RetentionResult — результат одного прохода очистки.
type RetentionResult struct {
	// DeletedCount — количество удалённых файлов
	DeletedCount int
	// Errors — количество ошибок по отдельным файлам
	Errors int
	// Duration — длительность выполнения
	Duration time.Duration
}

// RetentionService — периодическое удаление устаревших файлов.
type RetentionService struct {
	store  *filestore.FileStore
	ttl    time.Duration
	logger *slog.Logger
	task   *periodicTask

	mu sync.Mutex // защита от параллельного запуска RunOnce
}

// NewRetentionService создаёт сервис очистки.
func NewRetentionService(
	store *filestore.FileStore,
	ttl time.Duration,
	interval time.Duration,
	initialDelay time.Duration,
	logger *slog.Logger,
) *RetentionService {
	s := &RetentionService{
		store:  store,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "retention")),
	}
	s.task = &periodicTask{
		name:         "retention",
		initialDelay: initialDelay,
		interval:     interval,
		fn:           func() { s.RunOnce() },
		logger:       s.logger,
	}
	return s
}

// Start запускает фоновую горутину очистки.
func (s *RetentionService) Start(ctx context.Context) {
	s.task.start(ctx)

	s.logger.Info("Очистка устаревших файлов запущена",
		slog.String("ttl", s.ttl.String()),
		slog.String("interval", s.task.interval.String()),
		slog.String("initial_delay", s.task.initialDelay.String()),
	)
}

// Stop останавливает фоновую очистку.
func (s *RetentionService) Stop() {
	s.task.stop()
	s.logger.Info("Очистка устаревших файлов остановлена")
}

// RunOnce выполняет один проход очистки.
// Потокобезопасен: использует mutex для защиты от параллельного запуска.
func (s *RetentionService) RunOnce() *RetentionResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	result := &RetentionResult{}

	s.logger.Debug("Проход очистки начат")

	deleted, err := s.store.DeleteStale(s.ttl)
	result.DeletedCount = deleted
	if err != nil {
		result.Errors = countErrors(err)
		s.logger.Error("Ошибки при удалении устаревших файлов",
			slog.Int("errors", result.Errors),
			slog.String("error", err.Error()),
		)
	}

	result.Duration = time.Since(start)

	retentionRunsTotal.Inc()
	retentionFilesDeletedTotal.Add(float64(result.DeletedCount))
	retentionErrorsTotal.Add(float64(result.Errors))
	retentionDurationSeconds.Observe(result.Duration.Seconds())

	s.logger.Info("Проход очистки завершён",
		slog.Int("deleted", result.DeletedCount),
		slog.Int("errors", result.Errors),
		slog.Duration("duration", result.Duration),
	)

	return result
}

// countErrors возвращает число ошибок, объединённых errors.Join.
func countErrors(err error) int {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		return len(joined.Unwrap())
	}
	return 1
}
