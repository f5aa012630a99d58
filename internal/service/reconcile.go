// reconcile.go — сервис фоновой сверки (Reconciliation) файлового хранилища.
//
// Reconciliation сравнивает блобы в files/ с метаданными в meta/ и
// убирает последствия сбоев: незавершённые temp-файлы, блобы без .meta
// и .meta без блоба. Расхождение размера только фиксируется в логе и метриках.
//
// Запускается как горутина с периодическим тикером (RECONCILE_INTERVAL).
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/fileshare/internal/storage/filestore"
)

// Prometheus метрики Reconciliation
var (
	reconcileRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_reconcile_runs_total",
		Help: "Общее количество запусков reconciliation",
	})

	// reconcileIssuesTotal — количество обнаруженных проблем по типу.
	reconcileIssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fs_reconcile_issues_total",
		Help: "Общее количество проблем, обнаруженных reconciliation",
	}, []string{"type"})

	reconcileDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fs_reconcile_duration_seconds",
		Help:    "Длительность выполнения reconciliation в секундах",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	})
)

// ReconcileService — сервис фоновой сверки хранилища.
type ReconcileService struct {
	store  *filestore.FileStore
	minAge time.Duration
	logger *slog.Logger
	task   *periodicTask

	mu        sync.Mutex // защита от параллельного запуска
	inProcess bool       // reconciliation в процессе выполнения
}

// NewReconcileService создаёт сервис reconciliation.
// minAge — возраст, после которого файл без пары считается брошенным.
// Первый проход выполняется сразу после Start.
func NewReconcileService(
	store *filestore.FileStore,
	interval time.Duration,
	minAge time.Duration,
	logger *slog.Logger,
) *ReconcileService {
	rs := &ReconcileService{
		store:  store,
		minAge: minAge,
		logger: logger.With(slog.String("component", "reconcile")),
	}
	rs.task = &periodicTask{
		name:     "reconcile",
		interval: interval,
		fn:       func() { rs.RunOnce() },
		logger:   rs.logger,
	}
	return rs
}

// Start запускает фоновую горутину reconciliation.
func (rs *ReconcileService) Start(ctx context.Context) {
	rs.task.start(ctx)
}

// Stop останавливает reconciliation и ожидает завершения горутины.
func (rs *ReconcileService) Stop() {
	rs.task.stop()
}

// IsInProgress возвращает true, если reconciliation выполняется.
func (rs *ReconcileService) IsInProgress() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.inProcess
}

// RunOnce выполняет один цикл reconciliation.
// Если reconciliation уже выполняется, возвращает nil, true.
func (rs *ReconcileService) RunOnce() (*filestore.ReconcileResult, bool) {
	rs.mu.Lock()
	if rs.inProcess {
		rs.mu.Unlock()
		rs.logger.Warn("Reconciliation уже выполняется, пропуск")
		return nil, true
	}
	rs.inProcess = true
	rs.mu.Unlock()

	defer func() {
		rs.mu.Lock()
		rs.inProcess = false
		rs.mu.Unlock()
	}()

	start := time.Now()
	rs.logger.Debug("Reconciliation начата")

	result, err := rs.store.Reconcile(rs.minAge)
	duration := time.Since(start)

	reconcileRunsTotal.Inc()
	reconcileDurationSeconds.Observe(duration.Seconds())

	if err != nil {
		rs.logger.Error("Ошибки при reconciliation",
			slog.String("error", err.Error()),
		)
	}
	if result == nil {
		return &filestore.ReconcileResult{}, false
	}

	for _, issue := range result.Issues {
		reconcileIssuesTotal.WithLabelValues(issue.Type).Inc()
		rs.logger.Warn("Обнаружено расхождение",
			slog.String("type", issue.Type),
			slog.String("token", issue.Token),
			slog.String("path", issue.Path),
			slog.Bool("fixed", issue.Fixed),
		)
	}

	rs.logger.Info("Reconciliation завершена",
		slog.Int("files_checked", result.Checked),
		slog.Int("issues", len(result.Issues)),
		slog.Duration("duration", duration),
	)

	return result, false
}
