// Точка входа fileshare — сервиса временного обмена файлами.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bigkaa/fileshare/internal/api/handlers"
	"github.com/bigkaa/fileshare/internal/api/middleware"
	"github.com/bigkaa/fileshare/internal/auth"
	"github.com/bigkaa/fileshare/internal/config"
	"github.com/bigkaa/fileshare/internal/server"
	"github.com/bigkaa/fileshare/internal/service"
	"github.com/bigkaa/fileshare/internal/storage/cache"
	"github.com/bigkaa/fileshare/internal/storage/filestore"
)

func main() {
	// Загрузка конфигурации из переменных окружения (и .env)
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("fileshare запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("data_dir", cfg.DataDir),
		slog.Duration("file_ttl", cfg.FileTTL),
		slog.Bool("auth_enabled", cfg.AuthEnabled),
	)

	// --- Инициализация компонентов ---

	// 1. Кэш метаданных (nil при META_CACHE_SIZE=0)
	metaCache := cache.New(cfg.MetaCacheSize, cfg.MetaCacheTTL)

	// 2. Файловое хранилище
	store, err := filestore.New(cfg.DataDir, metaCache)
	if err != nil {
		logger.Error("Ошибка инициализации FileStore", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 3. Токены доступа
	authority := auth.NewTokenAuthority(cfg.TokenExpiration)
	gate := auth.NewAccessGate(authority, cfg.AuthEnabled)
	if !cfg.AuthEnabled {
		logger.Warn("Аутентификация выключена, управляющие endpoints открыты")
	}

	// 4. Сервисы
	uploadSvc := service.NewUploadService(store, cfg.MaxUploadSize, logger)
	downloadSvc := service.NewDownloadService(store, logger)
	fileSvc := service.NewFileService(store, logger)
	statsSvc := service.NewStatsService(store, logger)

	// 5. Фоновые процессы
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 5.1 Retention — удаление файлов с истёкшим сроком хранения
	retentionSvc := service.NewRetentionService(store, cfg.FileTTL, cfg.CleanupInterval, cfg.CleanupInitialDelay, logger)
	retentionSvc.Start(ctx)

	// 5.2 Удаление истёкших токенов доступа
	tokenSweepSvc := service.NewTokenSweepService(authority, cfg.TokenCleanupInterval, logger)
	tokenSweepSvc.Start(ctx)

	// 5.3 Reconciliation — сверка files/ и meta/ после сбоев
	reconcileSvc := service.NewReconcileService(store, cfg.ReconcileInterval, cfg.ReconcileMinAge, logger)
	reconcileSvc.Start(ctx)

	// 6. Handlers
	apiHandler := handlers.NewAPIHandler(
		handlers.NewFilesHandler(uploadSvc, downloadSvc, fileSvc, cfg.MaxUploadSize, cfg.TrustProxyHeaders),
		handlers.NewAuthHandler(authority, logger),
		handlers.NewStatsHandler(statsSvc),
		handlers.NewQRHandler(fileSvc, cfg.TrustProxyHeaders, logger),
		handlers.NewHealthHandler(map[string]string{
			"files": store.FilesDir(),
			"meta":  store.MetaDir(),
		}, diskUsageFn(store.DataDir())),
	)

	// 7. Ограничение частоты выдачи токенов
	limiter := middleware.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst)

	// 8. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, gate, limiter)

	runErr := srv.Run()

	// --- Graceful shutdown фоновых процессов ---
	logger.Info("Остановка фоновых процессов...")

	retentionSvc.Stop()
	tokenSweepSvc.Stop()
	reconcileSvc.Stop()

	if runErr != nil {
		logger.Error("Ошибка сервера", slog.String("error", runErr.Error()))
		os.Exit(1)
	}

	logger.Info("fileshare остановлен")
}
