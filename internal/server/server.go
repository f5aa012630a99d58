// Пакет server — HTTP-сервер обмена файлами с TLS и graceful shutdown.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apierrors "github.com/bigkaa/fileshare/internal/api/errors"
	"github.com/bigkaa/fileshare/internal/api/handlers"
	"github.com/bigkaa/fileshare/internal/api/middleware"
	"github.com/bigkaa/fileshare/internal/auth"
	"github.com/bigkaa/fileshare/internal/config"
)

// Server — HTTP-сервер обмена файлами.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
// gate закрывает управляющие endpoints, limiter ограничивает выдачу токенов.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	api *handlers.APIHandler,
	gate *auth.AccessGate,
	limiter *middleware.RateLimiter,
) *Server {
	router := NewRouter(cfg, logger, api, gate, limiter)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Настройка TLS
	if cfg.TLSEnabled() {
		srv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает chi-роутер со всеми маршрутами сервиса.
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	api *handlers.APIHandler,
	gate *auth.AccessGate,
	limiter *middleware.RateLimiter,
) chi.Router {
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.MetricsMiddleware())
	router.Use(chimw.Recoverer)

	router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.NotFound(w, "Ресурс не найден")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apierrors.MethodNotAllowed(w, fmt.Sprintf("Метод %s не поддерживается", r.Method))
	})

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/health/live", api.Health.HealthLive)
	router.Get("/health/ready", api.Health.HealthReady)

	// Публичные endpoints: скачивание по ссылке и QR-код
	router.Get("/d/{token}", api.Files.DownloadFile)
	router.Head("/d/{token}", api.Files.DownloadFile)
	router.Get("/api/qr/{token}", api.QR.QRCode)

	router.With(limiter.Middleware()).Post("/api/auth", api.Auth.IssueToken)
	router.Delete("/api/auth", api.Auth.RevokeToken)

	// Управляющие endpoints за AccessGate
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAccess(gate, logger))

		r.Post("/api/upload", api.Files.UploadFile)
		r.Get("/api/files", api.Files.ListFiles)
		r.Get("/api/stats", api.Stats.Stats)
		r.Get("/api/file-stats", api.Stats.FileStats)
		r.Delete("/api/delete/{token}", api.Files.DeleteFile)
	})

	// Статический веб-интерфейс
	if cfg.PublicDir != "" {
		router.Handle("/*", http.FileServer(http.Dir(cfg.PublicDir)))
	}

	return router
}

// Handler возвращает корневой http.Handler сервера.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown с таймаутом SHUTDOWN_TIMEOUT.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
			slog.Bool("tls", s.cfg.TLSEnabled()),
		)

		var err error
		if s.cfg.TLSEnabled() {
			err = s.httpServer.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
		} else {
			err = s.httpServer.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...",
		slog.Duration("timeout", s.cfg.ShutdownTimeout),
	)
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
