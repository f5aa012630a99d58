// tokensweep.go — периодическое удаление истёкших токенов доступа.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/bigkaa/fileshare/internal/auth"
)

// TokenSweepService — фоновая очистка таблицы токенов.
// Дополняет ленивое удаление при проверке токена.
type TokenSweepService struct {
	authority *auth.TokenAuthority
	logger    *slog.Logger
	task      *periodicTask
}

// NewTokenSweepService создаёт сервис очистки токенов.
func NewTokenSweepService(authority *auth.TokenAuthority, interval time.Duration, logger *slog.Logger) *TokenSweepService {
	s := &TokenSweepService{
		authority: authority,
		logger:    logger.With(slog.String("component", "token_sweep")),
	}
	s.task = &periodicTask{
		name:         "token_sweep",
		initialDelay: interval,
		interval:     interval,
		fn:           func() { s.RunOnce() },
		logger:       s.logger,
	}
	return s
}

// Start запускает фоновую горутину.
func (s *TokenSweepService) Start(ctx context.Context) {
	s.task.start(ctx)
	s.logger.Info("Очистка токенов запущена", slog.String("interval", s.task.interval.String()))
}

// Stop останавливает фоновую горутину.
func (s *TokenSweepService) Stop() {
	s.task.stop()
	s.logger.Info("Очистка токенов остановлена")
}

// RunOnce удаляет истёкшие токены и возвращает их количество.
func (s *TokenSweepService) RunOnce() int {
	removed := s.authority.CleanupExpired()
	if removed > 0 {
		s.logger.Info("Удалены истёкшие токены", slog.Int("count", removed))
	}
	return removed
}
