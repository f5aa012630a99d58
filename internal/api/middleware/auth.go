// auth.go — middleware проверки bearer-токенов, выданных через /api/auth.
// Публичные endpoints (скачивание, health, metrics) — без аутентификации.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/fileshare/internal/api/errors"
	"github.com/bigkaa/fileshare/internal/auth"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// ContextKeyUsername — ключ для имени пользователя в контексте запроса.
const ContextKeyUsername contextKey = "auth_username"

// RequireAccess возвращает middleware, пропускающий запрос только
// при успешной проверке AccessGate. Имя пользователя помещается в контекст.
func RequireAccess(gate *auth.AccessGate, logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With(slog.String("component", "auth"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, err := gate.Check(r.Header.Get("Authorization"))
			if err != nil {
				logger.Debug("Запрос отклонён",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
					slog.String("error", err.Error()),
				)
				if errors.Is(err, auth.ErrMissingCredentials) {
					apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
					return
				}
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUsername, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UsernameFromContext извлекает имя пользователя из контекста запроса.
// Возвращает пустую строку при выключенной аутентификации.
func UsernameFromContext(ctx context.Context) string {
	username, _ := ctx.Value(ContextKeyUsername).(string)
	return username
}
