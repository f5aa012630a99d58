// Пакет auth — выдача и проверка bearer-токенов доступа к API.
//
// Токены живут только в памяти процесса: перезапуск аннулирует все токены.
// Состояния токена: активен → истёк (обнаруживается при проверке или
// периодической очистке) → удалён. Revoke переводит активный токен сразу
// в удалённые.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// tokenBytes — энтропия токена (256 бит).
const tokenBytes = 32

// Prometheus-метрики токенов.
var (
	tokensIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_auth_tokens_issued_total",
		Help: "Общее количество выданных токенов доступа.",
	})
	tokensExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_auth_tokens_expired_total",
		Help: "Общее количество токенов, удалённых по истечении срока.",
	})
	tokensActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fs_auth_tokens_active",
		Help: "Текущее количество токенов в таблице.",
	})
)

// tokenRecord — запись таблицы токенов.
type tokenRecord struct {
	username  string
	expiresAt time.Time
}

// TokenAuthority — конкурентно-безопасная таблица токенов.
type TokenAuthority struct {
	tokens     sync.Map // string → *tokenRecord
	expiration time.Duration
	now        func() time.Time
}

// NewTokenAuthority создаёт TokenAuthority с заданным сроком жизни токенов.
func NewTokenAuthority(expiration time.Duration) *TokenAuthority {
	return &TokenAuthority{
		expiration: expiration,
		now:        time.Now,
	}
}

// Generate выдаёт новый токен для username.
// Токен — 32 случайных байта в URL-safe base64 без паддинга.
func (a *TokenAuthority) Generate(username string) (string, time.Time, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", time.Time{}, fmt.Errorf("ошибка генерации токена: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)

	rec := &tokenRecord{
		username:  username,
		expiresAt: a.now().Add(a.expiration),
	}
	a.tokens.Store(token, rec)

	tokensIssuedTotal.Inc()
	tokensActive.Inc()

	return token, rec.expiresAt, nil
}

// Validate возвращает true для существующего неистёкшего токена.
// Истёкший токен удаляется из таблицы.
func (a *TokenAuthority) Validate(token string) bool {
	_, ok := a.lookup(token)
	return ok
}

// Username возвращает имя пользователя для действующего токена.
// Истечение проверяется так же, как в Validate.
func (a *TokenAuthority) Username(token string) (string, bool) {
	rec, ok := a.lookup(token)
	if !ok {
		return "", false
	}
	return rec.username, true
}

// lookup находит действующую запись, лениво удаляя истёкшую.
func (a *TokenAuthority) lookup(token string) (*tokenRecord, bool) {
	if token == "" {
		return nil, false
	}
	v, ok := a.tokens.Load(token)
	if !ok {
		return nil, false
	}
	rec := v.(*tokenRecord)
	if !a.now().Before(rec.expiresAt) {
		if a.tokens.CompareAndDelete(token, rec) {
			tokensExpiredTotal.Inc()
			tokensActive.Dec()
		}
		return nil, false
	}
	return rec, true
}

// Revoke удаляет токен безусловно.
func (a *TokenAuthority) Revoke(token string) {
	if _, loaded := a.tokens.LoadAndDelete(token); loaded {
		tokensActive.Dec()
	}
}

// CleanupExpired удаляет все истёкшие токены и возвращает их количество.
func (a *TokenAuthority) CleanupExpired() int {
	now := a.now()
	removed := 0

	a.tokens.Range(func(key, value any) bool {
		rec := value.(*tokenRecord)
		if !now.Before(rec.expiresAt) && a.tokens.CompareAndDelete(key, rec) {
			removed++
		}
		return true
	})

	if removed > 0 {
		tokensExpiredTotal.Add(float64(removed))
		tokensActive.Sub(float64(removed))
	}
	return removed
}

// Len возвращает количество записей в таблице, включая ещё не удалённые истёкшие.
func (a *TokenAuthority) Len() int {
	n := 0
	a.tokens.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
