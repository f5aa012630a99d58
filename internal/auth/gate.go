package auth

import (
	"errors"
	"strings"
)

var (
	// ErrMissingCredentials — заголовок Authorization отсутствует.
	ErrMissingCredentials = errors.New("отсутствует заголовок Authorization")
	// ErrInvalidToken — токен неверного формата, неизвестен или истёк.
	ErrInvalidToken = errors.New("невалидный или просроченный токен")
)

// AccessGate — политика доступа к защищённым операциям API.
// При выключенной аутентификации пропускает все запросы.
type AccessGate struct {
	authority *TokenAuthority
	enabled   bool
}

// NewAccessGate создаёт AccessGate поверх TokenAuthority.
func NewAccessGate(authority *TokenAuthority, enabled bool) *AccessGate {
	return &AccessGate{authority: authority, enabled: enabled}
}

// Enabled сообщает, включена ли проверка токенов.
func (g *AccessGate) Enabled() bool {
	return g.enabled
}

// Check проверяет значение заголовка Authorization и возвращает имя пользователя.
// При выключенной аутентификации возвращает ("", nil).
func (g *AccessGate) Check(authHeader string) (string, error) {
	if !g.enabled {
		return "", nil
	}
	if strings.TrimSpace(authHeader) == "" {
		return "", ErrMissingCredentials
	}

	token, ok := BearerToken(authHeader)
	if !ok {
		return "", ErrInvalidToken
	}

	username, ok := g.authority.Username(token)
	if !ok {
		return "", ErrInvalidToken
	}
	return username, nil
}

// BearerToken извлекает токен из "Bearer <token>". Схема регистронезависима.
func BearerToken(authHeader string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(authHeader), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
