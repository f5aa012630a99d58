// auth.go — выдача и отзыв токенов доступа.
package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	apierrors "github.com/bigkaa/fileshare/internal/api/errors"
	"github.com/bigkaa/fileshare/internal/auth"
)

// maxAuthBody — предельный размер тела запроса на выдачу токена.
const maxAuthBody = 4 << 10

// AuthHandler — обработчик /api/auth.
type AuthHandler struct {
	authority *auth.TokenAuthority
	logger    *slog.Logger
}

// NewAuthHandler создаёт AuthHandler.
func NewAuthHandler(authority *auth.TokenAuthority, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authority: authority,
		logger:    logger.With(slog.String("component", "auth_handler")),
	}
}

type issueRequest struct {
	Username string `json:"username"`
}

type issueResponse struct {
	Token     string `json:"token"`
	Username  string `json:"username"`
	ExpiresAt string `json:"expiresAt"`
}

// IssueToken обрабатывает POST /api/auth: {"username": "..."} → токен.
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxAuthBody)).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: ожидается {\"username\": \"...\"}")
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		apierrors.ValidationError(w, "Поле username обязательно")
		return
	}

	token, expiresAt, err := h.authority.Generate(username)
	if err != nil {
		h.logger.Error("Ошибка генерации токена", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Ошибка генерации токена")
		return
	}

	h.logger.Info("Выдан токен доступа",
		slog.String("username", username),
		slog.String("remote_addr", r.RemoteAddr),
	)

	writeJSON(w, http.StatusOK, issueResponse{
		Token:     token,
		Username:  username,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	})
}

// RevokeToken обрабатывает DELETE /api/auth: отзывает предъявленный токен.
func (h *AuthHandler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		apierrors.Unauthorized(w, "Отсутствует Bearer token")
		return
	}

	h.authority.Revoke(token)
	w.WriteHeader(http.StatusNoContent)
}
