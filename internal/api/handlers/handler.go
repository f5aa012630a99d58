// handler.go — APIHandler собирает доменные handlers в один объект,
// который сервер использует при регистрации маршрутов.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	apierrors "github.com/bigkaa/fileshare/internal/api/errors"
)

// APIHandler — набор всех handlers API.
type APIHandler struct {
	Files  *FilesHandler
	Auth   *AuthHandler
	Stats  *StatsHandler
	QR     *QRHandler
	Health *HealthHandler
}

// NewAPIHandler создаёт единый handler для всех endpoints.
func NewAPIHandler(
	files *FilesHandler,
	auth *AuthHandler,
	stats *StatsHandler,
	qr *QRHandler,
	health *HealthHandler,
) *APIHandler {
	return &APIHandler{
		Files:  files,
		Auth:   auth,
		Stats:  stats,
		QR:     qr,
		Health: health,
	}
}

// writeJSON записывает JSON-ответ.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func notFound(w http.ResponseWriter, token string) {
	apierrors.NotFound(w, fmt.Sprintf("Файл %s не найден", token))
}
