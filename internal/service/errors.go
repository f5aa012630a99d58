// Пакет service — бизнес-логика файлообменника.
package service

import (
	"fmt"
	"net/http"

	apierrors "github.com/bigkaa/fileshare/internal/api/errors"
)

// OpError — ошибка операции с HTTP-кодом для ответа клиенту.
type OpError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Write записывает ошибку в формате API.
func (e *OpError) Write(w http.ResponseWriter) {
	apierrors.WriteError(w, e.StatusCode, e.Code, e.Message)
}

func notFound(token string) *OpError {
	return &OpError{
		StatusCode: http.StatusNotFound,
		Code:       apierrors.CodeNotFound,
		Message:    fmt.Sprintf("Файл %s не найден", token),
	}
}

func internalError(message string) *OpError {
	return &OpError{
		StatusCode: http.StatusInternalServerError,
		Code:       apierrors.CodeInternalError,
		Message:    message,
	}
}
