package middleware

import (
	"net/http"
	"strings"

	"github.com/bigkaa/fileshare/internal/domain/model"
)

// statusRecorder перехватывает статус и размер ответа.
// Общий для RequestLogger и MetricsMiddleware.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	written     int64
	wroteHeader bool
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// requestPath возвращает путь для логов и меток метрик: сегменты,
// похожие на токен файла, заменяются на {token}.
// При collapseStatic пути статики сворачиваются в /static,
// чтобы кардинальность метрик не росла.
//
//	/d/0123456789abcdef0123456789abcdef → /d/{token}
func requestPath(path string, collapseStatic bool) string {
	if collapseStatic && !isServicePath(path) {
		return "/static"
	}

	segments := strings.Split(path, "/")
	for i, s := range segments {
		if model.ValidToken(s) {
			segments[i] = "{token}"
		}
	}
	return strings.Join(segments, "/")
}

func isServicePath(path string) bool {
	return path == "/metrics" ||
		strings.HasPrefix(path, "/health/") ||
		strings.HasPrefix(path, "/api/") ||
		strings.HasPrefix(path, "/d/")
}
