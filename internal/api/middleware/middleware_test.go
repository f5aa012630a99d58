package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRequestPath(t *testing.T) {
	const token = "0123456789abcdef0123456789abcdef"

	tests := []struct {
		path          string
		wantMetrics   string
		wantAccessLog string
	}{
		{"/d/" + token, "/d/{token}", "/d/{token}"},
		{"/api/delete/" + token, "/api/delete/{token}", "/api/delete/{token}"},
		{"/api/qr/" + token, "/api/qr/{token}", "/api/qr/{token}"},
		{"/api/files", "/api/files", "/api/files"},
		{"/health/live", "/health/live", "/health/live"},
		{"/metrics", "/metrics", "/metrics"},
		{"/index.html", "/static", "/index.html"},
		{"/js/app.js", "/static", "/js/app.js"},
		{"/d/not-a-token", "/d/not-a-token", "/d/not-a-token"},
	}

	for _, tt := range tests {
		if got := requestPath(tt.path, true); got != tt.wantMetrics {
			t.Errorf("requestPath(%q, true): ожидалось %q, получено %q", tt.path, tt.wantMetrics, got)
		}
		if got := requestPath(tt.path, false); got != tt.wantAccessLog {
			t.Errorf("requestPath(%q, false): ожидалось %q, получено %q", tt.path, tt.wantAccessLog, got)
		}
	}
}

// TestStatusRecorder — фиксируется первый статус, неявный 200 и размер тела.
func TestStatusRecorder(t *testing.T) {
	rec := newStatusRecorder(httptest.NewRecorder())
	_, _ = rec.Write([]byte("abc"))
	rec.WriteHeader(http.StatusInternalServerError)

	if rec.status != http.StatusOK {
		t.Errorf("статус: ожидалось 200 (неявный), получено %d", rec.status)
	}
	if rec.written != 3 {
		t.Errorf("размер: ожидалось 3, получено %d", rec.written)
	}
}

func TestMetricsMiddleware_PassesThrough(t *testing.T) {
	handler := MetricsMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("статус: ожидалось %d, получено %d", http.StatusTeapot, rec.Code)
	}
}

// TestRequestLogger_LevelAndMasking — уровень по статусу, токен не попадает в лог.
func TestRequestLogger_LevelAndMasking(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("нет"))
	}))

	token := "0123456789abcdef0123456789abcdef"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/d/"+token, nil))

	out := buf.String()
	if !strings.Contains(out, "level=WARN") {
		t.Errorf("ожидался уровень WARN для 404: %s", out)
	}
	if strings.Contains(out, token) {
		t.Errorf("токен не должен попадать в лог: %s", out)
	}
	if !strings.Contains(out, "status=404") {
		t.Errorf("в логе нет статуса: %s", out)
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("10.0.0.1") || !rl.Allow("10.0.0.1") {
		t.Fatal("первые burst запросов должны проходить")
	}
	if rl.Allow("10.0.0.1") {
		t.Error("запрос сверх burst должен быть отклонён")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("лимиты разных клиентов независимы")
	}

	now = now.Add(time.Second)
	if !rl.Allow("10.0.0.1") {
		t.Error("через секунду токен должен восстановиться")
	}
}

func TestRateLimiter_ForgetsIdleClients(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("10.0.0.1")
	now = now.Add(idleTimeout + cleanupEvery)
	rl.Allow("10.0.0.2")

	rl.mu.Lock()
	_, stale := rl.clients["10.0.0.1"]
	rl.mu.Unlock()
	if stale {
		t.Error("неактивный клиент должен быть удалён")
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth", nil)
		req.RemoteAddr = "192.0.2.7:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("ожидалось [200 429], получено %v", codes)
	}
}
