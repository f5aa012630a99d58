// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bigkaa/fileshare/internal/config"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// serviceName — имя сервиса в ответах health.
const serviceName = "fileshare"

// DiskUsageFunc возвращает total, used, available в байтах.
type DiskUsageFunc func() (total, used, available int64, err error)

// HealthHandler реализует health endpoints: /health/live, /health/ready.
type HealthHandler struct {
	version string
	// dirs — директории, которые должны быть доступны на запись (files/, meta/)
	dirs      map[string]string
	diskUsage DiskUsageFunc
}

// NewHealthHandler создаёт обработчик health endpoints.
// dirs — имя проверки → путь к директории. diskUsage может быть nil.
func NewHealthHandler(dirs map[string]string, diskUsage DiskUsageFunc) *HealthHandler {
	return &HealthHandler{
		version:   config.Version,
		dirs:      dirs,
		diskUsage: diskUsage,
	}
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   serviceName,
	}

	writeJSON(w, http.StatusOK, resp)
}

// HealthReady обрабатывает GET /health/ready.
// Проверяет, что директории блобов и метаданных доступны на запись.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK

	checks := make(map[string]any, len(h.dirs))
	for name, dir := range h.dirs {
		check := checkWritable(dir)
		if check["status"] != "ok" {
			overallStatus = statusFail
			httpStatus = http.StatusServiceUnavailable
		}
		checks[name] = check
	}

	resp := map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   serviceName,
		"checks":    checks,
	}

	// Ёмкость диска — информационно, на статус не влияет
	if h.diskUsage != nil {
		if total, used, available, err := h.diskUsage(); err == nil {
			resp["disk"] = map[string]int64{
				"total":     total,
				"used":      used,
				"available": available,
			}
		}
	}

	writeJSON(w, httpStatus, resp)
}

// checkWritable проверяет доступность директории на запись.
func checkWritable(dir string) map[string]any {
	testFile := filepath.Join(dir, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return map[string]any{
			"status":  statusFail,
			"message": "Директория недоступна для записи: " + err.Error(),
		}
	}
	_ = os.Remove(testFile)

	return map[string]any{
		"status": "ok",
	}
}
