// Пакет config — загрузка и валидация конфигурации сервиса обмена файлами
// из переменных окружения.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// defaultEnvFile — файл окружения, читаемый при старте, если ENV_FILE не задан.
const defaultEnvFile = ".env"

// Config содержит все параметры конфигурации.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Корневая директория данных: files/ и meta/
	DataDir string
	// Время жизни файла после последнего обращения
	FileTTL time.Duration
	// Время жизни токена доступа
	TokenExpiration time.Duration
	// Включена ли проверка токена на защищённых endpoints
	AuthEnabled bool
	// Максимальный размер тела запроса загрузки в байтах
	MaxUploadSize int64
	// Период RetentionSweeper
	CleanupInterval time.Duration
	// Задержка перед первым проходом RetentionSweeper
	CleanupInitialDelay time.Duration
	// Период удаления истёкших токенов
	TokenCleanupInterval time.Duration
	// Интервал сверки files/ и meta/
	ReconcileInterval time.Duration
	// Возраст, после которого файл без пары считается брошенным
	ReconcileMinAge time.Duration
	// Размер LRU-кэша метаданных (0 — кэш выключен)
	MetaCacheSize int
	// Время жизни записи в кэше метаданных
	MetaCacheTTL time.Duration
	// Лимит выдачи токенов: запросов в секунду на IP
	AuthRateLimit float64
	// Допустимый всплеск запросов выдачи токенов
	AuthRateBurst int
	// Директория статического веб-интерфейса (опционально)
	PublicDir string
	// Доверять X-Forwarded-Proto/Host (сервис за reverse proxy)
	TrustProxyHeaders bool
	// Путь к TLS сертификату
	TLSCert string
	// Путь к TLS приватному ключу
	TLSKey string
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// TLSEnabled сообщает, заданы ли сертификат и ключ.
func (c *Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

// Load загружает конфигурацию из переменных окружения, валидирует
// значения и возвращает Config или ошибку.
// Перед чтением подгружается .env (или файл из ENV_FILE), при этом
// уже заданные переменные окружения не перезаписываются.
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	cfg := &Config{}

	// PORT — порт HTTP-сервера (по умолчанию 8080)
	port, err := getEnvInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("PORT: значение %d вне допустимого диапазона 1-65535", port)
	}
	cfg.Port = port

	cfg.DataDir = getEnvDefault("DATA_DIR", "data")

	// DAYS_TO_LIVE — срок хранения в днях
	days, err := getEnvInt("DAYS_TO_LIVE", 30)
	if err != nil {
		return nil, fmt.Errorf("DAYS_TO_LIVE: %w", err)
	}
	if days <= 0 {
		return nil, fmt.Errorf("DAYS_TO_LIVE: значение должно быть положительным, получено %d", days)
	}
	cfg.FileTTL = time.Duration(days) * 24 * time.Hour

	// TOKEN_EXPIRATION_HOURS — время жизни токена доступа в часах
	hours, err := getEnvInt("TOKEN_EXPIRATION_HOURS", 24)
	if err != nil {
		return nil, fmt.Errorf("TOKEN_EXPIRATION_HOURS: %w", err)
	}
	if hours <= 0 {
		return nil, fmt.Errorf("TOKEN_EXPIRATION_HOURS: значение должно быть положительным, получено %d", hours)
	}
	cfg.TokenExpiration = time.Duration(hours) * time.Hour

	cfg.AuthEnabled, err = getEnvBool("AUTH_ENABLED", true)
	if err != nil {
		return nil, fmt.Errorf("AUTH_ENABLED: %w", err)
	}

	// MAX_UPLOAD_SIZE — по умолчанию 100 MiB
	cfg.MaxUploadSize, err = getEnvInt64("MAX_UPLOAD_SIZE", 100<<20)
	if err != nil {
		return nil, fmt.Errorf("MAX_UPLOAD_SIZE: %w", err)
	}
	if cfg.MaxUploadSize <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_SIZE: значение должно быть положительным")
	}

	if cfg.CleanupInterval, err = getEnvPositiveDuration("CLEANUP_INTERVAL", 12*time.Hour); err != nil {
		return nil, err
	}
	cfg.CleanupInitialDelay, err = getEnvDuration("CLEANUP_INITIAL_DELAY", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CLEANUP_INITIAL_DELAY: %w", err)
	}
	if cfg.CleanupInitialDelay < 0 {
		return nil, fmt.Errorf("CLEANUP_INITIAL_DELAY: значение не может быть отрицательным")
	}
	if cfg.TokenCleanupInterval, err = getEnvPositiveDuration("TOKEN_CLEANUP_INTERVAL", time.Hour); err != nil {
		return nil, err
	}

	// RECONCILE_INTERVAL — интервал сверки (по умолчанию 6h)
	if cfg.ReconcileInterval, err = getEnvPositiveDuration("RECONCILE_INTERVAL", 6*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ReconcileMinAge, err = getEnvPositiveDuration("RECONCILE_MIN_AGE", time.Hour); err != nil {
		return nil, err
	}

	// META_CACHE_SIZE — 0 выключает кэш
	cfg.MetaCacheSize, err = getEnvInt("META_CACHE_SIZE", 1024)
	if err != nil {
		return nil, fmt.Errorf("META_CACHE_SIZE: %w", err)
	}
	if cfg.MetaCacheSize < 0 {
		return nil, fmt.Errorf("META_CACHE_SIZE: значение не может быть отрицательным")
	}
	if cfg.MetaCacheTTL, err = getEnvPositiveDuration("META_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}

	cfg.AuthRateLimit, err = getEnvFloat("AUTH_RATE_LIMIT", 1)
	if err != nil {
		return nil, fmt.Errorf("AUTH_RATE_LIMIT: %w", err)
	}
	if cfg.AuthRateLimit <= 0 {
		return nil, fmt.Errorf("AUTH_RATE_LIMIT: значение должно быть положительным")
	}
	cfg.AuthRateBurst, err = getEnvInt("AUTH_RATE_BURST", 5)
	if err != nil {
		return nil, fmt.Errorf("AUTH_RATE_BURST: %w", err)
	}
	if cfg.AuthRateBurst < 1 {
		return nil, fmt.Errorf("AUTH_RATE_BURST: значение должно быть не меньше 1")
	}

	cfg.PublicDir = getEnvDefault("PUBLIC_DIR", "")

	cfg.TrustProxyHeaders, err = getEnvBool("TRUST_PROXY_HEADERS", false)
	if err != nil {
		return nil, fmt.Errorf("TRUST_PROXY_HEADERS: %w", err)
	}

	// TLS_CERT и TLS_KEY задаются только вместе
	cfg.TLSCert = getEnvDefault("TLS_CERT", "")
	cfg.TLSKey = getEnvDefault("TLS_KEY", "")
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, fmt.Errorf("TLS_CERT и TLS_KEY должны быть заданы вместе")
	}

	// LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	// LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	if cfg.ShutdownTimeout, err = getEnvPositiveDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile подгружает файл окружения. Отсутствие файла по умолчанию
// не ошибка, отсутствие явно указанного в ENV_FILE — ошибка.
func loadEnvFile() error {
	path, explicit := os.LookupEnv("ENV_FILE")
	if !explicit || path == "" {
		path = defaultEnvFile
		explicit = false
	}

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("ENV_FILE: загрузка %s: %w", path, err)
	}
	return nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное число: %q", val)
	}
	return f, nil
}

// getEnvBool принимает true/false/1/0 в любом регистре.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(strings.ToLower(val))
	if err != nil {
		return false, fmt.Errorf("некорректное логическое значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 12h)", val)
	}
	return d, nil
}

// getEnvPositiveDuration — getEnvDuration с проверкой d > 0.
// Ошибка уже содержит имя переменной.
func getEnvPositiveDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	d, err := getEnvDuration(key, defaultVal)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: значение должно быть положительным, получено %s", key, d)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
