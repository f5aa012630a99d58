// Пакет cache — LRU-кэш метаданных файлов с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
//
// Кэш не синхронизирует себя с диском: согласованность обеспечивает
// FileStore, который заполняет и инвалидирует записи только под
// per-token блокировкой.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/fileshare/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_meta_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш метаданных.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_meta_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша метаданных.",
	})
)

// MetaCache — LRU-кэш FileRecord по токену с автоматическим TTL.
type MetaCache struct {
	lru *expirable.LRU[string, model.FileRecord]
}

// New создаёт кэш с указанным максимальным размером и TTL.
// Возвращает nil при maxSize <= 0 — методы nil-кэша безопасны и ничего не делают.
func New(maxSize int, ttl time.Duration) *MetaCache {
	if maxSize <= 0 {
		return nil
	}
	return &MetaCache{lru: expirable.NewLRU[string, model.FileRecord](maxSize, nil, ttl)}
}

// Get возвращает копию записи по токену.
// Возвращает (запись, true) при hit или (nil, false) при miss.
func (c *MetaCache) Get(token string) (*model.FileRecord, bool) {
	if c == nil {
		return nil, false
	}
	val, ok := c.lru.Get(token)
	if !ok {
		cacheMissesTotal.Inc()
		return nil, false
	}
	cacheHitsTotal.Inc()
	return &val, true
}

// Set добавляет или обновляет запись. Хранится копия.
func (c *MetaCache) Set(rec *model.FileRecord) {
	if c == nil || rec == nil {
		return
	}
	c.lru.Add(rec.Token, *rec)
}

// Delete удаляет запись (инвалидация при удалении файла).
func (c *MetaCache) Delete(token string) {
	if c == nil {
		return
	}
	c.lru.Remove(token)
}

// Len возвращает текущее количество записей.
func (c *MetaCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
