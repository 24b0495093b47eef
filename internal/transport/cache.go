package transport

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Cache — дисковый кэш HTTP-ответов, советующий (best-effort):
// любая ошибка чтения/записи деградирует в обычный некэшированный запрос.
// TTL настраивается по суффиксу пути: get_status и deploy всегда протухшие,
// чтобы после деплоя не отдать устаревшее состояние аккаунта.
type Cache struct {
	dir         string
	expireAfter time.Duration
	pathTTL     map[string]time.Duration // суффикс пути → TTL
	logger      *zap.Logger
}

type cacheEntry struct {
	StatusCode int       `json:"status_code"`
	Body       []byte    `json:"body"`
	StoredAt   time.Time `json:"stored_at"`
}

// NewCache создает кэш в dir. Если директорию создать не удалось,
// возвращает nil: вызывающий работает без кэша, команда просто медленнее.
func NewCache(dir string, expireAfter time.Duration, logger *zap.Logger) *Cache {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		logger.Warn("something went wrong when initialising cache, will not cache HTTP requests. "+
			"Executing command might be slower", zap.Error(err))
		return nil
	}
	c := &Cache{
		dir:         dir,
		expireAfter: expireAfter,
		pathTTL: map[string]time.Duration{
			"/user/get_status": 0,
			"/user/deploy":     0,
		},
		logger: logger.Named("cache"),
	}
	c.logger.Debug("HTTP requests cache installed", zap.String("dir", dir))
	return c
}

// ttlFor возвращает TTL для URL: сперва правила по суффиксу пути, потом дефолт.
func (c *Cache) ttlFor(u *url.URL) time.Duration {
	for suffix, ttl := range c.pathTTL {
		if strings.HasSuffix(u.Path, suffix) {
			return ttl
		}
	}
	return c.expireAfter
}

// Get возвращает свежий закэшированный ответ или nil.
func (c *Cache) Get(rawURL string, headers map[string]string) *cacheEntry {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	ttl := c.ttlFor(u)
	if ttl <= 0 {
		return nil
	}

	data, err := os.ReadFile(c.entryPath(rawURL, headers))
	if err != nil {
		return nil
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil
	}
	if time.Since(entry.StoredAt) > ttl {
		return nil
	}
	return &entry
}

// Put сохраняет ответ, если для этого URL кэширование не отключено.
func (c *Cache) Put(rawURL string, headers map[string]string, statusCode int, body []byte) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return
	}
	if c.ttlFor(u) <= 0 {
		return
	}

	entry := cacheEntry{StatusCode: statusCode, Body: body, StoredAt: time.Now()}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := os.WriteFile(c.entryPath(rawURL, headers), data, 0o600); err != nil {
		c.logger.Debug("could not write cache entry", zap.Error(err))
	}
}

// entryPath строит имя файла из хэша URL и заголовков,
// чтобы ответы под разными bearer-токенами не смешивались.
func (c *Cache) entryPath(rawURL string, headers map[string]string) string {
	h := sha256.New()
	h.Write([]byte("GET "))
	h.Write([]byte(rawURL))
	for _, key := range []string{"Authorization", "Accept"} {
		if val, ok := headers[key]; ok {
			h.Write([]byte("\n" + key + ": " + val))
		}
	}
	return filepath.Join(c.dir, hex.EncodeToString(h.Sum(nil))+".json")
}
