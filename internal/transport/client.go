package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Response — результат одного GET-запроса.
type Response struct {
	StatusCode int
	Body       []byte
	FromCache  bool
}

// Getter — транспортная способность движка: один ограниченный по времени GET.
// Реализация с кэшем подменяется в тестах на httptest-фикстуру.
type Getter interface {
	Get(ctx context.Context, url string, headers map[string]string) (*Response, error)
}

// Client выполняет GET-запросы с жестким таймаутом и опциональным кэшем.
// Ретраев нет: единственные "повторы" в системе — это упорядоченные
// цепочки кандидатов discovery и селектора токенов.
type Client struct {
	http   *http.Client
	cache  *Cache // nil = без кэша
	logger *zap.Logger
}

// NewClient строит транспорт. insecure=true отключает проверку TLS-сертификата.
func NewClient(timeout time.Duration, insecure bool, cache *Cache, logger *zap.Logger) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Client{
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		cache:  cache,
		logger: logger.Named("http"),
	}
}

// Get выполняет запрос, обслуживая его из кэша, когда это разрешено TTL-правилами.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	if c.cache != nil {
		if entry := c.cache.Get(url, headers); entry != nil {
			c.logger.Debug("using cached response", zap.String("url", url))
			return &Response{StatusCode: entry.StatusCode, Body: entry.Body, FromCache: true}, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	for key, val := range headers {
		req.Header.Set(key, val)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", url, err)
	}

	if c.cache != nil && resp.StatusCode == http.StatusOK {
		c.cache.Put(url, headers, resp.StatusCode, body)
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// IsTLSError распознает ошибку проверки TLS-сертификата.
// Discovery обязан отличать ее от "сервиса тут нет": это проблема
// конфигурации пользователя и она всплывает сразу, без фолбэка.
func IsTLSError(err error) bool {
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}
	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return true
	}
	var hostnameErr x509.HostnameError
	if errors.As(err, &hostnameErr) {
		return true
	}
	var invalidErr x509.CertificateInvalidError
	return errors.As(err, &invalidErr)
}
