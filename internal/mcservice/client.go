// Package mcservice — HTTP-поверхность сервиса motley_cue, который
// отображает федеративную идентичность (bearer-токен) в локальный аккаунт
// и умеет создавать его по требованию.
package mcservice

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/giffels/mccli/internal/domain"
	"github.com/giffels/mccli/internal/transport"
)

// Signature — точная строка самоописания сервиса. Endpoint считается
// валидным только при дословном совпадении.
const Signature = "This is the user API for mapping remote identities to local identities."

// Client выполняет запросы к motley_cue поверх транспортной способности.
type Client struct {
	transport transport.Getter
	insecure  bool // проверка TLS отключена; влияет только на предупреждения
	logger    *zap.Logger
}

func NewClient(getter transport.Getter, insecure bool, logger *zap.Logger) *Client {
	return &Client{
		transport: getter,
		insecure:  insecure,
		logger:    logger.Named("mcservice"),
	}
}

// serviceInfo — ответ на / и /info.
type serviceInfo struct {
	Description  string   `json:"description"`
	SupportedOPs []string `json:"supported OPs"`
}

// Probe делает один GET корня кандидата и проверяет сигнатуру сервиса.
// Возвращает валидированный endpoint (возможно, переписанный на FQDN хоста).
// Любая транспортная ошибка, кроме TLS, означает "сервиса здесь нет"
// (found=false, err=nil); ошибка проверки TLS — жесткий отказ.
func (c *Client) Probe(ctx context.Context, candidate string) (string, bool, error) {
	c.logger.Info("looking for motley_cue service", zap.String("url", candidate))

	endpoint := c.canonicalize(candidate)

	resp, err := c.transport.Get(ctx, endpoint, nil)
	if err != nil {
		if transport.IsTLSError(err) {
			c.logger.Info("SSL certificate verification failed", zap.String("url", endpoint))
			return "", false, &domain.TLSVerificationError{URL: endpoint, Err: err}
		}
		c.logger.Debug("nothing here", zap.String("url", endpoint), zap.Error(err))
		return "", false, nil
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("nothing here", zap.String("url", endpoint), zap.Int("status", resp.StatusCode))
		return "", false, nil
	}

	if c.insecure {
		c.logger.Warn("InsecureRequestWarning: unverified HTTPS request is being made. "+
			"Adding certificate verification is strongly advised", zap.String("url", endpoint))
	}

	var info serviceInfo
	if err := json.Unmarshal(resp.Body, &info); err != nil || info.Description != Signature {
		c.logger.Debug("response does not match service signature", zap.String("url", endpoint))
		return "", false, nil
	}

	c.logger.Info("...FOUND IT!", zap.String("endpoint", endpoint))
	return endpoint, true, nil
}

// canonicalize переписывает хост кандидата на его полное (FQDN) имя,
// если оно отличается. Ошибки резолва не фатальны: остается исходный URL.
func (c *Client) canonicalize(candidate string) string {
	parsed, err := url.Parse(candidate)
	if err != nil || parsed.Hostname() == "" {
		return candidate
	}
	host := parsed.Hostname()
	if net.ParseIP(host) != nil {
		return candidate
	}
	cname, err := net.LookupCNAME(host)
	if err != nil {
		return candidate
	}
	fqdn := strings.TrimSuffix(cname, ".")
	if fqdn == "" || strings.EqualFold(fqdn, host) {
		return candidate
	}
	if port := parsed.Port(); port != "" {
		parsed.Host = net.JoinHostPort(fqdn, port)
	} else {
		parsed.Host = fqdn
	}
	rewritten := parsed.String()
	c.logger.Info("using FQDN for host", zap.String("endpoint", rewritten))
	return rewritten
}

// SupportedOPs возвращает список issuer'ов, которые поддерживает сервис.
func (c *Client) SupportedOPs(ctx context.Context, endpoint string) ([]string, error) {
	resp, err := c.transport.Get(ctx, endpoint+"/info", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get service info: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get service info: HTTP %d", resp.StatusCode)
	}
	var info serviceInfo
	if err := json.Unmarshal(resp.Body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse service info: %w", err)
	}
	return info.SupportedOPs, nil
}

// Info возвращает сырое самоописание сервиса (/info) для команды info.
func (c *Client) Info(ctx context.Context, endpoint string) (map[string]any, error) {
	resp, err := c.transport.Get(ctx, endpoint+"/info", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get service info: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get service info: HTTP %d", resp.StatusCode)
	}
	var out map[string]any
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse service info: %w", err)
	}
	return out, nil
}

// AuthorisationInfo возвращает требования авторизации для issuer'а токена.
func (c *Client) AuthorisationInfo(ctx context.Context, endpoint, token string) (map[string]any, error) {
	resp, err := c.transport.Get(ctx, endpoint+"/info/authorisation", bearer(token))
	if err != nil {
		return nil, fmt.Errorf("failed to get authorisation info from service: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get authorisation info from service: HTTP %d", resp.StatusCode)
	}
	var out map[string]any
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse authorisation info: %w", err)
	}
	return out, nil
}

// UserStatus запрашивает состояние локального аккаунта.
// Транспортная ошибка и не-200 ответ дают ResolutionError с разобранной
// деталью, когда тело структурировано как {state, message}.
func (c *Client) UserStatus(ctx context.Context, endpoint, token string) (domain.AccountStatus, error) {
	resp, err := c.transport.Get(ctx, endpoint+"/user/get_status", bearer(token))
	if err != nil {
		return domain.AccountStatus{}, &domain.ResolutionError{Raw: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return domain.AccountStatus{}, resolutionError(resp)
	}
	var status domain.AccountStatus
	if err := json.Unmarshal(resp.Body, &status); err != nil {
		return domain.AccountStatus{}, &domain.ResolutionError{StatusCode: resp.StatusCode, Raw: string(resp.Body)}
	}
	return status, nil
}

// Deploy создает или обновляет локальный аккаунт для идентичности токена.
func (c *Client) Deploy(ctx context.Context, endpoint, token string) (domain.DeployResult, error) {
	resp, err := c.transport.Get(ctx, endpoint+"/user/deploy", bearer(token))
	if err != nil {
		return domain.DeployResult{}, &domain.DeployError{Raw: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return domain.DeployResult{}, deployError(resp)
	}
	var result domain.DeployResult
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return domain.DeployResult{}, &domain.DeployError{StatusCode: resp.StatusCode, Raw: string(resp.Body)}
	}
	return result, nil
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// resolutionError разбирает тело ошибки: структурированный {state, message}
// дает точную деталь, иначе остается сырой статус и тело.
func resolutionError(resp *transport.Response) *domain.ResolutionError {
	var detail domain.AccountStatus
	if err := json.Unmarshal(resp.Body, &detail); err == nil && detail.Message != "" {
		return &domain.ResolutionError{StatusCode: resp.StatusCode, State: detail.State, Message: detail.Message}
	}
	return &domain.ResolutionError{StatusCode: resp.StatusCode, Raw: string(resp.Body)}
}

func deployError(resp *transport.Response) *domain.DeployError {
	var detail domain.AccountStatus
	if err := json.Unmarshal(resp.Body, &detail); err == nil && detail.Message != "" {
		return &domain.DeployError{StatusCode: resp.StatusCode, State: detail.State, Message: detail.Message}
	}
	return &domain.DeployError{StatusCode: resp.StatusCode, Raw: string(resp.Body)}
}
