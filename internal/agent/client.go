// Package agent реализует клиент локального oidc-agent: JSON-запросы
// через UNIX-сокет из $OIDC_SOCK. Агент — внешний коллаборатор, который
// хранит и обновляет токены; здесь только получение.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/avast/retry-go/v5"
	"go.uber.org/zap"

	"github.com/giffels/mccli/internal/domain"
)

const applicationHint = "mccli"

// Client общается с oidc-agent через UNIX-сокет.
type Client struct {
	socketPath string
	timeout    time.Duration
	logger     *zap.Logger
}

func New(socketPath string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    timeout,
		logger:     logger.Named("oidc-agent"),
	}
}

// tokenRequest — запрос access_token в протоколе oidc-agent.
type tokenRequest struct {
	Request         string `json:"request"` // всегда "access_token"
	Account         string `json:"account,omitempty"`
	Issuer          string `json:"issuer,omitempty"`
	MinValidPeriod  int    `json:"min_valid_period"`
	ApplicationHint string `json:"application_hint,omitempty"`
}

type tokenResponse struct {
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
	Issuer      string `json:"issuer,omitempty"`
	ExpiresAt   int64  `json:"expires_at,omitempty"`
}

// AccessTokenByAccount запрашивает токен для настроенного аккаунта агента.
func (c *Client) AccessTokenByAccount(ctx context.Context, account string) (domain.AccessToken, error) {
	token, err := c.roundTrip(ctx, tokenRequest{
		Request:         "access_token",
		Account:         account,
		ApplicationHint: applicationHint,
	})
	if err != nil {
		return domain.AccessToken{}, &domain.AgentError{Account: account, Err: err}
	}
	return token, nil
}

// AccessTokenByIssuer запрашивает токен по URL issuer'а: агент сам найдет
// подходящий загруженный аккаунт.
func (c *Client) AccessTokenByIssuer(ctx context.Context, issuer string) (domain.AccessToken, error) {
	token, err := c.roundTrip(ctx, tokenRequest{
		Request:         "access_token",
		Issuer:          issuer,
		ApplicationHint: applicationHint,
	})
	if err != nil {
		return domain.AccessToken{}, &domain.AgentError{Issuer: issuer, Err: err}
	}
	return token, nil
}

// roundTrip выполняет один обмен запрос-ответ. Коннект к сокету ретраится
// коротко: агент мог перезапуститься; сам запрос не повторяется.
func (c *Client) roundTrip(ctx context.Context, req tokenRequest) (domain.AccessToken, error) {
	if c.socketPath == "" {
		return domain.AccessToken{}, errors.New("oidc-agent socket not found, is the agent running? ($OIDC_SOCK is not set)")
	}

	var conn net.Conn
	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(100*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	err := r.Do(func() error {
		var dialErr error
		conn, dialErr = net.DialTimeout("unix", c.socketPath, c.timeout)
		return dialErr
	})
	if err != nil {
		return domain.AccessToken{}, fmt.Errorf("could not connect to oidc-agent at '%s': %w", c.socketPath, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return domain.AccessToken{}, fmt.Errorf("failed to set socket deadline: %w", err)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return domain.AccessToken{}, fmt.Errorf("failed to encode agent request: %w", err)
	}
	c.logger.Debug("sending request to oidc-agent",
		zap.String("account", req.Account), zap.String("issuer", req.Issuer))
	if _, err := conn.Write(payload); err != nil {
		return domain.AccessToken{}, fmt.Errorf("failed to write to oidc-agent socket: %w", err)
	}

	var resp tokenResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return domain.AccessToken{}, fmt.Errorf("failed to decode oidc-agent response: %w", err)
	}
	if resp.Status != "success" {
		return domain.AccessToken{}, fmt.Errorf("oidc-agent: %s", resp.Error)
	}
	if resp.AccessToken == "" {
		return domain.AccessToken{}, errors.New("oidc-agent returned an empty token")
	}

	token := domain.AccessToken{Value: resp.AccessToken}
	if resp.ExpiresAt > 0 {
		token.TimeLeft = resp.ExpiresAt - time.Now().Unix()
		token.HasExpiry = true
	}
	return token, nil
}
