// Package engine — ядро mccli: выбор источника Access Token'а,
// обнаружение endpoint'а motley_cue и превращение состояния удаленного
// аккаунта в конкретное локальное имя пользователя.
package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/giffels/mccli/internal/domain"
	"github.com/giffels/mccli/internal/infra/auth"
)

// Токены длиннее этого не проходят через механизмы аутентификации SSH.
const maxTokenLength = 1024

// ServiceClient — поверхность identity-mapping сервиса, нужная движку.
type ServiceClient interface {
	Probe(ctx context.Context, candidate string) (endpoint string, found bool, err error)
	SupportedOPs(ctx context.Context, endpoint string) ([]string, error)
	UserStatus(ctx context.Context, endpoint, token string) (domain.AccountStatus, error)
	Deploy(ctx context.Context, endpoint, token string) (domain.DeployResult, error)
}

// TokenAgent — локальный oidc-agent как непрозрачная способность.
type TokenAgent interface {
	AccessTokenByAccount(ctx context.Context, account string) (domain.AccessToken, error)
	AccessTokenByIssuer(ctx context.Context, issuer string) (domain.AccessToken, error)
}

// Engine связывает селектор токенов, discovery и резолвер аккаунта.
// Никакого общего мутабельного состояния между операндами: все зависимости
// внедряются и безопасны для последовательного переиспользования.
type Engine struct {
	service        ServiceClient
	agent          TokenAgent
	logger         *zap.Logger
	timeLeft       func(token string) (int64, bool)
	validateLength bool
}

type Option func(*Engine)

// WithoutLengthCheck отключает проверку длины токена (пост-условие селектора).
func WithoutLengthCheck() Option {
	return func(e *Engine) { e.validateLength = false }
}

func New(service ServiceClient, agent TokenAgent, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		service:        service,
		agent:          agent,
		logger:         logger.Named("engine"),
		timeLeft:       auth.TimeLeft,
		validateLength: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
