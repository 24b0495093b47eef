package engine

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/giffels/mccli/internal/domain"
)

// Готовые команды oidc-gen для известных issuer'ов, с рекомендуемыми scope.
var oidcGenCommands = map[string]string{
	"aai.egi.eu/oidc":           `oidc-gen --pub --iss https://aai.egi.eu/oidc --scope "openid profile email offline_access eduperson_entitlement eduperson_scoped_affiliation eduperson_unique_id" egi`,
	"wlcg.cloud.cnaf.infn.it":   `oidc-gen --pub --issuer https://wlcg.cloud.cnaf.infn.it --scope "openid profile offline_access eduperson_entitlement eduperson_scoped_affiliation wlcg.groups wlcg" wlcg`,
	"login.helmholtz.de/oauth2": `oidc-gen --pub --iss https://login.helmholtz.de/oauth2 --scope "openid profile email offline_access eduperson_entitlement eduperson_scoped_affiliation eduperson_unique_id" helmholtz`,
	"accounts.google.com":       `oidc-gen --pub --iss https://accounts.google.com/ --flow device --scope max google`,
}

// canonicalURL убирает из URL протокол, www-префикс и завершающие слэши.
func canonicalURL(raw string) string {
	u := strings.ToLower(raw)
	u = strings.TrimPrefix(u, "http://")
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "www.")
	return strings.TrimSuffix(u, "/")
}

// oidcGenCommand возвращает команду oidc-gen для issuer'а,
// с подсказкой scope для известных провайдеров.
func oidcGenCommand(issuer string) string {
	if cmd, ok := oidcGenCommands[canonicalURL(issuer)]; ok {
		return cmd
	}
	return fmt.Sprintf("oidc-gen --iss %s", issuer)
}

// tokenAttempt — один источник токена в упорядоченной цепочке.
// ok=false означает "источник не дал токен, идем дальше".
type tokenAttempt func(ctx context.Context) (domain.AccessToken, domain.TokenSource, bool)

// SelectToken реализует цепочку приоритетов источников Access Token'а:
//
//  1. токен, переданный напрямую (если не истек);
//  2. аккаунт oidc-agent;
//  3. issuer, заданный пользователем;
//  4. единственный issuer, поддерживаемый сервисом (endpoint уже известен).
//
// Первый успешный источник выигрывает, дальнейшие не опрашиваются.
// Ошибки отдельных источников не фатальны; фатально только исчерпание всех.
func (e *Engine) SelectToken(ctx context.Context, explicitToken, account, issuer, endpoint string) (domain.AccessToken, domain.TokenSource, error) {
	log := e.logger.Named("selector")
	expired := false

	chain := []tokenAttempt{
		// 1. Явно переданный токен
		func(ctx context.Context) (domain.AccessToken, domain.TokenSource, bool) {
			if explicitToken == "" {
				log.Info("no access token provided")
				return domain.AccessToken{}, domain.TokenSource{}, false
			}
			timeLeft, ok := e.timeLeft(explicitToken)
			if !ok {
				log.Warn("could not get expiration date from provided token, it might not be a JWT. Using it anyway...")
				log.Debug("access token", zap.String("token", explicitToken))
				return domain.AccessToken{Value: explicitToken}, domain.ExplicitSource(), true
			}
			if timeLeft > 0 {
				log.Info("using provided token", zap.Int64("valid_for_seconds", timeLeft))
				log.Debug("access token", zap.String("token", explicitToken))
				return domain.AccessToken{Value: explicitToken, TimeLeft: timeLeft, HasExpiry: true}, domain.ExplicitSource(), true
			}
			// Истекший токен запоминаем, но не сдаемся: дальше еще источники
			expired = true
			log.Warn("token is expired, looking for another source for Access Token",
				zap.Int64("expired_for_seconds", -timeLeft))
			log.Debug("access token", zap.String("token", explicitToken))
			return domain.AccessToken{}, domain.TokenSource{}, false
		},
		// 2. Аккаунт oidc-agent
		func(ctx context.Context) (domain.AccessToken, domain.TokenSource, bool) {
			if account == "" {
				log.Info("no oidc-agent account provided")
				return domain.AccessToken{}, domain.TokenSource{}, false
			}
			log.Info("using oidc-agent account", zap.String("account", account))
			token, err := e.agent.AccessTokenByAccount(ctx, account)
			if err != nil {
				log.Warn(err.Error())
				log.Warn(fmt.Sprintf("are you sure this account is loaded? Load it with:\n    oidc-add %s", account))
				log.Warn(fmt.Sprintf("are you sure this account is configured? Create it with:\n    oidc-gen %s", account))
				return domain.AccessToken{}, domain.TokenSource{}, false
			}
			return token, domain.AgentAccountSource(account), true
		},
		// 3. Issuer, заданный пользователем
		func(ctx context.Context) (domain.AccessToken, domain.TokenSource, bool) {
			if issuer == "" {
				log.Info("no issuer URL provided")
				return domain.AccessToken{}, domain.TokenSource{}, false
			}
			iss := issuer
			if !strings.HasPrefix(iss, "http") {
				iss = "https://" + iss
				log.Warn("the issuer URL you provided does not contain protocol information, assuming HTTPS",
					zap.String("issuer", iss))
			}
			log.Info("using issuer", zap.String("issuer", iss))
			token, err := e.agent.AccessTokenByIssuer(ctx, iss)
			if err != nil {
				log.Warn(err.Error())
				log.Warn(fmt.Sprintf("are you sure the issuer URL is correct or that you have an account configured "+
					"with oidc-agent for this issuer? Create it with:\n    %s", oidcGenCommand(iss)))
				return domain.AccessToken{}, domain.TokenSource{}, false
			}
			return token, domain.AgentIssuerSource(iss), true
		},
		// 4. Единственный issuer, который поддерживает сервис
		func(ctx context.Context) (domain.AccessToken, domain.TokenSource, bool) {
			if endpoint == "" {
				return domain.AccessToken{}, domain.TokenSource{}, false
			}
			log.Info("trying to get list of supported AT issuers from service", zap.String("endpoint", endpoint))
			ops, err := e.service.SupportedOPs(ctx, endpoint)
			if err != nil {
				log.Warn("failed to get supported issuers from service", zap.Error(err))
				return domain.AccessToken{}, domain.TokenSource{}, false
			}
			switch {
			case len(ops) == 1:
				iss := ops[0]
				log.Info("using the only issuer supported on service to retrieve token from oidc-agent",
					zap.String("issuer", iss))
				token, err := e.agent.AccessTokenByIssuer(ctx, iss)
				if err != nil {
					log.Warn(err.Error())
					log.Warn(fmt.Sprintf("if you don't have an oidc-agent account configured for this issuer, "+
						"create it with:\n    %s", oidcGenCommand(iss)))
					return domain.AccessToken{}, domain.TokenSource{}, false
				}
				return token, domain.ServiceIssuerSource(iss), true
			case len(ops) > 1:
				log.Warn("multiple issuers supported on service, I don't know which one to use:\n    " +
					strings.Join(ops, "\n    "))
			}
			return domain.AccessToken{}, domain.TokenSource{}, false
		},
	}

	for _, attempt := range chain {
		token, source, ok := attempt(ctx)
		if !ok {
			continue
		}
		// Пост-условие поверх любого источника: слишком длинный токен
		// не переживет SSH-аутентификацию
		if e.validateLength && len(token.Value) > maxTokenLength {
			return domain.AccessToken{}, domain.TokenSource{}, &domain.TokenTooLongError{
				Length: len(token.Value),
				Limit:  maxTokenLength,
			}
		}
		return token, source, nil
	}

	return domain.AccessToken{}, domain.TokenSource{}, &domain.NoTokenError{Expired: expired}
}
