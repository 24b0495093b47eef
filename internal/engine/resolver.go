package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/giffels/mccli/internal/domain"
)

// ResolveUsername превращает состояние удаленного аккаунта в локальное имя
// пользователя, при необходимости выполняя deploy.
//
// Машина состояний:
//   - suspended/limited: имя берется из сообщения статуса, deploy не зовется;
//   - pending: всегда отказ, deploy не зовется;
//   - unknown/not_deployed/deployed: deploy (создание или обновление);
//     упавший deploy из deployed деградирует к имени из статуса;
//   - любое другое состояние: UnexpectedStateError.
//
// Повторный вызов с валидным токеном и deployed-аккаунтом идемпотентен.
func (e *Engine) ResolveUsername(ctx context.Context, endpoint, token string) (string, error) {
	log := e.logger.Named("resolver")

	status, err := e.service.UserStatus(ctx, endpoint, token)
	if err != nil {
		return "", err
	}
	log.Info("state of your local account", zap.String("state", string(status.State)))

	switch status.State {
	case domain.StateSuspended:
		log.Warn("your account on service is suspended, you might not be able to login. " + domain.InfoString)
		return usernameFromStatus(status)

	case domain.StateLimited:
		log.Warn("your account on service has limited capabilities, but you might still be able to login. " + domain.InfoString)
		return usernameFromStatus(status)

	case domain.StatePending:
		return "", &domain.AccountPendingError{}

	case domain.StateUnknown, domain.StateNotDeployed, domain.StateDeployed:
		switch status.State {
		case domain.StateUnknown:
			log.Warn("your account on service is in an undefined state, will try redeploying...")
		case domain.StateNotDeployed:
			log.Info("creating local account...")
		default:
			log.Info("updating local account...")
		}

		result, err := e.service.Deploy(ctx, endpoint, token)
		if err != nil {
			if status.State == domain.StateDeployed {
				// Аккаунт уже существует: деградируем к имени из статуса,
				// а не валим весь вызов
				log.Warn("failed on redeploy, some of your user information might be outdated", zap.Error(err))
				return usernameFromStatus(status)
			}
			return "", err
		}
		if result.Credentials.SSHUser == "" {
			return "", &domain.DeployError{Raw: "deploy response carries no credentials.ssh_user"}
		}
		log.Debug("deploy result", zap.String("ssh_user", result.Credentials.SSHUser),
			zap.String("state", string(result.State)))
		return result.Credentials.SSHUser, nil

	default:
		return "", &domain.UnexpectedStateError{State: status.State}
	}
}

// usernameFromStatus извлекает имя из сообщения статуса с защитой от
// сообщений неожиданной формы.
func usernameFromStatus(status domain.AccountStatus) (string, error) {
	username, ok := status.Username()
	if !ok {
		return "", &domain.ResolutionError{
			State:   status.State,
			Message: fmt.Sprintf("could not parse local username from service message %q", status.Message),
		}
	}
	return username, nil
}

// StatusString возвращает человекочитаемое описание состояния аккаунта
// для команды info, без каких-либо deploy-вызовов.
func (e *Engine) StatusString(ctx context.Context, endpoint, token string) (string, error) {
	status, err := e.service.UserStatus(ctx, endpoint, token)
	if err != nil {
		return "", err
	}

	withUsername := func(head string) string {
		if username, ok := status.Username(); ok {
			return head + "\nLocal username: " + username
		}
		return head
	}

	switch status.State {
	case domain.StateSuspended:
		return withUsername("Your account on service is suspended, you might not be able to login. " + domain.InfoString), nil
	case domain.StateLimited:
		return withUsername("Your account on service has limited capabilities, but you might still be able to login. " + domain.InfoString), nil
	case domain.StatePending:
		return "Your account creation on service is still pending approval. " + domain.InfoString, nil
	case domain.StateUnknown:
		return "Your account on service is in an undefined state. " + domain.InfoString, nil
	case domain.StateNotDeployed:
		return "Your account on service is not deployed, but it will be created on the first login if authorised.", nil
	case domain.StateDeployed:
		return withUsername("Your account on service is deployed."), nil
	default:
		return "", &domain.UnexpectedStateError{State: status.State}
	}
}
