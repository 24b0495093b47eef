package domain

import (
	"fmt"
	"strings"
)

// Таксономия ошибок движка. Каждая терминальная ошибка несет текст
// с конкретным действием для пользователя: какую команду запустить,
// какой флаг передать.

// NoTokenError — ни один источник токена не дал результата.
// Expired различает случай "переданный токен истек" от "источников не было".
type NoTokenError struct {
	Expired bool
}

func (e *NoTokenError) Error() string {
	if e.Expired {
		return "the provided Access Token is expired. Have you considered using 'oidc-agent' to always have valid tokens?\n" +
			"    https://github.com/indigo-dc/oidc-agent\n" +
			"Try 'mccli --help' for help on specifying the Access Token source"
	}
	return "no Access Token found.\n" +
		"Try 'mccli --help' for help on specifying the Access Token source"
}

// TokenTooLongError — токен не пролезает в механизмы аутентификации SSH.
type TokenTooLongError struct {
	Length int
	Limit  int
}

func (e *TokenTooLongError) Error() string {
	return fmt.Sprintf("sorry, your token is too long (%d > %d) and cannot be used for SSH authentication. "+
		"Please ask your OP admin if they can release shorter tokens", e.Length, e.Limit)
}

// EndpointNotFoundError — ни один кандидат не прошел проверку сигнатуры сервиса.
type EndpointNotFoundError struct {
	Target string   // URL или hostname, как задал пользователь
	Probed []string // проверенные кандидаты, в порядке опроса
}

func (e *EndpointNotFoundError) Error() string {
	if len(e.Probed) > 0 {
		return fmt.Sprintf("no motley_cue service found at '%s' (probed: %s). "+
			"Please specify the endpoint via --mc-endpoint", e.Target, strings.Join(e.Probed, ", "))
	}
	return fmt.Sprintf("no motley_cue service found at '%s'. Please specify a valid motley_cue endpoint", e.Target)
}

// TLSVerificationError никогда не гасится цепочкой discovery:
// это ошибка конфигурации пользователя, а не отсутствие сервиса.
type TLSVerificationError struct {
	URL string
	Err error
}

func (e *TLSVerificationError) Error() string {
	return fmt.Sprintf("SSL certificate verification failed for '%s': %v. "+
		"Use --insecure if you wish to ignore SSL certificate verification", e.URL, e.Err)
}

func (e *TLSVerificationError) Unwrap() error { return e.Err }

// AccountPendingError — создание аккаунта ждет одобрения, деплой не выполняется.
type AccountPendingError struct{}

func (e *AccountPendingError) Error() string {
	return "your account creation on service is still pending approval. " + InfoString
}

// ResolutionError — сервис вернул ошибку на get_status.
type ResolutionError struct {
	StatusCode int
	State      AccountState // пусто, если тело не структурировано
	Message    string
	Raw        string // сырое тело для неструктурированных ответов
}

func (e *ResolutionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("failed on get_status: [HTTP %d] [state=%s] %s", e.StatusCode, e.State, e.Message)
	}
	return fmt.Sprintf("failed on get_status: [HTTP %d] %s", e.StatusCode, e.Raw)
}

// DeployError — сервис вернул ошибку на deploy из состояния, где это фатально.
type DeployError struct {
	StatusCode int
	State      AccountState
	Message    string
	Raw        string
}

func (e *DeployError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("failed on deploy: [HTTP %d] [state=%s] %s", e.StatusCode, e.State, e.Message)
	}
	return fmt.Sprintf("failed on deploy: [HTTP %d] %s", e.StatusCode, e.Raw)
}

// UnexpectedStateError — сервис вернул состояние вне закрытого набора.
// Против конформного сервиса недостижимо.
type UnexpectedStateError struct {
	State AccountState
}

func (e *UnexpectedStateError) Error() string {
	return fmt.Sprintf("weird, this should never have happened... Your account is in state: %s. %s", e.State, InfoString)
}

// AgentError — ошибка общения с oidc-agent. На уровне отдельного источника
// токена не фатальна: селектор логирует и идет к следующему источнику.
type AgentError struct {
	Account string // что именно запрашивали: аккаунт
	Issuer  string // или issuer
	Err     error
}

func (e *AgentError) Error() string {
	if e.Account != "" {
		return fmt.Sprintf("failed to get Access Token for oidc-agent account '%s': %v", e.Account, e.Err)
	}
	return fmt.Sprintf("failed to get Access Token from oidc-agent for issuer '%s': %v", e.Issuer, e.Err)
}

func (e *AgentError) Unwrap() error { return e.Err }

// InfoString — стандартная приписка к сообщениям о состоянии аккаунта.
const InfoString = "Please contact an administrator for more information."
