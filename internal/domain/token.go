package domain

import "fmt"

// AccessToken — непрозрачный bearer-токен OIDC.
// Значение принадлежит вызывающему (или oidc-agent), живет один запуск команды.
type AccessToken struct {
	Value     string
	TimeLeft  int64 // секунды до истечения; валидно только при HasExpiry
	HasExpiry bool  // false, если токен не JWT или exp не декодируется
}

// TokenSourceKind перечисляет источники токена в порядке приоритета.
type TokenSourceKind string

const (
	SourceExplicit      TokenSourceKind = "explicit"       // токен передан напрямую (флаг или ENV)
	SourceAgentAccount  TokenSourceKind = "agent-account"  // аккаунт, настроенный в oidc-agent
	SourceAgentIssuer   TokenSourceKind = "agent-issuer"   // issuer, заданный пользователем
	SourceServiceIssuer TokenSourceKind = "service-issuer" // единственный issuer, который поддерживает сервис
)

// TokenSource описывает, откуда был получен токен.
// Используется только для provenance-строки, само значение токена здесь не хранится.
type TokenSource struct {
	Kind    TokenSourceKind
	Account string // для SourceAgentAccount
	Issuer  string // для SourceAgentIssuer и SourceServiceIssuer
}

func ExplicitSource() TokenSource {
	return TokenSource{Kind: SourceExplicit}
}

func AgentAccountSource(account string) TokenSource {
	return TokenSource{Kind: SourceAgentAccount, Account: account}
}

func AgentIssuerSource(issuer string) TokenSource {
	return TokenSource{Kind: SourceAgentIssuer, Issuer: issuer}
}

func ServiceIssuerSource(issuer string) TokenSource {
	return TokenSource{Kind: SourceServiceIssuer, Issuer: issuer}
}

// Command возвращает команду, которой пользователь может воспроизвести
// получение токена: либо сам токен в кавычках, либо вызов oidc-token.
func (s TokenSource) Command(token string) string {
	switch s.Kind {
	case SourceAgentAccount:
		return fmt.Sprintf("`oidc-token %s`", s.Account)
	case SourceAgentIssuer, SourceServiceIssuer:
		return fmt.Sprintf("`oidc-token %s`", s.Issuer)
	default:
		return fmt.Sprintf("'%s'", token)
	}
}

// ResolvedCredential — результат оркестратора для одного операнда:
// локальное имя пользователя, использованный токен и provenance-строка.
type ResolvedCredential struct {
	Username   string
	Token      AccessToken
	Provenance string
}
