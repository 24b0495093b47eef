// Package auth — интроспекция Access Token'ов.
// Токены здесь никогда не верифицируются: подпись проверяет сервис,
// нам нужен только срок жизни, чтобы не отправлять заведомо истекший токен.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/giffels/mccli/internal/domain"
)

// TimeLeft декодирует токен как JWT без проверки подписи и возвращает
// число секунд до истечения. ok=false, если токен не JWT или не несет exp —
// такой токен используется "как есть", свежесть оценить нельзя.
func TimeLeft(token string) (int64, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return 0, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0, false
	}
	return int64(time.Until(exp.Time).Seconds()), true
}

// Inspect строит AccessToken с заполненной информацией о сроке жизни.
func Inspect(value string) domain.AccessToken {
	token := domain.AccessToken{Value: value}
	if timeLeft, ok := TimeLeft(value); ok {
		token.TimeLeft = timeLeft
		token.HasExpiry = true
	}
	return token
}
