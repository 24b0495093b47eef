package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/giffels/mccli/internal/domain"
)

// fakeAgent — oidc-agent, у которого загружены только заданные аккаунты/issuer'ы.
type fakeAgent struct {
	byAccount map[string]string
	byIssuer  map[string]string

	accountCalls []string
	issuerCalls  []string
}

func (f *fakeAgent) AccessTokenByAccount(_ context.Context, account string) (domain.AccessToken, error) {
	f.accountCalls = append(f.accountCalls, account)
	if value, ok := f.byAccount[account]; ok {
		return domain.AccessToken{Value: value}, nil
	}
	return domain.AccessToken{}, &domain.AgentError{Account: account, Err: errors.New("account not loaded")}
}

func (f *fakeAgent) AccessTokenByIssuer(_ context.Context, issuer string) (domain.AccessToken, error) {
	f.issuerCalls = append(f.issuerCalls, issuer)
	if value, ok := f.byIssuer[issuer]; ok {
		return domain.AccessToken{Value: value}, nil
	}
	return domain.AccessToken{}, &domain.AgentError{Issuer: issuer, Err: errors.New("no account configured for issuer")}
}

// fakeService — identity-mapping сервис с фиксированными ответами.
type fakeService struct {
	probes    []string
	probeHits map[string]string // кандидат → валидированный endpoint
	probeErr  error

	ops      []string
	opsErr   error
	opsCalls int
}

func (f *fakeService) Probe(_ context.Context, candidate string) (string, bool, error) {
	f.probes = append(f.probes, candidate)
	if f.probeErr != nil {
		return "", false, f.probeErr
	}
	if endpoint, ok := f.probeHits[candidate]; ok {
		return endpoint, true, nil
	}
	return "", false, nil
}

func (f *fakeService) SupportedOPs(_ context.Context, _ string) ([]string, error) {
	f.opsCalls++
	return f.ops, f.opsErr
}

func (f *fakeService) UserStatus(_ context.Context, _, _ string) (domain.AccountStatus, error) {
	return domain.AccountStatus{}, errors.New("not implemented")
}

func (f *fakeService) Deploy(_ context.Context, _, _ string) (domain.DeployResult, error) {
	return domain.DeployResult{}, errors.New("not implemented")
}

func newTestEngine(service ServiceClient, agent TokenAgent, opts ...Option) *Engine {
	return New(service, agent, zap.NewNop(), opts...)
}

// signedToken выпускает JWT с заданным сроком жизни.
func signedToken(t *testing.T, ttl time.Duration) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(ttl).Unix(),
		"iss": "https://aai.egi.eu/oidc",
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestSelectTokenExplicitWinsAndShortCircuits(t *testing.T) {
	agent := &fakeAgent{
		byAccount: map[string]string{"egi": "agent-token"},
		byIssuer:  map[string]string{"https://example.org": "issuer-token"},
	}
	service := &fakeService{ops: []string{"https://example.org"}}
	eng := newTestEngine(service, agent)

	explicit := signedToken(t, time.Hour)
	token, source, err := eng.SelectToken(context.Background(), explicit, "egi", "https://example.org", "https://mc.example.org")
	require.NoError(t, err)

	assert.Equal(t, explicit, token.Value)
	assert.True(t, token.HasExpiry)
	assert.Positive(t, token.TimeLeft)
	assert.Equal(t, domain.SourceExplicit, source.Kind)
	// Последующие источники не опрашиваются
	assert.Empty(t, agent.accountCalls)
	assert.Empty(t, agent.issuerCalls)
	assert.Zero(t, service.opsCalls)
}

func TestSelectTokenOpaqueExplicitAcceptedWithCaveat(t *testing.T) {
	eng := newTestEngine(&fakeService{}, &fakeAgent{})

	token, source, err := eng.SelectToken(context.Background(), "opaque-token", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", token.Value)
	assert.False(t, token.HasExpiry)
	assert.Equal(t, domain.SourceExplicit, source.Kind)
}

func TestSelectTokenExpiredExplicitFallsThrough(t *testing.T) {
	agent := &fakeAgent{byAccount: map[string]string{"egi": "agent-token"}}
	eng := newTestEngine(&fakeService{}, agent)

	token, source, err := eng.SelectToken(context.Background(), signedToken(t, -time.Hour), "egi", "", "")
	require.NoError(t, err)
	assert.Equal(t, "agent-token", token.Value)
	assert.Equal(t, domain.SourceAgentAccount, source.Kind)
	assert.Equal(t, []string{"egi"}, agent.accountCalls)
}

func TestSelectTokenExpiredVisibleInFinalFailure(t *testing.T) {
	eng := newTestEngine(&fakeService{}, &fakeAgent{})

	_, _, err := eng.SelectToken(context.Background(), signedToken(t, -time.Hour), "", "", "")
	var noToken *domain.NoTokenError
	require.ErrorAs(t, err, &noToken)
	assert.True(t, noToken.Expired)
	assert.Contains(t, err.Error(), "expired")
	assert.Contains(t, err.Error(), "--help")
}

func TestSelectTokenNoSourcesAtAll(t *testing.T) {
	eng := newTestEngine(&fakeService{}, &fakeAgent{})

	_, _, err := eng.SelectToken(context.Background(), "", "", "", "")
	var noToken *domain.NoTokenError
	require.ErrorAs(t, err, &noToken)
	assert.False(t, noToken.Expired)
	assert.Contains(t, err.Error(), "no Access Token found")
}

func TestSelectTokenAgentAccountErrorIsNonFatal(t *testing.T) {
	agent := &fakeAgent{byIssuer: map[string]string{"https://example.org": "issuer-token"}}
	eng := newTestEngine(&fakeService{}, agent)

	token, source, err := eng.SelectToken(context.Background(), "", "missing", "https://example.org", "")
	require.NoError(t, err)
	assert.Equal(t, "issuer-token", token.Value)
	assert.Equal(t, domain.SourceAgentIssuer, source.Kind)
	// Оба источника были опрошены по порядку
	assert.Equal(t, []string{"missing"}, agent.accountCalls)
	assert.Equal(t, []string{"https://example.org"}, agent.issuerCalls)
}

func TestSelectTokenIssuerSchemeNormalized(t *testing.T) {
	agent := &fakeAgent{byIssuer: map[string]string{"https://example.org/oidc": "issuer-token"}}
	eng := newTestEngine(&fakeService{}, agent)

	token, source, err := eng.SelectToken(context.Background(), "", "", "example.org/oidc", "")
	require.NoError(t, err)
	assert.Equal(t, "issuer-token", token.Value)
	assert.Equal(t, "https://example.org/oidc", source.Issuer)
}

func TestSelectTokenServiceSoleIssuer(t *testing.T) {
	agent := &fakeAgent{byIssuer: map[string]string{"https://sole.example.org": "sole-token"}}
	service := &fakeService{ops: []string{"https://sole.example.org"}}
	eng := newTestEngine(service, agent)

	token, source, err := eng.SelectToken(context.Background(), "", "", "", "https://mc.example.org")
	require.NoError(t, err)
	assert.Equal(t, "sole-token", token.Value)
	assert.Equal(t, domain.SourceServiceIssuer, source.Kind)
	assert.Equal(t, "`oidc-token https://sole.example.org`", source.Command(token.Value))
}

func TestSelectTokenMultipleServiceIssuersSkipped(t *testing.T) {
	agent := &fakeAgent{byIssuer: map[string]string{"https://a.example.org": "a", "https://b.example.org": "b"}}
	service := &fakeService{ops: []string{"https://a.example.org", "https://b.example.org"}}
	eng := newTestEngine(service, agent)

	_, _, err := eng.SelectToken(context.Background(), "", "", "", "https://mc.example.org")
	var noToken *domain.NoTokenError
	require.ErrorAs(t, err, &noToken)
	// Неоднозначность не разрешается наугад
	assert.Empty(t, agent.issuerCalls)
}

func TestSelectTokenZeroServiceIssuersSkipped(t *testing.T) {
	service := &fakeService{ops: nil}
	eng := newTestEngine(service, &fakeAgent{})

	_, _, err := eng.SelectToken(context.Background(), "", "", "", "https://mc.example.org")
	var noToken *domain.NoTokenError
	require.ErrorAs(t, err, &noToken)
	assert.Equal(t, 1, service.opsCalls)
}

func TestSelectTokenTooLong(t *testing.T) {
	long := strings.Repeat("x", 1100)

	eng := newTestEngine(&fakeService{}, &fakeAgent{})
	_, _, err := eng.SelectToken(context.Background(), long, "", "", "")
	var tooLong *domain.TokenTooLongError
	require.ErrorAs(t, err, &tooLong)
	assert.Equal(t, 1100, tooLong.Length)
	assert.Contains(t, err.Error(), "1024")
}

func TestSelectTokenTooLongAppliesToAgentSources(t *testing.T) {
	agent := &fakeAgent{byAccount: map[string]string{"egi": strings.Repeat("y", 2048)}}
	eng := newTestEngine(&fakeService{}, agent)

	_, _, err := eng.SelectToken(context.Background(), "", "egi", "", "")
	var tooLong *domain.TokenTooLongError
	require.ErrorAs(t, err, &tooLong)
}

func TestSelectTokenLengthCheckDisabled(t *testing.T) {
	long := strings.Repeat("x", 1100)
	eng := newTestEngine(&fakeService{}, &fakeAgent{}, WithoutLengthCheck())

	token, _, err := eng.SelectToken(context.Background(), long, "", "", "")
	require.NoError(t, err)
	assert.Equal(t, long, token.Value)
}

func TestProvenanceReflectsSource(t *testing.T) {
	assert.Equal(t, "'tok'", domain.ExplicitSource().Command("tok"))
	assert.Equal(t, "`oidc-token egi`", domain.AgentAccountSource("egi").Command("tok"))
	assert.Equal(t, "`oidc-token https://example.org`", domain.AgentIssuerSource("https://example.org").Command("tok"))
}
