package engine

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/giffels/mccli/internal/domain"
	"github.com/giffels/mccli/internal/mcservice"
	"github.com/giffels/mccli/internal/mcservice/mcservicetest"
	"github.com/giffels/mccli/internal/sshwrap"
	"github.com/giffels/mccli/internal/transport"
)

// hostService направляет discovery-пробы одного хоста на фикстуру:
// реальные порты 443/8443/8080 в тестах недоступны.
type hostService struct {
	*mcservice.Client
	host     string
	endpoint string
	probes   []string
}

func (h *hostService) Probe(_ context.Context, candidate string) (string, bool, error) {
	h.probes = append(h.probes, candidate)
	parsed, err := url.Parse(candidate)
	if err != nil {
		return "", false, nil
	}
	if parsed.Hostname() == h.host && parsed.Scheme == "https" && parsed.Port() == "" {
		return h.endpoint, true, nil
	}
	return "", false, nil
}

func orchestratorEngine(t *testing.T) (*Engine, *mcservicetest.Server, *hostService) {
	t.Helper()
	srv := mcservicetest.New()
	t.Cleanup(srv.Close)

	httpClient := transport.NewClient(3*time.Second, false, nil, zap.NewNop())
	service := &hostService{
		Client:   mcservice.NewClient(httpClient, false, zap.NewNop()),
		host:     "mc.example.org",
		endpoint: srv.URL,
	}
	agent := &fakeAgent{byAccount: map[string]string{"egi": "agent-token"}}
	return New(service, agent, zap.NewNop()), srv, service
}

func TestAugmentOperandsResolvesRemoteWithoutUser(t *testing.T) {
	eng, srv, _ := orchestratorEngine(t)
	srv.SSHUser = "alice01"

	operands := []domain.Operand{
		sshwrap.ParseOperand("mc.example.org:data/in.txt"),
		sshwrap.ParseOperand("out.txt"),
	}

	args, creds, err := eng.AugmentOperands(context.Background(), operands, "", "egi", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"alice01@mc.example.org:data/in.txt", "out.txt"}, args)
	require.Len(t, creds, 1)
	assert.Equal(t, "alice01", creds[0].Username)
	assert.Equal(t, "agent-token", creds[0].Token.Value)
	assert.Equal(t, "`oidc-token egi`", creds[0].Provenance)
}

func TestAugmentOperandsPassesThroughExplicitUserAndLocal(t *testing.T) {
	eng, srv, service := orchestratorEngine(t)
	srv.SSHUser = "alice01"

	operands := []domain.Operand{
		sshwrap.ParseOperand("root@mc.example.org:/etc/motd"),
		sshwrap.ParseOperand("./local/dir"),
		sshwrap.ParseOperand("mc.example.org:dest"),
	}

	args, creds, err := eng.AugmentOperands(context.Background(), operands, "", "egi", "")
	require.NoError(t, err)

	// Порядок операндов сохранен; тронут только последний
	assert.Equal(t, []string{"root@mc.example.org:/etc/motd", "./local/dir", "alice01@mc.example.org:dest"}, args)
	require.Len(t, creds, 1)
	// Discovery выполнялся только для операнда без имени
	assert.Equal(t, []string{"https://mc.example.org"}, service.probes)
}

func TestAugmentOperandsDiscoveryFailureAborts(t *testing.T) {
	eng, _, service := orchestratorEngine(t)
	service.host = "elsewhere.example.org"

	operands := []domain.Operand{
		sshwrap.ParseOperand("mc.example.org:file"),
		sshwrap.ParseOperand("dest"),
	}

	_, _, err := eng.AugmentOperands(context.Background(), operands, "", "egi", "")
	var notFound *domain.EndpointNotFoundError
	require.ErrorAs(t, err, &notFound)
}
