package engine

import (
	"context"
	"regexp"

	"go.uber.org/zap"

	"github.com/giffels/mccli/internal/domain"
)

var schemeRe = regexp.MustCompile(`^https?://`)

// probeCandidate — один кандидат в упорядоченной цепочке discovery.
type probeCandidate struct {
	url            string
	warnUnverified bool // предупредить о незашифрованном канале при успехе
}

// DiscoverEndpoint валидирует endpoint, заданный пользователем.
// С явной схемой кандидат один; без схемы пробуем http, затем https —
// именно в этом порядке, чтобы TLS-ошибка https не маскировала
// работающий http-endpoint.
func (e *Engine) DiscoverEndpoint(ctx context.Context, mcEndpoint string) (string, error) {
	log := e.logger.Named("discovery")

	var candidates []probeCandidate
	if schemeRe.MatchString(mcEndpoint) {
		candidates = []probeCandidate{{url: mcEndpoint}}
	} else {
		log.Warn("no URL schema specified for mc-endpoint, trying http and https")
		candidates = []probeCandidate{
			{url: "http://" + mcEndpoint},
			{url: "https://" + mcEndpoint},
		}
	}

	return e.probeChain(ctx, mcEndpoint, candidates)
}

// DiscoverFromHost ищет сервис на ssh-хосте, когда явный endpoint не задан.
// Порядок проб — контракт: сначала шифрованные порты по умолчанию,
// потом незашифрованный 8080 с явным предупреждением.
func (e *Engine) DiscoverFromHost(ctx context.Context, host string) (string, error) {
	e.logger.Named("discovery").Info("looking for motley_cue service on ssh host", zap.String("host", host))
	candidates := []probeCandidate{
		{url: "https://" + host},
		{url: "https://" + host + ":8443"},
		{url: "http://" + host + ":8080", warnUnverified: true},
	}
	return e.probeChain(ctx, host, candidates)
}

// probeChain опрашивает кандидатов по порядку; выигрывает первый,
// чье самоописание несет сигнатуру сервиса. TLS-ошибка всплывает сразу.
func (e *Engine) probeChain(ctx context.Context, target string, candidates []probeCandidate) (string, error) {
	log := e.logger.Named("discovery")

	probed := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		probed = append(probed, candidate.url)
		endpoint, found, err := e.service.Probe(ctx, candidate.url)
		if err != nil {
			return "", err
		}
		if !found {
			continue
		}
		if candidate.warnUnverified {
			log.Warn("using unencrypted motley_cue endpoint", zap.String("endpoint", endpoint))
		}
		return endpoint, nil
	}

	return "", &domain.EndpointNotFoundError{Target: target, Probed: probed}
}
