package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/giffels/mccli/internal/domain"
)

// AugmentOperands дополняет операнды scp-команды именами пользователей,
// полученными от motley_cue на каждом хосте. Операнды идут в порядке
// команды (источники, затем цель); порядок сохраняется в выводе.
//
// Для удаленного операнда без явного имени: discovery по хосту → выбор
// токена → резолв имени; операнд переписывается в user@host:path, а токен
// с provenance добавляется в creds. Остальные операнды проходят без
// изменений и в creds ничего не вносят: args и creds выровнены по индексу
// только между собой внутри creds.
func (e *Engine) AugmentOperands(ctx context.Context, operands []domain.Operand, explicitToken, account, issuer string) (args []string, creds []domain.ResolvedCredential, err error) {
	log := e.logger.Named("orchestrator")

	args = make([]string, 0, len(operands))
	for _, operand := range operands {
		if !operand.Remote || operand.User != "" {
			args = append(args, operand.Original)
			continue
		}

		// Удаленный операнд без имени — точно хост под управлением motley_cue
		log.Debug("trying to get username from motley_cue service", zap.String("host", operand.Host))
		endpoint, err := e.DiscoverFromHost(ctx, operand.Host)
		if err != nil {
			return nil, nil, err
		}
		token, source, err := e.SelectToken(ctx, explicitToken, account, issuer, endpoint)
		if err != nil {
			return nil, nil, err
		}
		username, err := e.ResolveUsername(ctx, endpoint, token.Value)
		if err != nil {
			return nil, nil, err
		}

		args = append(args, operand.Unsplit(username))
		creds = append(creds, domain.ResolvedCredential{
			Username:   username,
			Token:      token,
			Provenance: source.Command(token.Value),
		})
	}

	return args, creds, nil
}
