package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/giffels/mccli/internal/agent"
	"github.com/giffels/mccli/internal/engine"
	"github.com/giffels/mccli/internal/infra"
	"github.com/giffels/mccli/internal/mcservice"
	"github.com/giffels/mccli/internal/sshwrap"
	"github.com/giffels/mccli/internal/transport"
)

var version = "0.5.1"

const usage = `Usage:
    mccli [OPTIONS] ssh [SSH OPTIONS] HOSTNAME [COMMAND]
    mccli [OPTIONS] scp [SCP OPTIONS] SOURCE ... TARGET
    mccli [OPTIONS] info [HOSTNAME]

SSH client wrapper with OIDC-based authentication.

Access Token sources (checked in this order):
    --token TOKEN          pass token directly (env: ACCESS_TOKEN, OIDC, ...)
    --oa-account SHORTNAME name of configured account in oidc-agent (env: OIDC_AGENT_ACCOUNT)
    --iss URL              URL of token issuer (env: OIDC_ISS, OIDC_ISSUER)

motley_cue options:
    --mc-endpoint URL      motley_cue API endpoint. Default URLs are checked in
                           given order: https://HOSTNAME, https://HOSTNAME:8443,
                           http://HOSTNAME:8080
    --insecure             ignore verifying the SSL certificate, NOT RECOMMENDED
    --no-cache             do not cache HTTP requests

Verbosity:
    --log-level LEVEL      either error, warn, info or debug (default error)
    --debug                sets the log level to debug
    --dry-run              print sshpass command and exit

    --version              show the version and exit
    -h, --help             show this message and exit
`

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mccli: %v\n", err)
		os.Exit(1)
	}
}

// toolbox — собранные зависимости, общие для всех подкоманд.
type toolbox struct {
	cfg     *infra.Config
	logger  *zap.Logger
	eng     *engine.Engine
	service *mcservice.Client
	wrapper *sshwrap.Wrapper
}

func run() error {
	flags := pflag.NewFlagSet("mccli", pflag.ContinueOnError)
	flags.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	// Опции после подкоманды принадлежат ssh/scp, не трогаем их
	flags.SetInterspersed(false)

	token := flags.String("token", "", "pass Access Token directly")
	oaAccount := flags.String("oa-account", "", "name of configured account in oidc-agent")
	issuer := flags.String("iss", "", "URL of token issuer")
	mcEndpoint := flags.String("mc-endpoint", "", "motley_cue API endpoint")
	insecure := flags.Bool("insecure", false, "ignore verifying the SSL certificate")
	noCache := flags.Bool("no-cache", false, "do not cache HTTP requests")
	dryRun := flags.Bool("dry-run", false, "print sshpass command and exit")
	logLevel := flags.String("log-level", "", "log level")
	debug := flags.Bool("debug", false, "sets the log level to debug")
	showVersion := flags.Bool("version", false, "show the version and exit")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if *showVersion {
		fmt.Printf("mccli, version %s\n", version)
		return nil
	}
	rest := flags.Args()
	if len(rest) == 0 {
		flags.Usage()
		return fmt.Errorf("missing command: ssh, scp or info")
	}

	// 1. Конфигурация: файл + ENV, флаги командной строки поверх
	cfg, err := infra.LoadConfig()
	if err != nil {
		return err
	}
	if flags.Changed("token") {
		cfg.Token.Value = *token
	}
	if flags.Changed("oa-account") {
		cfg.Token.Account = *oaAccount
	}
	if flags.Changed("iss") {
		cfg.Token.Issuer = *issuer
	}
	if flags.Changed("mc-endpoint") {
		cfg.Endpoint.URL = *mcEndpoint
	}
	if *insecure {
		cfg.Endpoint.Insecure = true
	}
	if *noCache {
		cfg.Cache.Disabled = true
	}
	if *dryRun {
		cfg.DryRun = true
	}
	if flags.Changed("log-level") {
		cfg.Logger.Level = *logLevel
	}
	if *debug {
		cfg.Logger.Level = "debug"
	}

	// 2. Логгер
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	// 3. Транспорт с дисковым кэшем (status/deploy в кэш не попадают)
	var cache *transport.Cache
	if !cfg.Cache.Disabled {
		cache = transport.NewCache(cfg.Cache.Dir, cfg.Cache.ExpireAfter, logger)
	}
	httpClient := transport.NewClient(cfg.Endpoint.Timeout, cfg.Endpoint.Insecure, cache, logger)

	// 4. Сборка ядра
	service := mcservice.NewClient(httpClient, cfg.Endpoint.Insecure, logger)
	oidcAgent := agent.New(cfg.Agent.Socket, cfg.Agent.Timeout, logger)
	opts := []engine.Option{}
	if !cfg.Token.ValidateLength {
		opts = append(opts, engine.WithoutLengthCheck())
	}
	box := &toolbox{
		cfg:     cfg,
		logger:  logger,
		eng:     engine.New(service, oidcAgent, logger, opts...),
		service: service,
		wrapper: sshwrap.NewWrapper(logger, cfg.DryRun),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch rest[0] {
	case "ssh":
		return runSSH(ctx, box, rest[1:])
	case "scp":
		return runSCP(ctx, box, rest[1:])
	case "info":
		return runInfo(ctx, box, rest[1:])
	default:
		flags.Usage()
		return fmt.Errorf("unknown command %q: expected ssh, scp or info", rest[0])
	}
}

// runSSH: discovery → выбор токена → резолв имени → запуск ssh.
func runSSH(ctx context.Context, box *toolbox, sshArgs []string) error {
	if len(sshArgs) == 0 {
		return fmt.Errorf("ssh: missing hostname")
	}

	endpoint, err := discoverEndpoint(ctx, box, sshArgs)
	if err != nil {
		return err
	}
	token, source, err := box.eng.SelectToken(ctx, box.cfg.Token.Value, box.cfg.Token.Account, box.cfg.Token.Issuer, endpoint)
	if err != nil {
		return err
	}
	username, err := box.eng.ResolveUsername(ctx, endpoint, token.Value)
	if err != nil {
		return err
	}
	return box.wrapper.RunSSH(ctx, sshArgs, username, token.Value, source.Command(token.Value))
}

// runSCP: каждый удаленный операнд без явного имени дополняется через
// discovery на его хосте; порядок операндов сохраняется.
func runSCP(ctx context.Context, box *toolbox, scpArgs []string) error {
	opts, operands := sshwrap.SplitArgs(scpArgs)
	if len(operands) < 2 {
		return fmt.Errorf("scp: need at least a source and a target")
	}

	args, creds, err := box.eng.AugmentOperands(ctx, operands, box.cfg.Token.Value, box.cfg.Token.Account, box.cfg.Token.Issuer)
	if err != nil {
		return err
	}
	return box.wrapper.RunSCP(ctx, opts, args, creds)
}

// runInfo печатает самоописание сервиса и, если доступен токен,
// состояние локального аккаунта и требования авторизации.
func runInfo(ctx context.Context, box *toolbox, args []string) error {
	var endpoint string
	var err error
	switch {
	case box.cfg.Endpoint.URL != "":
		endpoint, err = box.eng.DiscoverEndpoint(ctx, box.cfg.Endpoint.URL)
	case len(args) > 0:
		endpoint, err = box.eng.DiscoverFromHost(ctx, args[0])
	default:
		return fmt.Errorf("info: specify a hostname or --mc-endpoint")
	}
	if err != nil {
		return err
	}

	info, err := box.service.Info(ctx, endpoint)
	if err != nil {
		return err
	}
	printJSON("Service info", info)

	// Без какого-либо источника токена info ограничивается самоописанием
	token, _, err := box.eng.SelectToken(ctx, box.cfg.Token.Value, box.cfg.Token.Account, box.cfg.Token.Issuer, endpoint)
	if err != nil {
		box.logger.Info("no token available, skipping account status", zap.Error(err))
		return nil
	}

	status, err := box.eng.StatusString(ctx, endpoint, token.Value)
	if err != nil {
		return err
	}
	fmt.Println(status)

	authz, err := box.service.AuthorisationInfo(ctx, endpoint, token.Value)
	if err != nil {
		return err
	}
	printJSON("Authorisation info", authz)
	return nil
}

// discoverEndpoint выбирает между явным endpoint'ом и discovery по ssh-хосту.
func discoverEndpoint(ctx context.Context, box *toolbox, sshArgs []string) (string, error) {
	if box.cfg.Endpoint.URL != "" {
		return box.eng.DiscoverEndpoint(ctx, box.cfg.Endpoint.URL)
	}
	hostname, err := sshwrap.Hostname(ctx, sshArgs)
	if err != nil {
		return "", err
	}
	return box.eng.DiscoverFromHost(ctx, hostname)
}

func printJSON(title string, value any) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fmt.Printf("%s: %v\n", title, value)
		return
	}
	fmt.Printf("%s:\n%s\n", title, data)
}
