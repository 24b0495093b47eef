package sshwrap

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/giffels/mccli/internal/domain"
)

const tokenPrompt = "Access Token"

// Wrapper запускает ssh/scp, подставляя Access Token при запросе пароля.
// Подстановка делается через sshpass; без него команда запускается
// интерактивно, а токен печатается пользователю заранее.
type Wrapper struct {
	logger *zap.Logger
	dryRun bool
}

func NewWrapper(logger *zap.Logger, dryRun bool) *Wrapper {
	return &Wrapper{logger: logger.Named("sshwrap"), dryRun: dryRun}
}

// forwardingArgs пробрасывает сокет oidc-agent на удаленный хост,
// чтобы там тоже работали oidc-token и друзья.
func (w *Wrapper) forwardingArgs() []string {
	sock := os.Getenv("OIDC_SOCK")
	if sock == "" {
		return nil
	}
	remote := fmt.Sprintf("/tmp/oidc-forward-%s", uuid.NewString()[:8])
	return []string{"-R", remote + ":" + sock}
}

// RunSSH запускает ssh от имени username, отдавая token при запросе.
// provenance печатается вместо токена в dry-run режиме.
func (w *Wrapper) RunSSH(ctx context.Context, sshArgs []string, username, token, provenance string) error {
	args := append([]string{"-l", username}, append(w.forwardingArgs(), sshArgs...)...)
	command := "ssh " + strings.Join(args, " ")

	if w.dryRun {
		if provenance == "" {
			provenance = fmt.Sprintf("'%s'", token)
		}
		fmt.Printf("SSHPASS=%s sshpass -P '%s' -e %s\n", provenance, tokenPrompt, command)
		return nil
	}
	return w.runWithToken(ctx, "ssh", args, token)
}

// RunSCP запускает scp с уже дополненными операндами. При одном токене он
// подставляется автоматически; при нескольких токены печатаются в порядке
// запросов, а процесс идет интерактивно.
func (w *Wrapper) RunSCP(ctx context.Context, opts, operandArgs []string, creds []domain.ResolvedCredential) error {
	args := append(append([]string{}, opts...), operandArgs...)
	command := "scp " + strings.Join(args, " ")

	if w.dryRun {
		switch len(creds) {
		case 0:
			fmt.Println(command)
		case 1:
			fmt.Printf("SSHPASS=%s sshpass -P '%s' -e %s\n", creds[0].Provenance, tokenPrompt, command)
		default:
			fmt.Println("# you'll need to input the tokens below when prompted, in this order:")
			for _, cred := range creds {
				fmt.Printf("echo %s\n", cred.Provenance)
			}
			fmt.Println(command)
		}
		return nil
	}

	switch len(creds) {
	case 0:
		return w.runInteractive(ctx, "scp", args)
	case 1:
		return w.runWithToken(ctx, "scp", args, creds[0].Token.Value)
	default:
		fmt.Println("# input the tokens below when prompted, in this order:")
		for _, cred := range creds {
			fmt.Printf("#   %s\n", cred.Provenance)
		}
		return w.runInteractive(ctx, "scp", args)
	}
}

// runWithToken исполняет команду под sshpass, передавая токен через ENV,
// чтобы он не светился в списке процессов.
func (w *Wrapper) runWithToken(ctx context.Context, name string, args []string, token string) error {
	if _, err := exec.LookPath("sshpass"); err != nil {
		w.logger.Warn("sshpass not found in PATH, running interactively; paste the Access Token when prompted")
		return w.runInteractive(ctx, name, args)
	}

	full := append([]string{"-P", tokenPrompt, "-e", name}, args...)
	cmd := exec.CommandContext(ctx, "sshpass", full...)
	cmd.Env = append(os.Environ(), "SSHPASS="+token)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	w.logger.Debug("running command", zap.String("command", name+" "+strings.Join(args, " ")))
	return cmd.Run()
}

func (w *Wrapper) runInteractive(ctx context.Context, name string, args []string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
