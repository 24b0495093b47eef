package sshwrap

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"slices"
)

var hostnamePattern = regexp.MustCompile(`(?m)^hostname\s+(\S+)\s*$`)

// Hostname извлекает реальное имя хоста из аргументов ssh, запуская
// `ssh -G`: ssh сам разворачивает алиасы из ~/.ssh/config.
// -G добавляется в начало, чтобы не столкнуться с аргументами удаленной
// команды (например `ssh host ls -l`).
func Hostname(ctx context.Context, sshArgs []string) (string, error) {
	args := sshArgs
	if !slices.Contains(args, "-G") {
		args = append([]string{"-G"}, args...)
	}

	out, err := exec.CommandContext(ctx, "ssh", args...).Output()
	if err != nil {
		return "", fmt.Errorf("error trying to get real hostname from ssh command 'ssh %v': %w", args, err)
	}
	match := hostnamePattern.FindSubmatch(out)
	if match == nil {
		return "", fmt.Errorf("could not find hostname in output of 'ssh %v'", args)
	}
	return string(match[1]), nil
}
