// Package sshwrap — обвязка вокруг бинарников ssh/scp: разбор операндов,
// извлечение имени хоста и запуск процесса с подстановкой токена.
package sshwrap

import (
	"strings"

	"github.com/giffels/mccli/internal/domain"
)

// scp-опции, принимающие отдельный аргумент.
var scpOptsWithArg = map[byte]bool{
	'c': true, 'D': true, 'F': true, 'i': true, 'J': true,
	'l': true, 'o': true, 'P': true, 'S': true, 'X': true,
}

// ParseOperand разбирает один операнд scp. Операнд удаленный, если содержит
// ':' до первого '/': форма [user@]host:path. Всё остальное — локальный путь.
func ParseOperand(arg string) domain.Operand {
	op := domain.Operand{Original: arg}

	colon := strings.Index(arg, ":")
	if colon <= 0 {
		return op
	}
	head := arg[:colon]
	if strings.Contains(head, "/") {
		return op
	}

	op.Remote = true
	op.Path = arg[colon+1:]
	if at := strings.LastIndex(head, "@"); at >= 0 {
		op.User = head[:at]
		op.Host = head[at+1:]
	} else {
		op.Host = head
	}
	return op
}

// SplitArgs делит аргументы scp на опции и операнды, сохраняя порядок
// операндов (источники, затем цель).
func SplitArgs(args []string) (opts []string, operands []domain.Operand) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if len(arg) >= 2 && arg[0] == '-' {
			opts = append(opts, arg)
			// форма "-o Value" с отдельным аргументом
			if len(arg) == 2 && scpOptsWithArg[arg[1]] && i+1 < len(args) {
				i++
				opts = append(opts, args[i])
			}
			continue
		}
		operands = append(operands, ParseOperand(arg))
	}
	return opts, operands
}
