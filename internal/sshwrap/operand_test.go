package sshwrap

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/giffels/mccli/internal/domain"
)

func TestParseOperand(t *testing.T) {
	tests := []struct {
		name string
		arg  string
		want domain.Operand
	}{
		{
			name: "remote without user",
			arg:  "example.org:data/file.txt",
			want: domain.Operand{Original: "example.org:data/file.txt", Host: "example.org", Path: "data/file.txt", Remote: true},
		},
		{
			name: "remote with user",
			arg:  "alice@example.org:/tmp/x",
			want: domain.Operand{Original: "alice@example.org:/tmp/x", Host: "example.org", User: "alice", Path: "/tmp/x", Remote: true},
		},
		{
			name: "remote home dir",
			arg:  "example.org:",
			want: domain.Operand{Original: "example.org:", Host: "example.org", Remote: true},
		},
		{
			name: "local relative path",
			arg:  "file.txt",
			want: domain.Operand{Original: "file.txt"},
		},
		{
			name: "local path with colon after slash",
			arg:  "./dir/weird:name",
			want: domain.Operand{Original: "./dir/weird:name"},
		},
		{
			name: "leading colon stays local",
			arg:  ":oops",
			want: domain.Operand{Original: ":oops"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseOperand(tc.arg))
		})
	}
}

func TestUnsplit(t *testing.T) {
	op := ParseOperand("example.org:data/file.txt")
	assert.Equal(t, "bob@example.org:data/file.txt", op.Unsplit("bob"))

	local := ParseOperand("file.txt")
	assert.Equal(t, "file.txt", local.Unsplit("bob"))
}

func TestSplitArgs(t *testing.T) {
	opts, operands := SplitArgs([]string{
		"-r", "-P", "2222", "-o", "StrictHostKeyChecking=no",
		"src.example.org:in.txt", "alice@dst.example.org:out.txt", "local.txt",
	})

	assert.Equal(t, []string{"-r", "-P", "2222", "-o", "StrictHostKeyChecking=no"}, opts)
	if assert.Len(t, operands, 3) {
		assert.True(t, operands[0].Remote)
		assert.Empty(t, operands[0].User)
		assert.Equal(t, "alice", operands[1].User)
		assert.False(t, operands[2].Remote)
	}
}

func TestSplitArgsCombinedFlagValue(t *testing.T) {
	opts, operands := SplitArgs([]string{"-P2222", "host:file", "dest"})
	assert.Equal(t, []string{"-P2222"}, opts)
	assert.Len(t, operands, 2)
}
