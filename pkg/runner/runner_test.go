package runner

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultipassExecArgv(t *testing.T) {
	tests := []struct {
		name string
		dir  string
		cmd  string
		args []string
		want []string
	}{
		{
			name: "command with working directory",
			dir:  "/home/ubuntu/shim",
			cmd:  "make",
			args: []string{"clean"},
			want: []string{"exec", "vm", "--working-directory", "/home/ubuntu/shim", "--", "make", "clean"},
		},
		{
			name: "no working directory omits the flag",
			cmd:  "which",
			args: []string{"gcc"},
			want: []string{"exec", "vm", "--", "which", "gcc"},
		},
		{
			name: "arguments with spaces stay single vector entries",
			dir:  "/src",
			cmd:  "make",
			args: []string{`DEFAULT_LOADER=\\grubx64.efi`, "VENDOR=a b"},
			want: []string{"exec", "vm", "--working-directory", "/src", "--", "make", `DEFAULT_LOADER=\\grubx64.efi`, "VENDOR=a b"},
		},
	}

	m := &Multipass{Instance: "vm"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.execArgv(tt.dir, tt.cmd, tt.args...)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("execArgv mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLocalRun(t *testing.T) {
	ctx := context.Background()

	t.Run("successful command", func(t *testing.T) {
		l := &Local{}
		require.NoError(t, l.Run(ctx, "", "true"))
	})

	t.Run("failing command propagates error", func(t *testing.T) {
		l := &Local{}
		assert.Error(t, l.Run(ctx, "", "false"))
	})

	t.Run("missing command propagates error", func(t *testing.T) {
		l := &Local{}
		assert.Error(t, l.Run(ctx, "", "shimforge-no-such-tool"))
	})
}

func TestLocalOutputDir(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	l := &Local{}
	out, err := l.Output(ctx, dir, "pwd")
	require.NoError(t, err)
	assert.Equal(t, dir, strings.TrimSpace(out))
}

func TestEchoTracing(t *testing.T) {
	ctx := context.Background()

	t.Run("local traces the argv", func(t *testing.T) {
		var buf bytes.Buffer
		l := &Local{Echo: true, Trace: &buf}
		require.NoError(t, l.Run(ctx, "", "true"))
		assert.Equal(t, "+ true\n", buf.String())
	})

	t.Run("local silent without echo", func(t *testing.T) {
		var buf bytes.Buffer
		l := &Local{Trace: &buf}
		require.NoError(t, l.Run(ctx, "", "true"))
		assert.Empty(t, buf.String())
	})
}

func TestLocalLookPath(t *testing.T) {
	l := &Local{}
	assert.NoError(t, l.LookPath(context.Background(), "sh"))
	assert.Error(t, l.LookPath(context.Background(), "shimforge-no-such-tool"))
}
