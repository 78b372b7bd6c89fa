package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shimforge/shimforge/pkg/config"
)

// execRoot runs the root command against args and returns the resulting
// error. Output is captured so usage text does not leak into test logs.
func execRoot(t *testing.T, args ...string) error {
	t.Helper()
	var buf bytes.Buffer
	RootCmd.SetOut(&buf)
	RootCmd.SetErr(&buf)
	// nil would make cobra fall back to os.Args
	RootCmd.SetArgs(append([]string{}, args...))
	defer func() {
		outputRoot, sourceRoot, configFile = "", "", ""
		echoTrace, verbose, quiet = false, false, false
	}()
	return RootCmd.Execute()
}

func TestRootWithoutCommand(t *testing.T) {
	err := execRoot(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no command specified")
}

func TestUnrecognizedCommand(t *testing.T) {
	err := execRoot(t, "bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestFlagMissingValue(t *testing.T) {
	err := execRoot(t, "-r")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flag needs an argument")
}

func TestUnrecognizedFlag(t *testing.T) {
	err := execRoot(t, "--bogus", "setup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag")
}

func TestBuildConfigFlagOverrides(t *testing.T) {
	flags := RootCmd.PersistentFlags()
	require.NoError(t, flags.Set("output-root", "/tmp/out"))
	require.NoError(t, flags.Set("echo", "true"))
	defer func() {
		flags.Set("echo", "false")
		outputRoot, echoTrace = "", false
		// Changed() state cannot be reset on pflag, so later tests must
		// set their own values rather than rely on defaults.
	}()

	cfg, err := buildConfig(RootCmd)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/out", cfg.OutputRoot)
	assert.Equal(t, "/tmp/out/shim", cfg.SourceRoot)
	assert.True(t, cfg.Echo)
	assert.Equal(t, config.DefaultInstance, cfg.Instance)
	assert.Equal(t, config.DefaultUpstream, cfg.Upstream)
}
