// Package runner abstracts where external commands execute: directly on
// the host, or inside a Multipass VM. Operations are written against the
// Runner interface so the same step sequence works for both strategies.
//
// Commands are always built as argument vectors. Nothing in this package
// goes through a shell, so there is no quoting or escaping to get wrong.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

// Runner executes external commands in a working directory.
type Runner interface {
	// Run executes the command with stdout/stderr streamed to the user.
	// dir may be empty to run in the default working directory.
	Run(ctx context.Context, dir, name string, args ...string) error

	// Output executes the command and returns its stdout.
	Output(ctx context.Context, dir, name string, args ...string) (string, error)

	// LookPath reports whether the tool is available on the execution
	// target.
	LookPath(ctx context.Context, tool string) error
}

// Local runs commands as host processes.
type Local struct {
	// Echo traces every command to Trace (stderr by default) before it
	// runs.
	Echo  bool
	Trace io.Writer
}

func (l *Local) trace(argv []string) {
	if !l.Echo {
		return
	}
	w := l.Trace
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintln(w, "+ "+strings.Join(argv, " "))
}

func (l *Local) Run(ctx context.Context, dir, name string, args ...string) error {
	l.trace(append([]string{name}, args...))
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "%s failed", name)
	}
	return nil
}

func (l *Local) Output(ctx context.Context, dir, name string, args ...string) (string, error) {
	l.trace(append([]string{name}, args...))
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", errors.Wrapf(err, "%s failed", name)
	}
	return string(out), nil
}

func (l *Local) LookPath(_ context.Context, tool string) error {
	_, err := exec.LookPath(tool)
	return err
}

// Multipass runs every command inside a named VM instance via
// `multipass exec`, in the requested working directory inside the guest.
type Multipass struct {
	Instance string
	Echo     bool
	Trace    io.Writer
}

// execArgv builds the full multipass argument vector for a guest command.
func (m *Multipass) execArgv(dir, name string, args ...string) []string {
	argv := []string{"exec", m.Instance}
	if dir != "" {
		argv = append(argv, "--working-directory", dir)
	}
	argv = append(argv, "--", name)
	return append(argv, args...)
}

func (m *Multipass) trace(argv []string) {
	if !m.Echo {
		return
	}
	w := m.Trace
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintln(w, "+ multipass "+strings.Join(argv, " "))
}

func (m *Multipass) Run(ctx context.Context, dir, name string, args ...string) error {
	argv := m.execArgv(dir, name, args...)
	m.trace(argv)
	cmd := exec.CommandContext(ctx, "multipass", argv...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "%s failed in instance %s", name, m.Instance)
	}
	return nil
}

func (m *Multipass) Output(ctx context.Context, dir, name string, args ...string) (string, error) {
	argv := m.execArgv(dir, name, args...)
	m.trace(argv)
	cmd := exec.CommandContext(ctx, "multipass", argv...)
	out, err := cmd.Output()
	if err != nil {
		return "", errors.Wrapf(err, "%s failed in instance %s", name, m.Instance)
	}
	return string(out), nil
}

func (m *Multipass) LookPath(ctx context.Context, tool string) error {
	if _, err := m.Output(ctx, "", "which", tool); err != nil {
		return fmt.Errorf("%s not found in instance %s", tool, m.Instance)
	}
	return nil
}
