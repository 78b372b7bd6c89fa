// Package vm manages the Multipass instance that hosts shim builds on
// macOS. All lifecycle commands (launch, start, info, mount) run on the
// host; only the build commands themselves go through the remote runner.
package vm

import (
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/apex/log"
	"github.com/pkg/errors"

	"github.com/shimforge/shimforge/pkg/runner"
)

// Launch parameters for a fresh build instance. 22.04 is the newest LTS
// with the shim toolchain packages we install in setup.
const (
	launchImage  = "22.04"
	launchCPUs   = "2"
	launchMemory = "4G"
	launchDisk   = "20G"
)

// State is the instance state as reported by `multipass info`.
type State string

const (
	StateMissing State = ""
	StateRunning State = "Running"
	StateStopped State = "Stopped"
)

// Manager drives one named Multipass instance through a host-side runner.
type Manager struct {
	Host     runner.Runner
	Instance string
}

// Installed reports whether the multipass client is on the host PATH.
func (m *Manager) Installed(ctx context.Context) bool {
	return m.Host.LookPath(ctx, "multipass") == nil
}

// InstallClient installs multipass via Homebrew. Only meaningful on
// macOS hosts; elsewhere the client is a hard prerequisite.
func (m *Manager) InstallClient(ctx context.Context) error {
	if err := m.Host.LookPath(ctx, "brew"); err != nil {
		return fmt.Errorf("multipass is not installed and Homebrew is unavailable; install multipass manually")
	}
	log.Info("installing multipass via Homebrew")
	return m.Host.Run(ctx, "", "brew", "install", "--cask", "multipass")
}

// Info returns the raw `multipass info` output, or an error when the
// instance does not exist.
func (m *Manager) Info(ctx context.Context) (string, error) {
	return m.Host.Output(ctx, "", "multipass", "info", m.Instance)
}

// Status probes the instance state. A missing instance is StateMissing,
// not an error.
func (m *Manager) Status(ctx context.Context) (State, error) {
	out, err := m.Host.Output(ctx, "", "multipass", "info", m.Instance, "--format", "csv")
	if err != nil {
		// multipass exits non-zero for unknown instances.
		return StateMissing, nil
	}
	st, _, err := parseInfoCSV(out)
	if err != nil {
		return StateMissing, err
	}
	return st, nil
}

// EnsureRunning launches the instance if missing and starts it if
// stopped. A running instance is left untouched.
func (m *Manager) EnsureRunning(ctx context.Context) error {
	st, err := m.Status(ctx)
	if err != nil {
		return err
	}
	switch st {
	case StateRunning:
		log.Debugf("instance %s already running", m.Instance)
		return nil
	case StateMissing:
		log.Infof("launching instance %s", m.Instance)
		return m.Host.Run(ctx, "", "multipass", "launch",
			"--name", m.Instance,
			"--cpus", launchCPUs,
			"--memory", launchMemory,
			"--disk", launchDisk,
			launchImage)
	default:
		log.Infof("starting instance %s (state %s)", m.Instance, st)
		return m.Host.Run(ctx, "", "multipass", "start", m.Instance)
	}
}

// HasMount reports whether src is already shared into the instance.
func (m *Manager) HasMount(ctx context.Context, src string) (bool, error) {
	out, err := m.Info(ctx)
	if err != nil {
		return false, errors.Wrapf(err, "failed to inspect instance %s", m.Instance)
	}
	return infoListsMount(out, src), nil
}

// Mount shares src into the instance at the same path, so host and guest
// see the tree at identical locations.
func (m *Manager) Mount(ctx context.Context, src string) error {
	log.Infof("mounting %s into instance %s", src, m.Instance)
	return m.Host.Run(ctx, "", "multipass", "mount", src, m.Instance+":"+src)
}

// IP resolves the instance's IPv4 address. An instance without an
// address cannot serve sshfs and is a fatal condition for mount.
func (m *Manager) IP(ctx context.Context) (string, error) {
	out, err := m.Host.Output(ctx, "", "multipass", "info", m.Instance, "--format", "csv")
	if err != nil {
		return "", errors.Wrapf(err, "failed to inspect instance %s", m.Instance)
	}
	_, ip, err := parseInfoCSV(out)
	if err != nil {
		return "", err
	}
	if ip == "" {
		return "", fmt.Errorf("instance %s has no IPv4 address", m.Instance)
	}
	return ip, nil
}

// parseInfoCSV extracts state and first IPv4 address from
// `multipass info --format csv` output.
func parseInfoCSV(out string) (State, string, error) {
	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		return StateMissing, "", errors.Wrap(err, "failed to parse multipass info output")
	}
	if len(records) < 2 {
		return StateMissing, "", fmt.Errorf("unexpected multipass info output: %q", out)
	}
	stateIdx, ipIdx := -1, -1
	for i, col := range records[0] {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "state":
			stateIdx = i
		case "ipv4":
			ipIdx = i
		}
	}
	if stateIdx < 0 {
		return StateMissing, "", fmt.Errorf("no State column in multipass info output")
	}
	row := records[1]
	st := State(strings.TrimSpace(row[stateIdx]))
	ip := ""
	if ipIdx >= 0 && ipIdx < len(row) {
		// multipass packs multiple addresses into one field
		for _, cand := range strings.FieldsFunc(row[ipIdx], func(r rune) bool {
			return r == ';' || r == ',' || r == ' ' || r == '\n'
		}) {
			// multipass prints "--" when no address is assigned
			if cand = strings.TrimSpace(cand); cand != "" && cand != "--" {
				ip = cand
				break
			}
		}
	}
	return st, ip, nil
}

// infoListsMount scans human-readable `multipass info` output for a
// mount whose source is src.
func infoListsMount(info, src string) bool {
	for _, line := range strings.Split(info, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 3 && fields[0] == src && fields[1] == "=>" {
			return true
		}
	}
	return false
}
