package vm

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records commands and serves canned responses keyed by the
// joined argv.
type fakeRunner struct {
	ran     [][]string
	outputs map[string]string
	errs    map[string]error
	tools   map[string]bool
}

func (f *fakeRunner) key(name string, args []string) string {
	return strings.Join(append([]string{name}, args...), " ")
}

func (f *fakeRunner) Run(_ context.Context, dir, name string, args ...string) error {
	f.ran = append(f.ran, append([]string{name}, args...))
	return f.errs[f.key(name, args)]
}

func (f *fakeRunner) Output(_ context.Context, dir, name string, args ...string) (string, error) {
	f.ran = append(f.ran, append([]string{name}, args...))
	k := f.key(name, args)
	if err := f.errs[k]; err != nil {
		return "", err
	}
	return f.outputs[k], nil
}

func (f *fakeRunner) LookPath(_ context.Context, tool string) error {
	if f.tools[tool] {
		return nil
	}
	return fmt.Errorf("%s not found", tool)
}

const infoCSVRunning = "Name,State,Ipv4,Release\nshimforge,Running,192.168.64.5,Ubuntu 22.04 LTS\n"
const infoCSVStopped = "Name,State,Ipv4,Release\nshimforge,Stopped,--,Ubuntu 22.04 LTS\n"

func TestParseInfoCSV(t *testing.T) {
	tests := []struct {
		name      string
		out       string
		wantState State
		wantIP    string
		wantErr   bool
	}{
		{
			name:      "running with address",
			out:       infoCSVRunning,
			wantState: StateRunning,
			wantIP:    "192.168.64.5",
		},
		{
			name:      "multiple addresses take the first",
			out:       "Name,State,Ipv4\nvm,Running,10.0.0.2;172.17.0.1\n",
			wantState: StateRunning,
			wantIP:    "10.0.0.2",
		},
		{
			name:      "stopped instance reports no address",
			out:       infoCSVStopped,
			wantState: StateStopped,
			wantIP:    "",
		},
		{
			name:    "empty output",
			out:     "",
			wantErr: true,
		},
		{
			name:    "header without state column",
			out:     "Name,Ipv4\nvm,10.0.0.2\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, ip, err := parseInfoCSV(tt.out)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, st)
			assert.Equal(t, tt.wantIP, ip)
		})
	}
}

func TestInfoListsMount(t *testing.T) {
	info := strings.Join([]string{
		"Name:           shimforge",
		"State:          Running",
		"Mounts:         /Users/me/shimforge => /Users/me/shimforge",
		"                    UID map: 501:default",
	}, "\n")

	assert.True(t, infoListsMount(info, "/Users/me/shimforge"))
	assert.False(t, infoListsMount(info, "/Users/me/other"))
	assert.False(t, infoListsMount("", "/Users/me/shimforge"))
}

func TestEnsureRunning(t *testing.T) {
	ctx := context.Background()

	t.Run("running instance is left alone", func(t *testing.T) {
		f := &fakeRunner{outputs: map[string]string{
			"multipass info shimforge --format csv": infoCSVRunning,
		}}
		m := &Manager{Host: f, Instance: "shimforge"}
		require.NoError(t, m.EnsureRunning(ctx))
		require.Len(t, f.ran, 1) // only the probe, no launch or start
	})

	t.Run("missing instance is launched", func(t *testing.T) {
		f := &fakeRunner{errs: map[string]error{
			"multipass info shimforge --format csv": fmt.Errorf("does not exist"),
		}}
		m := &Manager{Host: f, Instance: "shimforge"}
		require.NoError(t, m.EnsureRunning(ctx))
		last := f.ran[len(f.ran)-1]
		assert.Equal(t, []string{
			"multipass", "launch", "--name", "shimforge",
			"--cpus", "2", "--memory", "4G", "--disk", "20G", "22.04",
		}, last)
	})

	t.Run("stopped instance is started", func(t *testing.T) {
		f := &fakeRunner{outputs: map[string]string{
			"multipass info shimforge --format csv": infoCSVStopped,
		}}
		m := &Manager{Host: f, Instance: "shimforge"}
		require.NoError(t, m.EnsureRunning(ctx))
		last := f.ran[len(f.ran)-1]
		assert.Equal(t, []string{"multipass", "start", "shimforge"}, last)
	})
}

func TestIP(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves address", func(t *testing.T) {
		f := &fakeRunner{outputs: map[string]string{
			"multipass info shimforge --format csv": infoCSVRunning,
		}}
		m := &Manager{Host: f, Instance: "shimforge"}
		ip, err := m.IP(ctx)
		require.NoError(t, err)
		assert.Equal(t, "192.168.64.5", ip)
	})

	t.Run("missing address is fatal", func(t *testing.T) {
		f := &fakeRunner{outputs: map[string]string{
			"multipass info shimforge --format csv": "Name,State,Ipv4\nshimforge,Running,\n",
		}}
		m := &Manager{Host: f, Instance: "shimforge"}
		_, err := m.IP(ctx)
		assert.ErrorContains(t, err, "no IPv4 address")
	})
}

func TestInstallClient(t *testing.T) {
	ctx := context.Background()

	t.Run("no brew is fatal", func(t *testing.T) {
		f := &fakeRunner{tools: map[string]bool{}}
		m := &Manager{Host: f, Instance: "shimforge"}
		assert.ErrorContains(t, m.InstallClient(ctx), "Homebrew")
	})

	t.Run("installs via brew cask", func(t *testing.T) {
		f := &fakeRunner{tools: map[string]bool{"brew": true}}
		m := &Manager{Host: f, Instance: "shimforge"}
		require.NoError(t, m.InstallClient(ctx))
		assert.Equal(t, [][]string{{"brew", "install", "--cask", "multipass"}}, f.ran)
	})
}
