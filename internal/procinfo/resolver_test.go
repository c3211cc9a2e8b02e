package procinfo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	procs   []Process
	cwds    map[int]string
	err     error
	cwdHits []int
}

func (f *fakeSource) Processes() ([]Process, error) {
	return f.procs, f.err
}

func (f *fakeSource) Cwd(pid int) (string, error) {
	f.cwdHits = append(f.cwdHits, pid)
	if cwd, ok := f.cwds[pid]; ok {
		return cwd, nil
	}
	return "", errors.New("no cwd")
}

type fakeApps struct {
	bundles map[int]string
	names   map[int]string
}

func (f fakeApps) BundleID(pid int) (string, bool) {
	b, ok := f.bundles[pid]
	return b, ok
}

func (f fakeApps) DisplayName(pid int) (string, bool) {
	n, ok := f.names[pid]
	return n, ok
}

func newTestResolver(src *fakeSource, opts ...Option) *Resolver {
	opts = append([]Option{WithDefaultShell("")}, opts...)
	return NewResolver(src, fakeApps{}, nil, opts...)
}

func TestShellStateDirectChild(t *testing.T) {
	src := &fakeSource{
		procs: []Process{
			{PID: 100, PPID: 1, Name: "Terminal"},
			{PID: 101, PPID: 100, Name: "zsh"},
			{PID: 102, PPID: 101, Name: "node"},
			{PID: 103, PPID: 101, Name: "zsh"},
		},
		cwds: map[int]string{101: "/Users/dev/project"},
	}

	state := newTestResolver(src).ShellState(100)
	assert.True(t, state.Found())
	assert.Equal(t, ShellState{
		ShellPID:       101,
		ShellType:      "zsh",
		Cwd:            "/Users/dev/project",
		RunningProcess: "node",
	}, state)
}

func TestShellResolutionPrecedence(t *testing.T) {
	// A direct shell child wins over a deeper shell with a higher pid and
	// over a system-wide descendant matching the default shell.
	src := &fakeSource{
		procs: []Process{
			{PID: 10, PPID: 1, Name: "Host"},
			{PID: 11, PPID: 10, Name: "login"},
			{PID: 12, PPID: 11, Name: "fish"},
			{PID: 20, PPID: 10, Name: "bash"},
			{PID: 30, PPID: 10, Name: "Helper"},
			{PID: 31, PPID: 30, Name: "node"},
			{PID: 32, PPID: 31, Name: "pty-helper"},
			{PID: 99, PPID: 32, Name: "zsh"},
		},
	}

	r := newTestResolver(src, WithDefaultShell("/bin/zsh"))
	pid, ok := r.ShellPID(10, "")
	require.True(t, ok)
	assert.Equal(t, 20, pid)
}

func TestShellThroughWrappers(t *testing.T) {
	t.Run("login wrapper", func(t *testing.T) {
		src := &fakeSource{procs: []Process{
			{PID: 100, PPID: 1, Name: "Terminal"},
			{PID: 101, PPID: 100, Name: "login"},
			{PID: 102, PPID: 101, Name: "-zsh"},
		}}
		state := newTestResolver(src).ShellState(100)
		assert.Equal(t, 102, state.ShellPID)
		assert.Equal(t, "zsh", state.ShellType)
	})

	t.Run("multiplexer by substring", func(t *testing.T) {
		src := &fakeSource{procs: []Process{
			{PID: 100, PPID: 1, Name: "iTerm2"},
			{PID: 101, PPID: 100, Name: "tmux: client"},
			{PID: 102, PPID: 101, Name: "bash"},
		}}
		pid, ok := newTestResolver(src).ShellPID(100, "")
		require.True(t, ok)
		assert.Equal(t, 102, pid)
	})

	t.Run("unlisted wrapper via first child", func(t *testing.T) {
		src := &fakeSource{procs: []Process{
			{PID: 100, PPID: 1, Name: "iTerm2"},
			{PID: 105, PPID: 100, Name: "iTermServer-3.5"},
			{PID: 106, PPID: 105, Name: "fish"},
		}}
		pid, ok := newTestResolver(src).ShellPID(100, "")
		require.True(t, ok)
		assert.Equal(t, 106, pid)
	})
}

func TestDescendantScan(t *testing.T) {
	editorTree := func() *fakeSource {
		return &fakeSource{
			procs: []Process{
				{PID: 500, PPID: 1, Name: "Code"},
				{PID: 501, PPID: 500, Name: "Code Helper"},
				{PID: 502, PPID: 501, Name: "Code Helper (Plugin)"},
				{PID: 503, PPID: 502, Name: "node"},
				{PID: 510, PPID: 503, Name: "zsh"},
				{PID: 520, PPID: 503, Name: "zsh"},
				{PID: 530, PPID: 503, Name: "bash"},
				{PID: 900, PPID: 1, Name: "zsh"},
			},
			cwds: map[int]string{510: "/repo/a", 520: "/repo/b", 530: "/repo/c"},
		}
	}

	t.Run("highest pid wins", func(t *testing.T) {
		pid, ok := newTestResolver(editorTree()).ShellPID(500, "")
		require.True(t, ok)
		assert.Equal(t, 530, pid)
	})

	t.Run("default shell preferred", func(t *testing.T) {
		pid, ok := newTestResolver(editorTree(), WithDefaultShell("/bin/zsh")).ShellPID(500, "")
		require.True(t, ok)
		assert.Equal(t, 520, pid)
	})

	t.Run("cwd hint preferred over default shell", func(t *testing.T) {
		pid, ok := newTestResolver(editorTree(), WithDefaultShell("zsh")).ShellPID(500, "/repo/c")
		require.True(t, ok)
		assert.Equal(t, 530, pid)
	})

	t.Run("unmatched hint falls through", func(t *testing.T) {
		pid, ok := newTestResolver(editorTree(), WithDefaultShell("zsh")).ShellPID(500, "/elsewhere")
		require.True(t, ok)
		assert.Equal(t, 520, pid)
	})

	t.Run("unrelated shells are ignored", func(t *testing.T) {
		src := editorTree()
		src.procs = src.procs[:4]
		src.procs = append(src.procs, Process{PID: 900, PPID: 1, Name: "zsh"})
		_, ok := newTestResolver(src).ShellPID(500, "")
		assert.False(t, ok)
	})
}

func TestAncestryHopLimit(t *testing.T) {
	procs := []Process{{PID: 1000, PPID: 1, Name: "App"}}
	parent := 1000
	// Twenty intermediate processes put the shell beyond the hop limit.
	for i := 1; i <= 20; i++ {
		procs = append(procs, Process{PID: 1000 + i, PPID: parent, Name: "helper"})
		parent = 1000 + i
	}
	procs = append(procs, Process{PID: 2000, PPID: parent, Name: "zsh"})

	_, ok := newTestResolver(&fakeSource{procs: procs}).ShellPID(1000, "")
	assert.False(t, ok)
}

func TestResolverDegradesToAbsence(t *testing.T) {
	t.Run("snapshot error", func(t *testing.T) {
		src := &fakeSource{err: ErrUnsupported}
		assert.Equal(t, ShellState{}, newTestResolver(src).ShellState(1))
		_, ok := newTestResolver(src).ShellPID(1, "")
		assert.False(t, ok)
	})

	t.Run("cwd unavailable", func(t *testing.T) {
		src := &fakeSource{procs: []Process{
			{PID: 100, PPID: 1, Name: "Terminal"},
			{PID: 101, PPID: 100, Name: "bash"},
		}}
		state := newTestResolver(src).ShellState(100)
		assert.Equal(t, 101, state.ShellPID)
		assert.Empty(t, state.Cwd)
	})

	t.Run("invalid pid", func(t *testing.T) {
		assert.False(t, newTestResolver(&fakeSource{}).ShellState(0).Found())
	})

	t.Run("nil source", func(t *testing.T) {
		r := NewResolver(nil, nil, nil)
		assert.False(t, r.ShellState(10).Found())
		assert.Equal(t, Identity{PID: 10}, r.Identity(10))
	})
}

func TestIdentity(t *testing.T) {
	apps := fakeApps{
		bundles: map[int]string{7: "com.apple.Terminal"},
		names:   map[int]string{7: "Terminal"},
	}
	r := NewResolver(&fakeSource{}, apps, nil)
	assert.Equal(t, Identity{PID: 7, BundleID: "com.apple.Terminal", DisplayName: "Terminal"}, r.Identity(7))
	assert.Equal(t, Identity{PID: 8}, r.Identity(8))
}

func TestParseLsofCwd(t *testing.T) {
	cwd, err := parseLsofCwd("p4242\nfcwd\nn/Users/dev/my project\n")
	require.NoError(t, err)
	assert.Equal(t, "/Users/dev/my project", cwd)

	_, err = parseLsofCwd("p4242\nfcwd\n")
	assert.Error(t, err)
}

func TestIsShell(t *testing.T) {
	assert.True(t, IsShell("/bin/zsh"))
	assert.True(t, IsShell("-bash"))
	assert.True(t, IsShell("nu"))
	assert.False(t, IsShell("node"))
	assert.False(t, IsShell(""))
}
