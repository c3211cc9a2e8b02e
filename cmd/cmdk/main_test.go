package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/atinylittleshell/cmdk/internal/core"
	"github.com/atinylittleshell/cmdk/internal/history"
	"github.com/atinylittleshell/cmdk/internal/ipc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("CMDK_DATA_DIR", t.TempDir())
	core.ResetPaths()
	t.Cleanup(core.ResetPaths)

	var out, errOut bytes.Buffer
	c := &cli{out: &out, errOut: &errOut}
	root := c.rootCommand()
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&errOut)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

// startDaemon serves handlers on a socket short enough for every platform.
func startDaemon(t *testing.T, handlers map[string]ipc.HandlerFunc) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "cmdk")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	path := filepath.Join(dir, "d.sock")

	srv := ipc.NewServer(nil)
	for method, fn := range handlers {
		srv.Handle(method, fn)
	}
	ln, err := ipc.Listen(path)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background(), ln) }()
	t.Cleanup(func() {
		require.NoError(t, srv.Close())
		require.NoError(t, <-done)
	})
	return path
}

func TestVersion(t *testing.T) {
	out, _, err := runCLI(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, BUILD_VERSION+"\n", out)
}

func TestCheck(t *testing.T) {
	t.Run("destructive command", func(t *testing.T) {
		out, _, err := runCLI(t, "", "check", "--json", "rm", "-rf", "/tmp/build")
		require.NoError(t, err)

		var verdict struct {
			Destructive bool     `json:"destructive"`
			Reasons     []string `json:"reasons"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &verdict))
		assert.True(t, verdict.Destructive)
		assert.NotEmpty(t, verdict.Reasons)
	})

	t.Run("safe command", func(t *testing.T) {
		out, _, err := runCLI(t, "", "check", "ls", "-la")
		require.NoError(t, err)
		assert.Contains(t, out, "ls -la")
	})

	t.Run("requires a command", func(t *testing.T) {
		_, _, err := runCLI(t, "", "check")
		assert.Error(t, err)
	})

	t.Run("redacts stdin", func(t *testing.T) {
		out, _, err := runCLI(t, "export API_KEY=abcdef0123456789\n", "check", "--redact")
		require.NoError(t, err)
		assert.NotContains(t, out, "abcdef0123456789")
		assert.Contains(t, out, "export")
	})
}

func TestDaemonCommands(t *testing.T) {
	var (
		mu     sync.Mutex
		pasted []string
	)
	sock := startDaemon(t, map[string]ipc.HandlerFunc{
		ipc.MethodWindowKeyGet: func(context.Context, json.RawMessage) (interface{}, error) {
			return ipc.WindowKeyResult{WindowKey: "com.apple.Terminal:101"}, nil
		},
		ipc.MethodHotkeyTrigger: func(context.Context, json.RawMessage) (interface{}, error) {
			return ipc.TriggerResult{Outcome: "shown"}, nil
		},
		ipc.MethodContextGet: func(context.Context, json.RawMessage) (interface{}, error) {
			return nil, nil
		},
		ipc.MethodInjectPaste: func(_ context.Context, raw json.RawMessage) (interface{}, error) {
			var p ipc.PasteParams
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			mu.Lock()
			pasted = append(pasted, p.Text)
			mu.Unlock()
			return nil, nil
		},
		ipc.MethodInjectConfirm: func(context.Context, json.RawMessage) (interface{}, error) {
			return nil, &ipc.JSONRPCError{Code: ipc.CodeNoTarget, Message: "no target application captured"}
		},
		ipc.MethodHistoryGet: func(_ context.Context, raw json.RawMessage) (interface{}, error) {
			var p ipc.HistoryGetParams
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return []history.HistoryEntry{{Query: "key=" + p.WindowKey, Response: "ls"}}, nil
		},
		ipc.MethodPermissionsCheck: func(context.Context, json.RawMessage) (interface{}, error) {
			return ipc.PermissionsResult{Granted: true}, nil
		},
	})

	t.Run("key", func(t *testing.T) {
		out, _, err := runCLI(t, "", "--socket", sock, "key")
		require.NoError(t, err)
		assert.Equal(t, "com.apple.Terminal:101\n", out)
	})

	t.Run("key as json", func(t *testing.T) {
		out, _, err := runCLI(t, "", "--socket", sock, "--json", "key")
		require.NoError(t, err)
		assert.JSONEq(t, `{"window_key": "com.apple.Terminal:101"}`, out)
	})

	t.Run("trigger", func(t *testing.T) {
		out, _, err := runCLI(t, "", "--socket", sock, "trigger")
		require.NoError(t, err)
		assert.Contains(t, out, "overlay shown")
	})

	t.Run("context without a capture", func(t *testing.T) {
		out, _, err := runCLI(t, "", "--socket", sock, "--json", "context")
		require.NoError(t, err)
		assert.Equal(t, "null\n", out)
	})

	t.Run("paste from args and stdin", func(t *testing.T) {
		_, _, err := runCLI(t, "", "--socket", sock, "paste", "git", "status")
		require.NoError(t, err)
		_, _, err = runCLI(t, "make test\n", "--socket", sock, "paste", "-")
		require.NoError(t, err)
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []string{"git status", "make test\n"}, pasted)
	})

	t.Run("confirm surfaces daemon errors", func(t *testing.T) {
		_, _, err := runCLI(t, "", "--socket", sock, "confirm")
		var rpcErr *ipc.JSONRPCError
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, ipc.CodeNoTarget, rpcErr.Code)
	})

	t.Run("history passes flags", func(t *testing.T) {
		out, _, err := runCLI(t, "", "--socket", sock, "history", "--key", "k:1", "--limit", "5")
		require.NoError(t, err)
		assert.Contains(t, out, "key=k:1")
	})

	t.Run("permissions", func(t *testing.T) {
		out, _, err := runCLI(t, "", "--socket", sock, "permissions")
		require.NoError(t, err)
		assert.Contains(t, out, "granted")
	})
}

func TestDaemonNotRunning(t *testing.T) {
	dir, err := os.MkdirTemp("", "cmdk")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	_, errOut, err := runCLI(t, "", "--socket", filepath.Join(dir, "missing.sock"), "key")
	require.Error(t, err)
	assert.Contains(t, errOut, "cmdk serve")
}

func TestConfigErrorsAreReported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("history:\n  max_keys: -1\n"), 0644))

	out, errOut, err := runCLI(t, "", "--config", path, "version")
	require.NoError(t, err)
	assert.Equal(t, BUILD_VERSION+"\n", out)
	assert.Contains(t, errOut, "max_keys")
}
