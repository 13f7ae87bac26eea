//go:build unix

package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lockedBuffer lets the test read log output while the daemon writes it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestDaemonReloadOnSIGHUP(t *testing.T) {
	setPassword(t, "secret")
	stub := newStub()
	srv := httptest.NewTLSServer(stub)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reload := "configReload:\n  enabled: true\n  method: poll\n  pollInterval: 1h\n"
	schedule := "schedule:\n  enabled: true\n  cron: \"@daily\"\n  runNow: true\n"
	path := writeConfig(t, srv.URL, schedule+reload)

	out := &lockedBuffer{}
	errCh := make(chan error, 1)
	go func() {
		cmd := newRootCmd()
		cmd.SetArgs([]string{"--config", path})
		cmd.SetOut(out)
		cmd.SetErr(out)
		errCh <- cmd.ExecuteContext(ctx)
	}()

	// the signal handler is registered before the startup run begins
	require.Eventually(t, func() bool {
		_, logouts := stub.state()
		return logouts == 1
	}, 5*time.Second, 10*time.Millisecond)

	raised := strings.Replace(readFile(t, path), "keep: 1", "keep: 2", 1)
	require.NoError(t, os.WriteFile(path, []byte(raised), 0o600))
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGHUP))

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "config reloaded")
	}, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), "SIGHUP")

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not shut down")
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
