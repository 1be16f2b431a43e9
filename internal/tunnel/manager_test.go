// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package tunnel

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFakeTunnel writes a shell script that behaves like ngrok: it prints
// a logfmt line containing the public URL and then sleeps until killed.
func writeFakeTunnel(t *testing.T, dir string) string {
	t.Helper()
	script := `#!/bin/sh
echo 't=2026-01-01T00:00:00Z lvl=info msg="started tunnel" url=https://fake-test.ngrok.io'
while true; do sleep 1; done
`
	path := filepath.Join(dir, "fake-ngrok")
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func TestManager_StartStop(t *testing.T) {
	dir := t.TempDir()
	bin := writeFakeTunnel(t, dir)

	m := NewManager(Config{
		Binary:       bin,
		StartTimeout: 10 * time.Second,
		StopTimeout:  2 * time.Second,
	})

	require.NoError(t, m.Start(context.Background(), dir, 8081))
	assert.Equal(t, "https://fake-test.ngrok.io", m.ActiveURL())
	assert.True(t, m.Running())

	// Pidfile is written for orphan recovery
	_, err := os.Stat(filepath.Join(dir, ".gantry", "tunnel.pid"))
	assert.NoError(t, err)

	require.NoError(t, m.Stop(context.Background()))
	assert.Empty(t, m.ActiveURL())
	assert.False(t, m.Running())

	_, err = os.Stat(filepath.Join(dir, ".gantry", "tunnel.pid"))
	assert.True(t, os.IsNotExist(err))
}

func TestManager_StartIdempotentSamePort(t *testing.T) {
	dir := t.TempDir()
	bin := writeFakeTunnel(t, dir)

	m := NewManager(Config{Binary: bin, StartTimeout: 10 * time.Second})
	defer m.Stop(context.Background())

	require.NoError(t, m.Start(context.Background(), dir, 8081))
	firstPID := m.cmd.Process.Pid

	// Same port: no new process
	require.NoError(t, m.Start(context.Background(), dir, 8081))
	assert.Equal(t, firstPID, m.cmd.Process.Pid)
}

func TestManager_StartReplacesOnPortChange(t *testing.T) {
	dir := t.TempDir()
	bin := writeFakeTunnel(t, dir)

	m := NewManager(Config{Binary: bin, StartTimeout: 10 * time.Second, StopTimeout: 2 * time.Second})
	defer m.Stop(context.Background())

	require.NoError(t, m.Start(context.Background(), dir, 8081))
	firstPID := m.cmd.Process.Pid

	require.NoError(t, m.Start(context.Background(), dir, 19000))
	assert.NotEqual(t, firstPID, m.cmd.Process.Pid)
	assert.Equal(t, 19000, m.port)
}

func TestManager_StopWhenIdle(t *testing.T) {
	m := NewManager(Config{Binary: "fake-ngrok"})
	assert.NoError(t, m.Stop(context.Background()))
}

func TestManager_MissingBinary(t *testing.T) {
	m := NewManager(Config{Binary: "definitely-not-a-real-binary-xyz"})
	err := m.Start(context.Background(), t.TempDir(), 8081)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestManager_ExitBeforeURL(t *testing.T) {
	dir := t.TempDir()
	script := "#!/bin/sh\necho 'lvl=eror msg=\"failed to start tunnel\"'\nexit 1\n"
	bin := filepath.Join(dir, "fake-ngrok")
	require.NoError(t, os.WriteFile(bin, []byte(script), 0755))

	m := NewManager(Config{Binary: bin, StartTimeout: 10 * time.Second})
	err := m.Start(context.Background(), dir, 8081)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited before reporting")
	assert.False(t, m.Running())
}

func TestKillOrphan_StalePidfile(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "tunnel.pid")

	// Garbage contents get cleaned up
	require.NoError(t, os.WriteFile(pidFile, []byte("not-a-pid"), 0644))
	killOrphan(pidFile, "ngrok")
	_, err := os.Stat(pidFile)
	assert.True(t, os.IsNotExist(err))

	// A dead PID gets cleaned up too
	require.NoError(t, os.WriteFile(pidFile, []byte("999999"), 0644))
	killOrphan(pidFile, "ngrok")
	_, err = os.Stat(pidFile)
	assert.True(t, os.IsNotExist(err))
}
