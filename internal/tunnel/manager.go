// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package tunnel manages a single public-tunnel process for the dev server.
package tunnel

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	ps "github.com/mitchellh/go-ps"
)

const (
	defaultStartTimeout = 60 * time.Second
	defaultStopTimeout  = 5 * time.Second
)

// urlPattern matches the public URL in ngrok's logfmt output:
//
//	t=... lvl=info msg="started tunnel" ... url=https://abc123.ngrok.io
var urlPattern = regexp.MustCompile(`url=(https://[^\s"]+)`)

// Config configures the tunnel manager.
type Config struct {
	Binary       string // Tunnel binary, e.g. "ngrok"
	Region       string
	StartTimeout time.Duration
	StopTimeout  time.Duration
}

// Manager owns at most one tunnel process at a time. Start is idempotent
// for the same port; starting on a different port replaces the tunnel.
type Manager struct {
	cfg Config

	mu        sync.Mutex
	cmd       *exec.Cmd
	port      int
	publicURL string
	waitDone  chan struct{}
	pidFile   string
}

// NewManager creates a tunnel manager.
func NewManager(cfg Config) *Manager {
	if cfg.Binary == "" {
		cfg.Binary = "ngrok"
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = defaultStartTimeout
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = defaultStopTimeout
	}
	return &Manager{cfg: cfg}
}

// Start establishes a tunnel forwarding to the given local port. If a
// tunnel is already running for the same port this is a no-op; a tunnel
// on a different port is stopped and replaced.
func (m *Manager) Start(ctx context.Context, projectRoot string, port int) error {
	m.mu.Lock()
	if m.cmd != nil {
		if m.port == port {
			m.mu.Unlock()
			return nil
		}
		oldPort := m.port
		m.mu.Unlock()
		if err := m.Stop(ctx); err != nil {
			log.Printf("Tunnel: error stopping tunnel on port %d before restart: %v", oldPort, err)
		}
		m.mu.Lock()
	}
	defer m.mu.Unlock()

	binPath, err := exec.LookPath(m.cfg.Binary)
	if err != nil {
		return fmt.Errorf("tunnel binary %q not found: %w", m.cfg.Binary, err)
	}

	pidFile := pidFilePath(projectRoot)
	killOrphan(pidFile, m.cfg.Binary)

	args := []string{"http", strconv.Itoa(port), "--log", "stdout", "--log-format", "logfmt"}
	if m.cfg.Region != "" {
		args = append(args, "--region", m.cfg.Region)
	}

	cmd := exec.Command(binPath, args...)
	cmd.Dir = projectRoot
	// New process group so the whole tunnel tree can be killed
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", m.cfg.Binary, err)
	}

	writePIDFile(pidFile, cmd.Process.Pid)

	waitDone := make(chan struct{})
	urlCh := make(chan string, 1)

	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if match := urlPattern.FindStringSubmatch(scanner.Text()); match != nil {
				select {
				case urlCh <- match[1]:
				default:
				}
			}
		}
	}()

	go func() {
		cmd.Wait()
		close(waitDone)
		m.mu.Lock()
		if m.cmd == cmd {
			m.cmd = nil
			m.publicURL = ""
			m.port = 0
		}
		m.mu.Unlock()
	}()

	select {
	case publicURL := <-urlCh:
		m.cmd = cmd
		m.port = port
		m.publicURL = publicURL
		m.waitDone = waitDone
		m.pidFile = pidFile
		log.Printf("Tunnel: %s forwarding %s -> localhost:%d", m.cfg.Binary, publicURL, port)
		return nil
	case <-waitDone:
		os.Remove(pidFile)
		return fmt.Errorf("%s exited before reporting a public URL", m.cfg.Binary)
	case <-time.After(m.cfg.StartTimeout):
		syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		os.Remove(pidFile)
		return fmt.Errorf("timed out waiting for %s public URL (%s)", m.cfg.Binary, m.cfg.StartTimeout)
	case <-ctx.Done():
		syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		os.Remove(pidFile)
		return ctx.Err()
	}
}

// Stop tears down the tunnel. Safe to call when no tunnel is running.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	cmd := m.cmd
	waitDone := m.waitDone
	pidFile := m.pidFile
	m.cmd = nil
	m.publicURL = ""
	m.port = 0
	m.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	pgid := cmd.Process.Pid
	if err := syscall.Kill(-pgid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal %s: %w", m.cfg.Binary, err)
	}

	select {
	case <-waitDone:
	case <-time.After(m.cfg.StopTimeout):
		syscall.Kill(-pgid, syscall.SIGKILL)
		<-waitDone
	case <-ctx.Done():
		syscall.Kill(-pgid, syscall.SIGKILL)
		<-waitDone
	}

	if pidFile != "" {
		os.Remove(pidFile)
	}

	return nil
}

// ActiveURL returns the current public URL, or empty if no tunnel is established.
func (m *Manager) ActiveURL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.publicURL
}

// Running reports whether a tunnel process is alive.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cmd != nil
}

func pidFilePath(projectRoot string) string {
	return filepath.Join(projectRoot, ".gantry", "tunnel.pid")
}

func writePIDFile(path string, pid int) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return
	}
	os.WriteFile(path, []byte(strconv.Itoa(pid)), 0644)
}

// killOrphan kills a tunnel process left over from a crashed run. Only the
// PID recorded in our own pidfile is considered, and only when it still
// names the tunnel binary, so unrelated processes are never touched.
func killOrphan(pidFile, binary string) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		os.Remove(pidFile)
		return
	}

	proc, err := ps.FindProcess(pid)
	if err != nil || proc == nil {
		os.Remove(pidFile)
		return
	}

	if !strings.Contains(proc.Executable(), filepath.Base(binary)) {
		// PID was recycled by some other process
		os.Remove(pidFile)
		return
	}

	log.Printf("Tunnel: killing orphaned %s process (PID %d) from a previous run", binary, pid)
	syscall.Kill(-pid, syscall.SIGKILL)
	syscall.Kill(pid, syscall.SIGKILL)
	os.Remove(pidFile)
}
