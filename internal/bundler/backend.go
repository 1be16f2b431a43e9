// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package bundler supervises the JavaScript bundler child process.
package bundler

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"
)

const (
	defaultReadyTimeout = 60 * time.Second
	defaultStopTimeout  = 10 * time.Second
	readyPollInterval   = 250 * time.Millisecond
)

// State describes the bundler process lifecycle.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateCrashed  State = "crashed"
)

// Config configures the bundler backend.
type Config struct {
	Name          string // Bundler name for logs, e.g. "metro"
	Command       string
	Args          []string
	WorkDir       string
	Env           map[string]string
	ReadyTimeout  time.Duration
	StopTimeout   time.Duration
	LogBufferSize int
}

// Status is a snapshot of the bundler process.
type Status struct {
	State     State     `json:"state"`
	PID       int       `json:"pid"`
	Port      int       `json:"port"`
	ExitCode  int       `json:"exit_code"`
	StartedAt time.Time `json:"started_at,omitempty"`
	StoppedAt time.Time `json:"stopped_at,omitempty"`
}

// Backend manages a single bundler process. The process is started in
// its own process group, its output is captured into a ring buffer, and
// readiness is probed by dialing the bundler port.
type Backend struct {
	cfg  Config
	logs *LogBuffer

	mu            sync.RWMutex
	cmd           *exec.Cmd
	state         State
	pid           int
	port          int
	exitCode      int
	startedAt     time.Time
	stoppedAt     time.Time
	stopRequested bool
	waitDone      chan struct{}
	onExit        func(int)
}

// NewBackend creates a bundler backend.
func NewBackend(cfg Config) *Backend {
	if cfg.Name == "" {
		cfg.Name = "bundler"
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = defaultReadyTimeout
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = defaultStopTimeout
	}
	return &Backend{
		cfg:   cfg,
		state: StateStopped,
		logs:  NewLogBuffer(cfg.LogBufferSize),
	}
}

// FreePort asks the kernel for an unused TCP port.
func FreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("find free port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// Start launches the bundler on the given port and blocks until the port
// accepts connections or the ready timeout elapses. Start on a running
// backend is an error.
func (b *Backend) Start(ctx context.Context, port int) error {
	b.mu.Lock()
	if b.cmd != nil {
		b.mu.Unlock()
		return fmt.Errorf("%s already running", b.cfg.Name)
	}

	if b.cfg.Command == "" {
		b.mu.Unlock()
		return fmt.Errorf("%s: empty command", b.cfg.Name)
	}

	args := append([]string{}, b.cfg.Args...)
	args = append(args, "--port", strconv.Itoa(port))

	cmd := exec.Command(b.cfg.Command, args...)
	cmd.Dir = b.cfg.WorkDir

	// New process group so child processes die with the bundler
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	cmd.Env = os.Environ()
	cmd.Env = append(cmd.Env, "PORT="+strconv.Itoa(port))
	for k, v := range b.cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		b.mu.Unlock()
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		b.mu.Unlock()
		return fmt.Errorf("stderr pipe: %w", err)
	}

	b.logs.Write(fmt.Sprintf("[gantry] Starting %s: %s %s (workdir: %s)",
		b.cfg.Name, b.cfg.Command, strings.Join(args, " "), b.cfg.WorkDir))

	b.state = StateStarting
	if err := cmd.Start(); err != nil {
		b.state = StateStopped
		b.mu.Unlock()
		b.logs.Write(fmt.Sprintf("[gantry] Failed to start %s: %v", b.cfg.Name, err))
		return fmt.Errorf("start %s: %w", b.cfg.Name, err)
	}

	b.cmd = cmd
	b.pid = cmd.Process.Pid
	b.port = port
	b.exitCode = 0
	b.stopRequested = false
	b.startedAt = time.Now()
	b.waitDone = make(chan struct{})
	waitDone := b.waitDone
	b.mu.Unlock()

	go b.captureOutput(stdout)
	go b.captureOutput(stderr)
	go b.waitForExit(cmd, waitDone)

	if err := b.waitReady(ctx, port, waitDone); err != nil {
		b.Stop(context.Background())
		return err
	}

	b.mu.Lock()
	b.state = StateRunning
	b.mu.Unlock()
	b.logs.Write(fmt.Sprintf("[gantry] %s ready on port %d", b.cfg.Name, port))
	return nil
}

// waitReady polls the bundler port until it accepts a TCP connection.
func (b *Backend) waitReady(ctx context.Context, port int, waitDone chan struct{}) error {
	deadline := time.NewTimer(b.cfg.ReadyTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	for {
		select {
		case <-ticker.C:
			conn, err := net.DialTimeout("tcp", addr, readyPollInterval)
			if err == nil {
				conn.Close()
				return nil
			}
		case <-waitDone:
			return fmt.Errorf("%s exited before becoming ready (exit code %d)", b.cfg.Name, b.ExitCode())
		case <-deadline.C:
			return fmt.Errorf("%s not ready after %s", b.cfg.Name, b.cfg.ReadyTimeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop stops the bundler gracefully, escalating to SIGKILL after the
// stop timeout. Safe to call when not running.
func (b *Backend) Stop(ctx context.Context) error {
	b.mu.Lock()
	cmd := b.cmd
	waitDone := b.waitDone
	if cmd == nil {
		b.mu.Unlock()
		return nil
	}
	b.state = StateStopping
	b.stopRequested = true
	b.mu.Unlock()

	// Signal the process group (negative PID) to kill child processes too
	pgid := cmd.Process.Pid
	syscall.Kill(-pgid, syscall.SIGTERM)

	select {
	case <-waitDone:
	case <-time.After(b.cfg.StopTimeout):
		syscall.Kill(-pgid, syscall.SIGKILL)
		<-waitDone
	case <-ctx.Done():
		syscall.Kill(-pgid, syscall.SIGKILL)
		<-waitDone
	}

	return nil
}

// Status returns a snapshot of the bundler process.
func (b *Backend) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Status{
		State:     b.state,
		PID:       b.pid,
		Port:      b.port,
		ExitCode:  b.exitCode,
		StartedAt: b.startedAt,
		StoppedAt: b.stoppedAt,
	}
}

// Running reports whether the bundler process is alive.
func (b *Backend) Running() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cmd != nil
}

// Port returns the port the bundler was started on, 0 when stopped.
func (b *Backend) Port() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.cmd == nil {
		return 0
	}
	return b.port
}

// ExitCode returns the last exit code.
func (b *Backend) ExitCode() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.exitCode
}

// Logs returns the last n lines of bundler output.
func (b *Backend) Logs(n int) []string {
	return b.logs.Lines(n)
}

// SubscribeLogs returns a channel that receives new output lines.
func (b *Backend) SubscribeLogs() chan LogLine {
	return b.logs.Subscribe()
}

// UnsubscribeLogs removes a log subscription.
func (b *Backend) UnsubscribeLogs(ch chan LogLine) {
	b.logs.Unsubscribe(ch)
}

// CloseLogSubscribers closes all log subscriber channels.
func (b *Backend) CloseLogSubscribers() {
	b.logs.CloseAllSubscribers()
}

// OnExit sets a callback invoked when the process exits without a stop
// having been requested.
func (b *Backend) OnExit(fn func(int)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onExit = fn
}

func (b *Backend) captureOutput(r io.Reader) {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")

			// Truncate very long lines (>1MB) to prevent memory issues
			const maxLineLen = 1024 * 1024
			if len(line) > maxLineLen {
				line = line[:maxLineLen] + "... [truncated]"
			}
			b.logs.Write(line)
		}
		if err != nil {
			if err != io.EOF {
				b.logs.Write(fmt.Sprintf("[gantry] Output read error: %v", err))
			}
			break
		}
	}
}

func (b *Backend) waitForExit(cmd *exec.Cmd, waitDone chan struct{}) {
	err := cmd.Wait()

	b.mu.Lock()
	b.stoppedAt = time.Now()
	wasStopRequested := b.stopRequested

	if err != nil {
		b.logs.Write(fmt.Sprintf("[gantry] %s exited with error: %v", b.cfg.Name, err))
		if exitErr, ok := err.(*exec.ExitError); ok {
			b.exitCode = exitErr.ExitCode()
		} else {
			b.exitCode = -1
		}
		if wasStopRequested {
			b.state = StateStopped
		} else {
			b.state = StateCrashed
		}
	} else {
		b.logs.Write(fmt.Sprintf("[gantry] %s exited cleanly", b.cfg.Name))
		b.exitCode = 0
		b.state = StateStopped
	}

	exitCode := b.exitCode
	onExit := b.onExit
	b.cmd = nil
	b.pid = 0
	b.stopRequested = false
	b.mu.Unlock()

	close(waitDone)

	if onExit != nil && !wasStopRequested {
		onExit(exitCode)
	}
}
