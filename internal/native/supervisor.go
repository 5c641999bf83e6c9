package native

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/heyito/ito-sub003/internal/shared"
)

var ErrNotRunning = errors.New("native process not running")

const (
	stopGrace   = 2 * time.Second
	stableAfter = 10 * time.Second
)

type ProcessConfig struct {
	Name    string
	Path    string
	Args    []string
	Backoff shared.BackoffConfig
}

// Supervisor keeps one helper binary running, restarting it with backoff
// when it exits. Commands go to its stdin as one JSON object per line.
type Supervisor struct {
	cfg     ProcessConfig
	backoff shared.BackoffConfig
	read    func(io.Reader)
	onStart func()
	log     *slog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	running bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSupervisor creates a supervisor whose read func consumes the process
// stdout until EOF. onStart, if set, runs after every successful (re)start.
func NewSupervisor(cfg ProcessConfig, read func(io.Reader), onStart func(), logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		cfg:     cfg,
		backoff: shared.NormalizeBackoff(cfg.Backoff),
		read:    read,
		onStart: onStart,
		log:     logger.With("component", "native", "process", cfg.Name),
	}
}

// Start launches the process. The first launch must succeed; later crashes
// are retried in the background until Stop.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	s.cancel = cancel
	s.stopped = false
	s.done = done
	s.mu.Unlock()

	exited, err := s.launch(ctx)
	if err != nil {
		cancel()
		s.mu.Lock()
		close(done)
		s.done = nil
		s.mu.Unlock()
		return err
	}

	go s.supervise(ctx, cancel, done, exited)
	return nil
}

func (s *Supervisor) launch(ctx context.Context) (<-chan error, error) {
	cmd := exec.CommandContext(ctx, s.cfg.Path, s.cfg.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%s stdin: %w", s.cfg.Name, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%s stdout: %w", s.cfg.Name, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", s.cfg.Name, err)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.stdin = stdin
	s.running = true
	s.mu.Unlock()
	s.log.Info("process started", "pid", cmd.Process.Pid)

	exited := make(chan error, 1)
	go func() {
		s.read(stdout)
		err := cmd.Wait()
		s.mu.Lock()
		s.running = false
		s.stdin = nil
		s.mu.Unlock()
		exited <- err
	}()

	if s.onStart != nil {
		s.onStart()
	}
	return exited, nil
}

// supervise restarts the process until Stop or until MaxAttempts restarts
// fail in a row. Giving up leaves the supervisor ready for a fresh Start.
func (s *Supervisor) supervise(ctx context.Context, cancel context.CancelFunc, done chan struct{}, exited <-chan error) {
	defer func() {
		s.mu.Lock()
		if s.done == done && !s.stopped {
			s.done = nil
		}
		s.mu.Unlock()
		cancel()
		close(done)
	}()

	delay := s.backoff.Initial
	attempts := 0
	startedAt := time.Now()

	for {
		err := <-exited
		if s.isStopped() {
			return
		}
		if time.Since(startedAt) > stableAfter {
			attempts = 0
			delay = s.backoff.Initial
		}
		s.log.Warn("process exited", "error", err, "attempt", attempts+1)

		for {
			if attempts >= s.backoff.MaxAttempts {
				s.log.Error("giving up on process", "attempts", attempts)
				return
			}
			attempts++
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay = s.backoff.Next(delay)

			exited, err = s.launch(ctx)
			if err == nil {
				startedAt = time.Now()
				break
			}
			s.log.Warn("restart failed", "error", err, "attempt", attempts)
		}
	}
}

// Send writes v as one line of JSON to the process stdin.
func (s *Supervisor) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.stdin == nil {
		return fmt.Errorf("%s: %w", s.cfg.Name, ErrNotRunning)
	}
	if _, err := s.stdin.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write %s: %w", s.cfg.Name, err)
	}
	return nil
}

func (s *Supervisor) IsAlive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop closes stdin, giving the process a moment to exit on its own before
// it is killed.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	if s.done == nil {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	done, cancel, stdin := s.done, s.cancel, s.stdin
	s.mu.Unlock()

	if stdin != nil {
		_ = stdin.Close()
	}
	select {
	case <-done:
	case <-time.After(stopGrace):
		cancel()
		<-done
	}
	cancel()

	s.mu.Lock()
	if s.done == done {
		s.done = nil
	}
	s.mu.Unlock()
	s.log.Info("process stopped")
	return nil
}

func (s *Supervisor) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
