package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Status is the lifecycle state of the supervised process.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
	StatusBackoff Status = "backoff"
	StatusFailed  Status = "failed"
)

const (
	defaultBackoff    = time.Second
	defaultMaxBackoff = 30 * time.Second
	defaultGraceful   = 5 * time.Second

	// stableRun resets the backoff when the process stayed up this long.
	stableRun = time.Minute
)

// ErrAlreadyRunning is returned by Start on a running supervisor.
var ErrAlreadyRunning = errors.New("process: already running")

// Config describes the process to supervise.
type Config struct {
	// Name is used in log entries.
	Name string

	// Binary is the executable path.
	Binary string

	// Args are passed to Binary.
	Args []string

	// Env is appended to the bridge's own environment.
	Env []string

	// RestartDelay is the first backoff step. Default: 1s.
	RestartDelay time.Duration

	// MaxRestartDelay caps the backoff. Default: 30s.
	MaxRestartDelay time.Duration

	// MaxRestarts stops supervision after this many restarts. 0 means unlimited.
	MaxRestarts int

	// GracefulTimeout is how long Stop waits after SIGTERM. Default: 5s.
	GracefulTimeout time.Duration
}

// Logger is the logging interface used by the supervisor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Supervisor runs one child process and restarts it when it exits.
//
// Thread Safety: All methods are safe for concurrent use.
type Supervisor struct {
	cfg    Config
	logger Logger

	mu        sync.RWMutex
	cmd       *exec.Cmd
	status    Status
	restarts  int
	lastError error
	started   time.Time

	stop chan struct{}
	done chan struct{}
}

// NewSupervisor creates a stopped supervisor.
func NewSupervisor(cfg Config) *Supervisor {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = defaultBackoff
	}
	if cfg.MaxRestartDelay < cfg.RestartDelay {
		cfg.MaxRestartDelay = defaultMaxBackoff
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = defaultGraceful
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Binary
	}
	return &Supervisor{
		cfg:    cfg,
		logger: noopLogger{},
		status: StatusStopped,
	}
}

// SetLogger sets the logger. Call before Start.
func (s *Supervisor) SetLogger(logger Logger) {
	s.logger = logger
}

// Start launches the process. A failure to launch the first time is
// returned; later exits are handled by restarting.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	exitCh, err := s.launch()
	if err != nil {
		s.mu.Lock()
		s.status = StatusFailed
		s.lastError = err
		close(s.done)
		s.done = nil
		s.mu.Unlock()
		return err
	}

	go s.supervise(ctx, exitCh)
	return nil
}

// launch starts the process in its own process group and returns a channel
// that receives its exit error.
func (s *Supervisor) launch() (<-chan error, error) {
	cmd := exec.Command(s.cfg.Binary, s.cfg.Args...) //nolint:gosec // Binary comes from operator config
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if s.cfg.Env != nil {
		cmd.Env = append(os.Environ(), s.cfg.Env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", s.cfg.Name, err)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.status = StatusRunning
	s.started = time.Now()
	s.mu.Unlock()

	var pipes sync.WaitGroup
	pipes.Add(2)
	go s.forward(&pipes, "stdout", stdout)
	go s.forward(&pipes, "stderr", stderr)

	exitCh := make(chan error, 1)
	go func() {
		// Pipes must be drained before Wait closes them.
		pipes.Wait()
		exitCh <- cmd.Wait()
	}()

	s.logger.Info("process started", "name", s.cfg.Name, "pid", cmd.Process.Pid)
	return exitCh, nil
}

// forward logs each output line of the child.
func (s *Supervisor) forward(wg *sync.WaitGroup, stream string, r io.Reader) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		s.logger.Debug("process output",
			"name", s.cfg.Name,
			"stream", stream,
			"line", scanner.Text(),
		)
	}
}

// supervise waits for exits and restarts until stopped.
func (s *Supervisor) supervise(ctx context.Context, exitCh <-chan error) {
	defer close(s.done)

	delay := s.cfg.RestartDelay
	for {
		select {
		case err := <-exitCh:
			if s.handleExit(err) {
				return
			}
		case <-s.stop:
			s.terminate(exitCh)
			return
		case <-ctx.Done():
			s.terminate(exitCh)
			return
		}

		s.mu.Lock()
		if s.cfg.MaxRestarts > 0 && s.restarts >= s.cfg.MaxRestarts {
			s.mu.Unlock()
			s.logger.Error("max restarts reached, giving up", "name", s.cfg.Name, "restarts", s.cfg.MaxRestarts)
			return
		}
		if time.Since(s.started) >= stableRun {
			delay = s.cfg.RestartDelay
		}
		s.restarts++
		attempt := s.restarts
		s.status = StatusBackoff
		s.mu.Unlock()

		s.logger.Info("restarting process", "name", s.cfg.Name, "attempt", attempt, "delay", delay)
		select {
		case <-time.After(delay):
		case <-s.stop:
			s.setStatus(StatusStopped)
			return
		case <-ctx.Done():
			s.setStatus(StatusStopped)
			return
		}
		delay = min(delay*2, s.cfg.MaxRestartDelay)

		next, err := s.launch()
		if err != nil {
			s.logger.Error("failed to restart process", "name", s.cfg.Name, "error", err)
			s.mu.Lock()
			s.lastError = err
			s.mu.Unlock()
			failed := make(chan error, 1)
			failed <- err
			exitCh = failed
			continue
		}
		exitCh = next
	}
}

// handleExit records an unexpected exit. It reports true when supervision
// should end because a stop was requested meanwhile.
func (s *Supervisor) handleExit(err error) bool {
	select {
	case <-s.stop:
		s.setStatus(StatusStopped)
		return true
	default:
	}

	if err == nil {
		err = errors.New("exited with status 0")
	}
	s.logger.Warn("process exited unexpectedly", "name", s.cfg.Name, "error", err)

	s.mu.Lock()
	s.lastError = err
	s.status = StatusFailed
	s.mu.Unlock()
	return false
}

// terminate sends SIGTERM to the process group, then SIGKILL after the
// graceful timeout.
func (s *Supervisor) terminate(exitCh <-chan error) {
	s.mu.RLock()
	cmd := s.cmd
	s.mu.RUnlock()

	pid := cmd.Process.Pid
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		s.logger.Warn("failed to send SIGTERM", "name", s.cfg.Name, "error", err)
	}

	select {
	case <-exitCh:
		s.logger.Info("process stopped", "name", s.cfg.Name)
	case <-time.After(s.cfg.GracefulTimeout):
		s.logger.Warn("graceful stop timed out, sending SIGKILL", "name", s.cfg.Name)
		if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
			s.logger.Error("failed to kill process group", "name", s.cfg.Name, "error", err)
		}
		<-exitCh
	}
	s.setStatus(StatusStopped)
}

// Stop terminates the process and ends supervision. Safe to call multiple
// times and before Start.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	if done == nil {
		s.mu.Unlock()
		return
	}
	select {
	case <-stop:
	default:
		close(stop)
	}
	s.mu.Unlock()

	<-done
}

func (s *Supervisor) setStatus(status Status) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// Stats is a snapshot of the supervised process.
type Stats struct {
	Name      string `json:"name"`
	Status    Status `json:"status"`
	PID       int    `json:"pid,omitempty"`
	Restarts  int    `json:"restarts"`
	UptimeSec int64  `json:"uptime_seconds,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// Stats returns the current process state.
func (s *Supervisor) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Name:     s.cfg.Name,
		Status:   s.status,
		Restarts: s.restarts,
	}
	if s.status == StatusRunning && s.cmd != nil && s.cmd.Process != nil {
		st.PID = s.cmd.Process.Pid
		st.UptimeSec = int64(time.Since(s.started).Seconds())
	}
	if s.lastError != nil {
		st.LastError = s.lastError.Error()
	}
	return st
}
