package notary

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ruteri/tlsn-notary-demo/interfaces"
)

// DefaultStopTimeout is how long Stop waits after SIGTERM before killing.
const DefaultStopTimeout = 5 * time.Second

// ErrAlreadyStarted is returned by Start on a running service.
var ErrAlreadyStarted = errors.New("notary process already started")

// ArgsFunc builds the command line arguments of the notary binary.
type ArgsFunc func(configPath string) []string

// DefaultArgs passes the rendered config file to the notary server.
func DefaultArgs(configPath string) []string {
	return []string{"--config-file", configPath}
}

// ProcessService runs the notary server binary as a child process configured
// through a rendered YAML file.
type ProcessService struct {
	binary      string
	args        ArgsFunc
	cfg         interfaces.NotaryConfig
	configPath  string
	debug       bool
	stopTimeout time.Duration
	log         *slog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	done    chan struct{}
	waitErr error
}

func NewProcessService(binary string, cfg interfaces.NotaryConfig, configPath string, log *slog.Logger) (*ProcessService, error) {
	if binary == "" {
		return nil, errors.New("notary binary is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &ProcessService{
		binary:      binary,
		args:        DefaultArgs,
		cfg:         cfg,
		configPath:  configPath,
		stopTimeout: DefaultStopTimeout,
		log:         log.With("component", "notary"),
	}, nil
}

// clone copies the configuration of s into a service that has not started.
func (s *ProcessService) clone() *ProcessService {
	return &ProcessService{
		binary:      s.binary,
		args:        s.args,
		cfg:         s.cfg,
		configPath:  s.configPath,
		debug:       s.debug,
		stopTimeout: s.stopTimeout,
		log:         s.log,
	}
}

func (s *ProcessService) WithArgs(args ArgsFunc) *ProcessService {
	ns := s.clone()
	ns.args = args
	return ns
}

func (s *ProcessService) WithStopTimeout(d time.Duration) *ProcessService {
	ns := s.clone()
	ns.stopTimeout = d
	return ns
}

// WithDebug makes the server log at debug level.
func (s *ProcessService) WithDebug(debug bool) *ProcessService {
	ns := s.clone()
	ns.debug = debug
	return ns
}

// Start renders the config file and launches the binary. It does not wait
// for the server to listen.
func (s *ProcessService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		return ErrAlreadyStarted
	}

	serverCfg, err := NewServerConfig(s.cfg, s.debug)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := WriteServerConfig(s.configPath, serverCfg); err != nil {
		return err
	}

	// The process outlives ctx, which only scopes the start call.
	cmd := exec.Command(s.binary, s.args(s.configPath)...)
	cmd.Stdout = &logWriter{log: s.log, stream: "stdout"}
	cmd.Stderr = &logWriter{log: s.log, stream: "stderr"}
	cmd.WaitDelay = time.Second

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start notary %s: %w", s.binary, err)
	}

	s.cmd = cmd
	s.done = make(chan struct{})
	s.log.Info("Notary process started",
		"binary", s.binary,
		"pid", cmd.Process.Pid,
		"addr", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		"config", s.configPath)

	go func(done chan struct{}) {
		err := cmd.Wait()
		s.mu.Lock()
		s.waitErr = err
		s.mu.Unlock()
		close(done)
	}(s.done)

	return nil
}

// Done is closed when the process exits. It is nil before Start.
func (s *ProcessService) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Stop sends SIGTERM and kills the process if it has not exited after the
// stop timeout or when ctx is done. Stopping a service that never started or
// already exited is a no-op.
func (s *ProcessService) Stop(ctx context.Context) error {
	s.mu.Lock()
	cmd, done := s.cmd, s.done
	s.mu.Unlock()

	if cmd == nil {
		return nil
	}

	select {
	case <-done:
		s.log.Warn("Notary process exited before stop", "err", s.exitErr())
		return nil
	default:
	}

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.log.Warn("Failed to signal notary process", "err", err)
	}

	timer := time.NewTimer(s.stopTimeout)
	defer timer.Stop()

	select {
	case <-done:
		s.log.Info("Notary process stopped")
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}

	s.log.Warn("Notary process did not stop in time, killing", "timeout", s.stopTimeout)
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill notary process: %w", err)
	}
	<-done
	return nil
}

func (s *ProcessService) exitErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waitErr
}

// logWriter turns process output into one log record per line.
type logWriter struct {
	log    *slog.Logger
	stream string

	mu  sync.Mutex
	buf []byte
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		if line := strings.TrimRight(string(w.buf[:i]), "\r"); line != "" {
			w.log.Info(line, "stream", w.stream)
		}
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

var _ interfaces.NotaryService = (*ProcessService)(nil)
