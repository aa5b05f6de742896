// Package execrunner launches component programs as OS processes.
package execrunner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/componentry/componentd/internal/runner"
)

// Runner launches the declaration's binary with its args and environment.
type Runner struct {
	logger      *zap.Logger
	stopTimeout time.Duration
}

// Option configures the runner.
type Option func(*Runner)

// WithStopTimeout sets how long Stop waits after SIGTERM before killing.
func WithStopTimeout(d time.Duration) Option {
	return func(r *Runner) { r.stopTimeout = d }
}

// New creates an exec runner.
func New(logger *zap.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{logger: logger, stopTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start implements runner.Runner.
func (r *Runner) Start(ctx context.Context, info runner.StartInfo) (runner.Controller, error) {
	if info.Program == nil || info.Program.Binary == "" {
		return nil, fmt.Errorf("no program binary for %s", info.URL)
	}

	cmd := exec.Command(info.Program.Binary, info.Program.Args...)
	cmd.Env = os.Environ()
	for k, v := range info.Program.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launching %s: %w", info.Program.Binary, err)
	}

	c := &controller{
		id:          uuid.New().String(),
		cmd:         cmd,
		done:        make(chan struct{}),
		stopTimeout: r.stopTimeout,
	}
	go c.wait()

	r.logger.Info("launched program",
		zap.String("moniker", info.Moniker),
		zap.String("binary", info.Program.Binary),
		zap.Int("pid", cmd.Process.Pid),
		zap.String("controller", c.id))
	return c, nil
}

type controller struct {
	id          string
	cmd         *exec.Cmd
	done        chan struct{}
	stopTimeout time.Duration

	mu  sync.Mutex
	err error
}

func (c *controller) wait() {
	err := c.cmd.Wait()
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	close(c.done)
}

// Stop sends SIGTERM, escalating to SIGKILL after the stop timeout.
func (c *controller) Stop(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	default:
	}

	if err := c.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return err
	}

	timeout := time.NewTimer(c.stopTimeout)
	defer timeout.Stop()
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		c.cmd.Process.Kill()
		return ctx.Err()
	case <-timeout.C:
		return c.cmd.Process.Kill()
	}
}

func (c *controller) Done() <-chan struct{} {
	return c.done
}

func (c *controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
