package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// ExitKilled is returned when the subprocess had to be killed.
const ExitKilled = 137

// LogParser splits a line of subprocess output into a level and message.
type LogParser func(line string) (slog.Level, string)

// State is where a Process is in its lifecycle.
type State string

// Process states.
const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateExited   State = "exited"
)

// Option configures a Process.
type Option func(*Process)

// WithLogParser sends subprocess output to logger, leveled by parser.
func WithLogParser(logger *slog.Logger, parser LogParser) Option {
	return func(p *Process) {
		p.outputLogger = logger
		p.parser = parser
	}
}

// WithTimeouts overrides how long Shutdown waits after SIGINT and after SIGKILL.
func WithTimeouts(graceful, kill time.Duration) Option {
	return func(p *Process) {
		p.gracefulTimeout = graceful
		p.killTimeout = kill
	}
}

// Process supervises one subprocess.
type Process struct {
	id     string
	logger *slog.Logger

	outputLogger *slog.Logger
	parser       LogParser

	gracefulTimeout time.Duration
	killTimeout     time.Duration

	mu       sync.Mutex
	command  string
	cmd      *exec.Cmd
	state    State
	restarts int

	restartCh chan string
}

// New creates a process for command. Nothing runs until Run.
func New(id, command string, logger *slog.Logger, opts ...Option) *Process {
	p := &Process{
		id:              id,
		logger:          logger.With("process", id),
		command:         command,
		state:           StateIdle,
		restartCh:       make(chan string, 1),
		gracefulTimeout: 5 * time.Second,
		killTimeout:     5 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Command returns the command line currently in use.
func (p *Process) Command() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.command
}

// State returns the lifecycle state.
func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Restarts counts completed restarts.
func (p *Process) Restarts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.restarts
}

func (p *Process) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Restart asks Run to stop the subprocess and start command instead.
// It returns false when a restart is already pending.
func (p *Process) Restart(command string) bool {
	select {
	case p.restartCh <- command:
		p.logger.Info("Restart requested")
		return true
	default:
		p.logger.Warn("Restart already pending, ignoring")
		return false
	}
}

type running struct {
	cmd    *exec.Cmd
	done   <-chan error
	output *sync.WaitGroup
}

func (p *Process) start(command string) (*running, error) {
	args, err := ParseCommand(command)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", args[0], err)
	}

	p.mu.Lock()
	p.cmd = cmd
	p.state = StateRunning
	p.mu.Unlock()
	p.logger.Info("Process started", "pid", cmd.Process.Pid, "command", command)

	output := &sync.WaitGroup{}
	output.Add(2)
	go p.forward(stdout, "stdout", output)
	go p.forward(stderr, "stderr", output)

	done := make(chan error, 1)
	go func() {
		output.Wait()
		done <- cmd.Wait()
	}()
	return &running{cmd: cmd, done: done, output: output}, nil
}

// Run starts the subprocess and supervises it until ctx ends or the
// subprocess exits by itself. Restart requests are served in between.
// It returns the last exit code.
func (p *Process) Run(ctx context.Context) int {
	for {
		rp, err := p.start(p.Command())
		if err != nil {
			p.logger.Error("Failed to start process", "error", err)
			p.setState(StateExited)
			return 1
		}

		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down process")
			code := p.stop(rp)
			p.setState(StateExited)
			return code

		case command := <-p.restartCh:
			p.stop(rp)
			p.mu.Lock()
			p.command = command
			p.restarts++
			p.mu.Unlock()
			p.logger.Info("Restarting process")

		case err := <-rp.done:
			code := exitCode(err)
			p.logger.Info("Process exited", "exit_code", code)
			p.setState(StateExited)
			return code
		}
	}
}

// signal delivers sig to the subprocess and everything it spawned.
func signal(cmd *exec.Cmd, sig syscall.Signal) error {
	err := syscall.Kill(-cmd.Process.Pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return os.ErrProcessDone
	}
	return err
}

// stop sends SIGINT, then SIGKILL once the grace period has passed.
func (p *Process) stop(rp *running) int {
	p.setState(StateStopping)
	if err := signal(rp.cmd, syscall.SIGINT); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Warn("Failed to send SIGINT", "error", err)
	}

	select {
	case err := <-rp.done:
		return exitCode(err)
	case <-time.After(p.gracefulTimeout):
	}

	p.logger.Warn("Graceful shutdown timeout, forcing kill", "timeout", p.gracefulTimeout)
	if err := signal(rp.cmd, syscall.SIGKILL); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Error("Failed to kill process", "error", err)
	}
	select {
	case <-rp.done:
	case <-time.After(p.killTimeout):
		p.logger.Error("Process did not exit after kill signal")
	}
	return ExitKilled
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

func (p *Process) forward(r io.Reader, source string, wg *sync.WaitGroup) {
	defer wg.Done()

	logger := p.outputLogger
	if logger == nil {
		logger = p.logger
	}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		level, msg := slog.LevelInfo, line
		if p.parser != nil {
			level, msg = p.parser(line)
		}
		logger.Log(context.Background(), level, msg, "source", source)
	}
	if err := scanner.Err(); err != nil {
		p.logger.Warn("Error reading output", "source", source, "error", err)
	}
}

// ParseCommand splits a command line into arguments. Single and double
// quotes group words; a backslash escapes the next character.
func ParseCommand(command string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		quote   rune
		started bool
	)

	runes := []rune(strings.TrimSpace(command))
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\\' && i+1 < len(runes):
			i++
			current.WriteRune(runes[i])
			started = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			started = true
		case r == ' ':
			if started {
				args = append(args, current.String())
				current.Reset()
				started = false
			}
		default:
			current.WriteRune(r)
			started = true
		}
	}

	if quote != 0 {
		return nil, errors.New("unclosed quote in command")
	}
	if started {
		args = append(args, current.String())
	}
	return args, nil
}
