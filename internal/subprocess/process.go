package subprocess

import (
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/hostkit/toolhost/internal/errors"
)

// maxStderrBufferSize caps the captured stderr. The stream keeps draining
// past the cap so the child never blocks on a full pipe.
const maxStderrBufferSize = 1024 * 1024 // 1MB

// Process runs one tool provider as a child process and owns its pipes.
type Process struct {
	log     *slog.Logger
	command string
	args    []string
	env     map[string]string

	mu       sync.Mutex
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stdout   io.ReadCloser
	stderr   *cappedBuffer
	closing  bool // Stop() was called; exit is expected
	finished bool
	waitErr  error

	done chan struct{} // closed by Finish once the process is reaped
}

// New creates a Process for the given command. The child is not spawned
// until Start.
func New(log *slog.Logger, command string, args []string, env map[string]string) *Process {
	return &Process{
		log:     log.With("component", "subprocess", "command", command),
		command: command,
		args:    args,
		env:     env,
		stderr:  &cappedBuffer{max: maxStderrBufferSize},
		done:    make(chan struct{}),
	}
}

// Start spawns the child process with the inherited environment merged
// with, and overridden by, the configured env entries.
func (p *Process) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	//nolint:gosec // G204: spawning caller-configured tool providers is the point
	cmd := exec.Command(p.command, p.args...)

	cmd.Env = os.Environ()
	for k, v := range p.env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &errors.SpawnError{Command: p.command, Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &errors.SpawnError{Command: p.command, Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	cmd.Stderr = p.stderr

	if err := cmd.Start(); err != nil {
		return &errors.SpawnError{Command: p.command, Err: err}
	}

	p.cmd = cmd
	p.stdin = stdin
	p.stdout = stdout

	p.log.Debug("Tool provider process started", "pid", cmd.Process.Pid)

	return nil
}

// Output returns the child's stdout stream. The caller drains it and then
// calls Finish.
func (p *Process) Output() io.Reader {
	return p.stdout
}

// WriteLine writes one framed message followed by a newline to the child's
// stdin. Safe for concurrent use.
func (p *Process) WriteLine(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stdin == nil || p.closing {
		return errors.ErrConnectionClosed
	}

	// Explicit copy so a caller's slice with spare capacity is not mutated.
	line := make([]byte, len(data)+1)
	copy(line, data)
	line[len(data)] = '\n'

	if _, err := p.stdin.Write(line); err != nil {
		return fmt.Errorf("write to stdin: %w", err)
	}

	return nil
}

// Finish reaps the child after Output has drained and reports how it
// ended. Exit failures during an intentional Stop are not errors. Safe to
// call more than once; later calls return the first result.
func (p *Process) Finish() error {
	p.mu.Lock()

	if p.finished {
		err := p.waitErr
		p.mu.Unlock()

		return err
	}

	p.finished = true
	cmd := p.cmd
	p.mu.Unlock()

	var waitErr error

	if cmd != nil {
		waitErr = cmd.Wait()
	}

	p.mu.Lock()

	if waitErr != nil && !p.closing {
		exitCode := 0
		if exitErr, ok := stderrors.AsType[*exec.ExitError](waitErr); ok {
			exitCode = exitErr.ExitCode()
		}

		p.waitErr = &errors.ProcessError{
			ExitCode: exitCode,
			Stderr:   p.stderr.String(),
			Err:      waitErr,
		}
	}

	err := p.waitErr
	p.mu.Unlock()

	close(p.done)

	if err != nil {
		p.log.Debug("Tool provider process exited abnormally", "error", err)
	} else {
		p.log.Debug("Tool provider process exited")
	}

	return err
}

// Done is closed once the process has been reaped.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Err returns the exit error recorded by Finish, if any.
func (p *Process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.waitErr
}

// Stderr returns the captured stderr output so far.
func (p *Process) Stderr() string {
	return p.stderr.String()
}

// Pid returns the child's process id, or 0 before Start.
func (p *Process) Pid() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}

	return p.cmd.Process.Pid
}

// Stop terminates the child: close stdin, SIGTERM, wait up to grace, then
// SIGKILL. It returns once the process has been reaped.
func (p *Process) Stop(grace time.Duration) error {
	p.mu.Lock()

	if p.cmd == nil || p.cmd.Process == nil {
		p.mu.Unlock()

		return nil
	}

	p.closing = true

	if p.stdin != nil {
		_ = p.stdin.Close()
		p.stdin = nil
	}

	proc := p.cmd.Process
	p.mu.Unlock()

	_ = proc.Signal(syscall.SIGTERM)

	select {
	case <-p.done:
		return nil
	case <-time.After(grace):
	}

	p.log.Debug("Grace period elapsed, killing process", "pid", proc.Pid)

	if err := proc.Kill(); err != nil {
		p.log.Debug("Kill failed", "error", err)
	}

	select {
	case <-p.done:
	case <-time.After(grace):
		// No reader is draining stdout, so nothing will call Finish.
		// The process is dead by now; reap it directly. Finish is
		// once-guarded, so a late reader stays safe.
		_ = p.Finish()
	}

	return nil
}

// cappedBuffer is an io.Writer that keeps at most max bytes and silently
// drops the rest.
type cappedBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if remaining := b.max - len(b.buf); remaining > 0 {
		if len(p) > remaining {
			b.buf = append(b.buf, p[:remaining]...)
		} else {
			b.buf = append(b.buf, p...)
		}
	}

	return len(p), nil
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return string(b.buf)
}
