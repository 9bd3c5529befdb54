// Package shell runs external commands for shell-backed task actions.
package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/creack/pty"
	"github.com/kballard/go-shellquote"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Executor = (*Executor)(nil)

type ptyProcess struct {
	cmd    *exec.Cmd
	ioDone <-chan struct{}
}

func (p *ptyProcess) Wait() error {
	err := p.cmd.Wait()
	// The copy loop ends once the pty reports EOF after the child exits.
	<-p.ioDone
	return err
}

// Executor implements ports.Executor using os/exec and a pty.
// Running under a pty keeps the colored, line-buffered output tools like ffmpeg print on terminals.
type Executor struct {
	logger ports.Logger
}

// NewExecutor creates a new Executor.
func NewExecutor(logger ports.Logger) *Executor {
	return &Executor{logger: logger}
}

// Execute runs cmd and waits for it to exit.
// A pty merges stdout and stderr, so everything is copied to stdout.
// When stdout is nil, output lines go to the logger tagged with the command name.
func (e *Executor) Execute(ctx context.Context, cmd *domain.Command, stdout, _ io.Writer) error {
	if cmd == nil || len(cmd.Args) == 0 {
		return zerr.Wrap(domain.ErrEmptyCommand, "nothing to execute")
	}

	var sink io.Writer = stdout
	var lw *logWriter
	if sink == nil {
		lw = &logWriter{logger: e.logger, task: cmd.Name}
		sink = lw
	}

	proc, err := start(ctx, cmd, sink)
	if err != nil {
		return zerr.With(err, "command", cmd.Args[0])
	}

	err = proc.Wait()
	if lw != nil {
		_ = lw.Close()
	}
	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		err = zerr.With(zerr.Wrap(err, domain.ErrCommandFailed.Error()), "exit_code", exitCode)
		return zerr.With(err, "command", shellquote.Join(cmd.Args...))
	}

	return nil
}

func start(ctx context.Context, c *domain.Command, out io.Writer) (*ptyProcess, error) {
	name := c.Args[0]
	env := resolveEnvironment(os.Environ(), c.Environment)

	executable := name
	if !filepath.IsAbs(name) {
		if lp, err := lookPath(name, env); err == nil {
			executable = lp
		}
	}

	cmd := exec.CommandContext(ctx, executable, c.Args[1:]...) //nolint:gosec // commands come from the project's own task definitions
	cmd.Args[0] = name
	cmd.Dir = c.WorkingDir
	cmd.Env = env

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to start pty")
	}

	ioDone := make(chan struct{})
	go func() {
		defer close(ioDone)
		defer func() { _ = ptmx.Close() }()
		_, _ = io.Copy(out, ptmx)
	}()

	return &ptyProcess{cmd: cmd, ioDone: ioDone}, nil
}

// logWriter turns a byte stream into one log record per line.
type logWriter struct {
	logger ports.Logger
	task   string
	buf    []byte
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.logLine(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

func (w *logWriter) Close() error {
	if len(w.buf) > 0 {
		w.logLine(w.buf)
		w.buf = nil
	}
	return nil
}

func (w *logWriter) logLine(line []byte) {
	if w.logger == nil {
		return
	}
	// PTYs emit CRLF line endings.
	msg := strings.TrimSuffix(string(line), "\r")
	if w.task != "" {
		w.logger.Info(msg, "task", w.task)
		return
	}
	w.logger.Info(msg)
}

// allowListedEnvVars are inherited from the calling process.
// Everything else must be declared on the command.
var allowListedEnvVars = map[string]struct{}{
	"HOME":                 {},
	"TERM":                 {},
	"USER":                 {},
	"PATH":                 {},
	"LANG":                 {},
	"TMPDIR":               {},
	"CUDA_VISIBLE_DEVICES": {},
}

// resolveEnvironment filters sysEnv through the allow-list and applies the command's overrides.
func resolveEnvironment(sysEnv []string, cmdEnv map[string]string) []string {
	envMap := make(map[string]string, len(allowListedEnvVars)+len(cmdEnv))
	for _, entry := range sysEnv {
		k, v, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if _, allowed := allowListedEnvVars[k]; allowed {
			envMap[k] = v
		}
	}
	for k, v := range cmdEnv {
		envMap[k] = v
	}

	result := make([]string, 0, len(envMap))
	for k, v := range envMap {
		result = append(result, k+"="+v)
	}
	return result
}

// lookPath searches PATH as seen by the child environment rather than the parent's.
func lookPath(file string, env []string) (string, error) {
	var path string
	for _, e := range env {
		if v, ok := strings.CutPrefix(e, "PATH="); ok {
			path = v
			break
		}
	}
	if path == "" {
		return "", exec.ErrNotFound
	}

	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, file)
		if err := findExecutable(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", exec.ErrNotFound
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0o111 != 0 {
		return nil
	}
	return os.ErrPermission
}
