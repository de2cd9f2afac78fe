package simulation

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// CommandSpec describes a program invocation. Env entries are added to the current
// environment.
type CommandSpec struct {
	Name string
	Args []string
	Dir  string
	Env  []string
}

func (cs CommandSpec) String() string {
	return strings.TrimSpace(fmt.Sprintf("%s %s", cs.Name, strings.Join(cs.Args, " ")))
}

// Result is the outcome of a program run to completion.
type Result struct {
	FullCommand string
	Stdout      string
	Stderr      string
	ExitCode    int
}

// NodeProcess is a long running process started by a ProcessRunner.
type NodeProcess interface {
	Pid() int
	// Done is closed once the process has exited.
	Done() <-chan struct{}
	// Err returns the wait error after Done is closed.
	Err() error
	// Output returns the most recent lines the process printed.
	Output() string
	Signal(sig os.Signal) error
	Kill() error
}

type ProcessRunner interface {
	Start(spec CommandSpec) (NodeProcess, error)
	Run(ctx context.Context, spec CommandSpec) (*Result, error)
}

const outputTailLines = 50

// lineWriter splits a process stream into lines. Every complete line is passed to onLine.
type lineWriter struct {
	mu      sync.Mutex
	partial bytes.Buffer
	onLine  func(line string)
}

func (lw *lineWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	lw.partial.Write(p)
	for {
		idx := bytes.IndexByte(lw.partial.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := string(lw.partial.Next(idx + 1))
		lw.onLine(strings.TrimRight(line, "\r\n"))
	}
	return len(p), nil
}

// Flush emits a trailing line without a newline.
func (lw *lineWriter) Flush() {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if lw.partial.Len() > 0 {
		lw.onLine(strings.TrimRight(lw.partial.String(), "\r\n"))
		lw.partial.Reset()
	}
}

// outputTail keeps the last n lines written to it.
type outputTail struct {
	mu    sync.Mutex
	lines []string
	max   int
}

func (ot *outputTail) add(line string) {
	ot.mu.Lock()
	defer ot.mu.Unlock()
	ot.lines = append(ot.lines, line)
	if len(ot.lines) > ot.max {
		ot.lines = ot.lines[len(ot.lines)-ot.max:]
	}
}

func (ot *outputTail) String() string {
	ot.mu.Lock()
	defer ot.mu.Unlock()
	return strings.Join(ot.lines, "\n")
}

// ExecRunner runs programs with os/exec and streams their output to the logger.
type ExecRunner struct {
	logger *zap.Logger
	// WaitDelay bounds how long Run waits for output after the program is killed.
	WaitDelay time.Duration
}

func NewExecRunner(l *zap.Logger) *ExecRunner {
	return &ExecRunner{
		logger:    l,
		WaitDelay: 2 * time.Second,
	}
}

func (er *ExecRunner) resolve(name string) (string, error) {
	if strings.ContainsRune(name, os.PathSeparator) {
		return name, nil
	}
	return exec.LookPath(name)
}

type execProcess struct {
	cmd    *exec.Cmd
	done   chan struct{}
	output *outputTail

	mu  sync.Mutex
	err error
}

func (p *execProcess) Pid() int              { return p.cmd.Process.Pid }
func (p *execProcess) Done() <-chan struct{} { return p.done }
func (p *execProcess) Output() string        { return p.output.String() }

func (p *execProcess) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *execProcess) Signal(sig os.Signal) error {
	return p.cmd.Process.Signal(sig)
}

func (p *execProcess) Kill() error {
	return p.cmd.Process.Kill()
}

// Start launches a process that outlives the calling request. It is stopped through the
// returned NodeProcess only.
func (er *ExecRunner) Start(spec CommandSpec) (NodeProcess, error) {
	fullCmdPath, err := er.resolve(spec.Name)
	if err != nil {
		return nil, fmt.Errorf("error getting %s path: %w", spec.Name, err)
	}

	cmd := exec.Command(fullCmdPath, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)

	tail := &outputTail{max: outputTailLines}
	stream := func(name string) *lineWriter {
		return &lineWriter{onLine: func(line string) {
			tail.add(line)
			er.logger.Sugar().Debugw("Node output",
				zap.String("stream", name),
				zap.String("line", line),
			)
		}}
	}
	stdout := stream("stdout")
	stderr := stream("stderr")
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	er.logger.Sugar().Infow("Starting process", zap.String("fullCommand", spec.String()))
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("error starting command: %w", err)
	}

	p := &execProcess{
		cmd:    cmd,
		done:   make(chan struct{}),
		output: tail,
	}
	go func() {
		err := cmd.Wait()
		stdout.Flush()
		stderr.Flush()
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		er.logger.Sugar().Infow("Process exited",
			zap.String("fullCommand", spec.String()),
			zap.Int("pid", cmd.Process.Pid),
			zap.Error(err),
		)
		close(p.done)
	}()
	return p, nil
}

// Run executes a program to completion. A non-zero exit is reported through
// Result.ExitCode; an error is returned only when the program could not be run or ctx
// expired.
func (er *ExecRunner) Run(ctx context.Context, spec CommandSpec) (*Result, error) {
	fullCmdPath, err := er.resolve(spec.Name)
	if err != nil {
		return nil, fmt.Errorf("error getting %s path: %w", spec.Name, err)
	}

	res := &Result{FullCommand: spec.String()}

	cmd := exec.CommandContext(ctx, fullCmdPath, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.WaitDelay = er.WaitDelay

	var stdoutBuf, stderrBuf strings.Builder
	stdout := &lineWriter{onLine: func(line string) {
		stdoutBuf.WriteString(line)
		stdoutBuf.WriteString("\n")
		er.logger.Sugar().Debugw("Command output", zap.String("stream", "stdout"), zap.String("line", line))
	}}
	stderr := &lineWriter{onLine: func(line string) {
		stderrBuf.WriteString(line)
		stderrBuf.WriteString("\n")
		er.logger.Sugar().Debugw("Command output", zap.String("stream", "stderr"), zap.String("line", line))
	}}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	er.logger.Sugar().Infow("Running command", zap.String("fullCommand", res.FullCommand), zap.String("dir", spec.Dir))

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("error starting command: %w", err)
	}
	err = cmd.Wait()
	stdout.Flush()
	stderr.Flush()
	res.Stdout = stdoutBuf.String()
	res.Stderr = stderrBuf.String()

	if ctxErr := ctx.Err(); ctxErr != nil {
		res.ExitCode = -1
		return res, errors.Wrap(ctxErr, fmt.Sprintf("'%s' did not finish", res.FullCommand))
	}
	if exitError, ok := err.(*exec.ExitError); ok {
		res.ExitCode = exitError.ExitCode()
		er.logger.Sugar().Errorw("Command exited with error",
			zap.String("fullCommand", res.FullCommand),
			zap.Int("exitCode", res.ExitCode),
		)
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("error waiting for command: %w", err)
	}
	return res, nil
}
