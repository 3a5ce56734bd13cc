package swarm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	gerrors "github.com/yushimatenjin/gaea-mcp/pkg/errors"
	"github.com/yushimatenjin/gaea-mcp/pkg/observability"
)

// maxCapturedLines bounds the log kept in a Result.
const maxCapturedLines = 5000

// RunOptions control how the renderer process is run.
type RunOptions struct {
	// Timeout bounds the whole run. Zero means no limit beyond ctx.
	Timeout time.Duration
	// Env is appended to the current environment.
	Env []string
	// Dir is the working directory. Empty means the current one.
	Dir string
	// Logger receives every output line. Nil discards them.
	Logger *log.Logger
}

// Result describes a finished renderer run.
type Result struct {
	Args     []string      `json:"args"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
	Output   []string      `json:"output"`
}

// Build runs the renderer on the project and parameters in opts.
func Build(ctx context.Context, exe string, opts Options, ro RunOptions) (*Result, error) {
	args, err := BuildArgs(opts)
	if err != nil {
		return nil, err
	}
	return Run(ctx, exe, args, ro)
}

// Run starts exe with args and relays stdout and stderr line by line to the
// logger while capturing them. It returns once the process has exited and
// both streams are drained.
//
// A non-zero exit is reported as BUILD_FAILED wrapping an
// [gerrors.ExitError], an expired timeout as TIMEOUT. The Result is
// returned alongside those errors.
func Run(ctx context.Context, exe string, args []string, ro RunOptions) (*Result, error) {
	logger := ro.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	logger = logger.WithPrefix("swarm")

	if ro.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ro.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Dir = ro.Dir
	cmd.Env = append(os.Environ(), ro.Env...)
	cmd.WaitDelay = 5 * time.Second

	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	cmd.Stdout = outW
	cmd.Stderr = errW

	res := &Result{Args: args}
	var (
		mu       sync.Mutex
		errLines []string
	)
	capture := func(line string, isErr bool) {
		mu.Lock()
		defer mu.Unlock()
		if len(res.Output) < maxCapturedLines {
			res.Output = append(res.Output, line)
		}
		if isErr {
			errLines = append(errLines, line)
			if len(errLines) > 20 {
				errLines = errLines[1:]
			}
		}
	}

	hooks := observability.Builds()
	hooks.OnBuildStart(ctx, exe, args)
	logger.Debug("starting", "exe", exe, "args", strings.Join(args, " "))
	start := time.Now()
	if err := cmd.Start(); err != nil {
		outW.Close()
		errW.Close()
		hooks.OnBuildComplete(ctx, exe, -1, 0, err)
		return nil, gerrors.Wrap(gerrors.ErrCodeBuildFailed, err, "start %s", exe)
	}

	var g errgroup.Group
	g.Go(func() error {
		return pump(outR, func(line string) {
			logger.Info(line)
			capture(line, false)
		})
	})
	g.Go(func() error {
		return pump(errR, func(line string) {
			logger.Warn(line)
			capture(line, true)
		})
	})
	waitErr := cmd.Wait()
	outW.Close()
	errW.Close()
	pumpErr := g.Wait()
	res.Duration = time.Since(start)
	res.ExitCode = -1
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	err := classify(ctx, exe, waitErr, strings.Join(errLines, "\n"))
	if err == nil && pumpErr != nil {
		err = gerrors.Wrap(gerrors.ErrCodeIO, pumpErr, "read renderer output")
	}
	hooks.OnBuildComplete(ctx, exe, res.ExitCode, res.Duration, err)
	if err != nil {
		logger.Error("build failed", "exit", res.ExitCode, "elapsed", res.Duration.Round(time.Millisecond))
		return res, err
	}
	logger.Info("build finished", "elapsed", res.Duration.Round(time.Millisecond))
	return res, nil
}

func classify(ctx context.Context, exe string, waitErr error, stderrTail string) error {
	if waitErr == nil {
		return nil
	}
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return gerrors.Wrap(gerrors.ErrCodeTimeout, ctx.Err(), "%s timed out", exe)
	case errors.Is(ctx.Err(), context.Canceled):
		return fmt.Errorf("build canceled: %w", ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return gerrors.Wrap(gerrors.ErrCodeBuildFailed,
			&gerrors.ExitError{ExitCode: exitErr.ExitCode(), Stderr: stderrTail}, "%s failed", exe)
	}
	return gerrors.Wrap(gerrors.ErrCodeBuildFailed, waitErr, "%s failed", exe)
}

func pump(r io.Reader, fn func(string)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		fn(strings.TrimRight(sc.Text(), "\r"))
	}
	return sc.Err()
}
