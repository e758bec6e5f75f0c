package transcode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"github.com/jmylchreest/youcube/internal/util"
)

// LaunchError reports that a converter could not be started at all.
type LaunchError struct {
	Binary string
	Err    error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launching %s: %v", e.Binary, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// Runner executes tasks.
type Runner struct {
	logger *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner() *Runner {
	return &Runner{logger: slog.Default()}
}

// WithLogger sets the logger for the runner.
func (r *Runner) WithLogger(logger *slog.Logger) *Runner {
	r.logger = logger
	return r
}

// Run starts the task and calls onLine for every non-empty line the process writes
// to stdout or stderr, in the order written, while it runs. Lines are split on both
// '\n' and '\r'. All lines are delivered before Run returns.
//
// A non-zero exit is reported through the status with a nil error. A process that
// cannot be started yields a *LaunchError. Cancelling ctx kills the process and
// returns ctx.Err().
func (r *Runner) Run(ctx context.Context, task *Task, onLine func(string)) (int, error) {
	logger := r.logger.With(slog.String("kind", string(task.Kind)))

	// Both streams share one pipe so their relative order survives.
	pr, pw, err := os.Pipe()
	if err != nil {
		return -1, fmt.Errorf("creating output pipe: %w", err)
	}
	defer pr.Close()

	cmd := exec.CommandContext(ctx, task.Binary, task.Args...)
	cmd.Stdout = pw
	cmd.Stderr = pw

	logger.Debug("starting converter", slog.String("command", task.String()))
	startErr := cmd.Start()
	pw.Close()
	if startErr != nil {
		return -1, &LaunchError{Binary: task.Binary, Err: startErr}
	}

	prefix := task.Kind.Prefix()
	scanErr := util.EachLine(pr, func(line string) {
		logger.Debug(prefix+" "+line, slog.String("tool", prefix))
		if onLine != nil {
			onLine(line)
		}
	})
	if scanErr != nil {
		// Keep the pipe drained so the process can finish.
		_, _ = io.Copy(io.Discard, pr)
	}

	waitErr := cmd.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return -1, ctxErr
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			logger.Warn(prefix+" exited with non-zero status", slog.Int("status", exitErr.ExitCode()))
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("waiting for %s: %w", task.Binary, waitErr)
	}
	if scanErr != nil {
		return 0, fmt.Errorf("reading %s output: %w", task.Binary, scanErr)
	}
	return 0, nil
}
