package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

// ErrOutputTruncated is returned alongside a partial Result when a stream
// exceeded MaxOutput.
var ErrOutputTruncated = errors.New("output truncated")

type Result struct {
	Stdout string
	Stderr string
	Code   int
}

// SafeExecutor runs helper binaries with a deadline and an output cap.
type SafeExecutor struct {
	Timeout   time.Duration
	MaxOutput int
}

// LookPath reports the resolved path of name on PATH.
func (e *SafeExecutor) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Run executes name with args. A non-zero exit is reported through
// Result.Code together with an error carrying stderr.
func (e *SafeExecutor) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	if name == "" {
		return nil, errors.New("command is required")
	}
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	command := exec.CommandContext(ctx, name, args...)
	stdoutBuf := &limitedBuffer{limit: e.MaxOutput}
	stderrBuf := &limitedBuffer{limit: e.MaxOutput}
	command.Stdout = stdoutBuf
	command.Stderr = stderrBuf

	err := command.Run()
	res := &Result{Stdout: stdoutBuf.String(), Stderr: stderrBuf.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("run %s: %w", name, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("run %s: %w", name, ctxErr)
		}
		res.Code = exitErr.ExitCode()
		return res, fmt.Errorf("%s %s exited %d: %s", name, strings.Join(args, " "), res.Code, strings.TrimSpace(res.Stderr))
	}
	if stdoutBuf.truncated || stderrBuf.truncated {
		return res, ErrOutputTruncated
	}
	return res, nil
}

type limitedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (l *limitedBuffer) Write(p []byte) (int, error) {
	if l.limit <= 0 {
		return l.buf.Write(p)
	}
	remaining := l.limit - l.buf.Len()
	if remaining <= 0 {
		l.truncated = true
		return len(p), nil
	}
	if len(p) > remaining {
		l.truncated = true
		_, _ = l.buf.Write(p[:remaining])
		return len(p), nil
	}
	return l.buf.Write(p)
}

func (l *limitedBuffer) String() string {
	return l.buf.String()
}

var _ io.Writer = (*limitedBuffer)(nil)
