package lasinfo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/eunmann/lasacres/internal/logctx"
	"github.com/eunmann/lasacres/pkg/survey"
)

// DefaultTimeout bounds a single lasinfo invocation.
const DefaultTimeout = 5 * time.Minute

// Executable names, in order of preference when 64-bit is preferred.
const (
	Command64 = "lasinfo64"
	Command32 = "lasinfo"
)

// lookPath is replaced in tests.
var lookPath = exec.LookPath

// Tool runs the lasinfo executable and returns its report text.
type Tool struct {
	// Command is the executable name or path.
	Command string
	// Timeout bounds one invocation. Zero means DefaultTimeout.
	Timeout time.Duration
}

// DetectTool finds a lasinfo executable on PATH. With prefer64, lasinfo64
// (needed for files over 2 GB) is tried first.
func DetectTool(prefer64 bool) (*Tool, error) {
	candidates := []string{Command32}
	if prefer64 {
		candidates = []string{Command64, Command32}
	}
	for _, name := range candidates {
		if p, err := lookPath(name); err == nil {
			return &Tool{Command: p, Timeout: DefaultTimeout}, nil
		}
	}
	return nil, fmt.Errorf("%w: none of %s found in PATH", survey.ErrToolUnavailable, strings.Join(candidates, ", "))
}

// Name identifies the metadata source in logs.
func (t *Tool) Name() string {
	return "lasinfo"
}

// Describe runs lasinfo on path. lasinfo writes its report to stderr on some
// builds, so stdout is preferred and stderr is the fallback.
func (t *Tool) Describe(ctx context.Context, path string) (string, error) {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.Command, path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()

	log := logctx.FromContext(ctx)
	log.Debug().
		Str("command", t.Command).
		Dur("elapsed", time.Since(start)).
		Int("stdout_bytes", stdout.Len()).
		Int("stderr_bytes", stderr.Len()).
		Msg("lasinfo finished")

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("%w: lasinfo timed out after %s", survey.ErrEmptyInput, timeout)
	}

	output := stdout.String()
	if strings.TrimSpace(output) == "" {
		output = stderr.String()
	}
	output = strings.ToValidUTF8(output, "�")

	if strings.TrimSpace(output) == "" {
		if runErr != nil {
			return "", fmt.Errorf("%w: lasinfo failed: %v", survey.ErrEmptyInput, runErr)
		}
		return "", survey.ErrEmptyInput
	}
	return output, nil
}
