package lasinfo

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/eunmann/lasacres/internal/logctx"
	"github.com/eunmann/lasacres/pkg/survey"
)

func withLookPath(t *testing.T, fn func(string) (string, error)) {
	t.Helper()
	orig := lookPath
	lookPath = fn
	t.Cleanup(func() { lookPath = orig })
}

func TestDetectTool_Prefers64(t *testing.T) {
	withLookPath(t, func(name string) (string, error) {
		return "/opt/lastools/" + name, nil
	})

	tool, err := DetectTool(true)
	if err != nil {
		t.Fatalf("DetectTool() error: %v", err)
	}
	if tool.Command != "/opt/lastools/lasinfo64" {
		t.Errorf("Command = %q, want lasinfo64", tool.Command)
	}

	tool, err = DetectTool(false)
	if err != nil {
		t.Fatalf("DetectTool() error: %v", err)
	}
	if tool.Command != "/opt/lastools/lasinfo" {
		t.Errorf("Command = %q, want lasinfo", tool.Command)
	}
}

func TestDetectTool_FallsBackTo32(t *testing.T) {
	withLookPath(t, func(name string) (string, error) {
		if name == Command32 {
			return "/usr/bin/lasinfo", nil
		}
		return "", exec.ErrNotFound
	})

	tool, err := DetectTool(true)
	if err != nil {
		t.Fatalf("DetectTool() error: %v", err)
	}
	if tool.Command != "/usr/bin/lasinfo" {
		t.Errorf("Command = %q", tool.Command)
	}
}

func TestDetectTool_Missing(t *testing.T) {
	withLookPath(t, func(string) (string, error) { return "", exec.ErrNotFound })

	if _, err := DetectTool(true); !errors.Is(err, survey.ErrToolUnavailable) {
		t.Errorf("DetectTool() error = %v, want ErrToolUnavailable", err)
	}
}

func TestToolDescribe_UsesOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/echo")
	}
	echo, err := exec.LookPath("echo")
	if err != nil {
		t.Skip("echo not available")
	}

	tool := &Tool{Command: echo}
	out, err := tool.Describe(context.Background(), "min x y z: 0 0 0")
	if err != nil {
		t.Fatalf("Describe() error: %v", err)
	}
	if out != "min x y z: 0 0 0\n" {
		t.Errorf("Describe() = %q", out)
	}
}

func TestToolDescribe_NoOutputIsEmptyInput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses false")
	}
	f, err := exec.LookPath("false")
	if err != nil {
		t.Skip("false not available")
	}

	tool := &Tool{Command: f}
	if _, err := tool.Describe(context.Background(), "x.las"); !errors.Is(err, survey.ErrEmptyInput) {
		t.Errorf("Describe() error = %v, want ErrEmptyInput", err)
	}
}

func TestToolDescribe_LogsToContextLogger(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses echo")
	}
	echo, err := exec.LookPath("echo")
	if err != nil {
		t.Skip("echo not available")
	}
	oldLevel := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	defer zerolog.SetGlobalLevel(oldLevel)

	var buf bytes.Buffer
	ctx := logctx.WithLogger(context.Background(), zerolog.New(&buf))
	ctx = logctx.WithFile(ctx, "tile.las", 2)

	tool := &Tool{Command: echo}
	if _, err := tool.Describe(ctx, "tile.las"); err != nil {
		t.Fatalf("Describe() error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`"message":"lasinfo finished"`, `"file":"tile.las"`, `"stdout_bytes":9`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s:\n%s", want, out)
		}
	}
}
