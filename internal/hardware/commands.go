package hardware

import (
	"context"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/cfab/hwagent/internal/apperr"
)

// CommandRunner executes external probe commands with a bounded runtime.
// Wrapped in an interface so tests can stub command output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

type execRunner struct {
	timeout time.Duration
	logger  *slog.Logger
}

// NewCommandRunner returns a CommandRunner that shells out with a per-command
// timeout on top of whatever deadline ctx already carries.
func NewCommandRunner(timeout time.Duration, logger *slog.Logger) CommandRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &execRunner{timeout: timeout, logger: logger}
}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		r.logger.Debug("probe command failed",
			slog.String("command", name),
			slog.String("error", err.Error()))
		return "", apperr.Wrap(err, apperr.CodeHardware, "probe command "+name+" failed")
	}
	return strings.TrimSpace(string(out)), nil
}

// detectGPU returns a human-readable GPU name, or "" when nothing usable was
// found. Detection is best effort; probe failures are not fatal.
func detectGPU(ctx context.Context, run CommandRunner) string {
	switch runtime.GOOS {
	case "linux":
		return detectGPULinux(ctx, run)
	case "darwin":
		return detectGPUDarwin(ctx, run)
	case "windows":
		return detectGPUWindows(ctx, run)
	default:
		return ""
	}
}

func detectGPULinux(ctx context.Context, run CommandRunner) string {
	// nvidia-smi gives the cleanest name when the NVIDIA driver is present.
	if out, err := run.Run(ctx, "nvidia-smi", "--query-gpu=name", "--format=csv,noheader"); err == nil {
		if name := firstLine(out); name != "" {
			return "NVIDIA " + name
		}
	}

	out, err := run.Run(ctx, "lspci")
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(out, "\n") {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "vga compatible controller") ||
			strings.Contains(lower, "3d controller") {
			if _, desc, found := strings.Cut(line, ": "); found {
				return strings.TrimSpace(desc)
			}
		}
	}
	return ""
}

func detectGPUDarwin(ctx context.Context, run CommandRunner) string {
	out, err := run.Run(ctx, "system_profiler", "SPDisplaysDataType")
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(out, "\n") {
		if _, name, found := strings.Cut(line, "Chipset Model:"); found {
			return strings.TrimSpace(name)
		}
	}
	return ""
}

func detectGPUWindows(ctx context.Context, run CommandRunner) string {
	out, err := run.Run(ctx, "wmic", "path", "win32_VideoController", "get", "name")
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.EqualFold(line, "Name") {
			continue
		}
		return line
	}
	return ""
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
