package record

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/fmueller/voxnote/internal/audio"
)

var ErrNoBackendAvailable = errors.New("no recording backend available")

// Config describes the capture a backend should produce. Backends always
// emit raw s16le PCM on stdout.
type Config struct {
	SampleRate int
	Channels   int
	Input      string
	Format     string
	Logger     *zap.Logger
}

type Backend interface {
	Name() string
	Available() bool
	// CaptureCommand returns the program and arguments that stream PCM to stdout.
	CaptureCommand(cfg Config) (string, []string)
	ListDevices(ctx context.Context) (string, error)
}

func SelectBackend(backends []Backend, preferred string) (Backend, error) {
	if len(backends) == 0 {
		return nil, errors.New("no backends configured")
	}

	if preferred != "" && preferred != "auto" {
		for _, backend := range backends {
			if backend.Name() == preferred {
				if !backend.Available() {
					return nil, fmt.Errorf("requested backend %q is not available", preferred)
				}
				return backend, nil
			}
		}
		return nil, fmt.Errorf("unknown backend %q", preferred)
	}

	tried := make([]string, 0, len(backends))
	for _, backend := range backends {
		if backend.Available() {
			return backend, nil
		}
		tried = append(tried, backend.Name())
	}

	return nil, fmt.Errorf("%w (tried %s)", ErrNoBackendAvailable, strings.Join(tried, ", "))
}

func DefaultBackends(goos string) []Backend {
	switch goos {
	case "linux":
		return []Backend{newPipeWireBackend(), newALSARecorderBackend(), newFFMPEGLinuxBackend()}
	case "darwin":
		return []Backend{newFFMPEGMacOSBackend()}
	default:
		return nil
	}
}

func NewBackend(preferred string) (Backend, error) {
	backends := DefaultBackends(runtime.GOOS)
	if len(backends) == 0 {
		return nil, fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}
	return SelectBackend(backends, preferred)
}

func commandAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func commandOutput(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if err != nil {
		if trimmed != "" {
			return "", fmt.Errorf("%s %s failed: %w (%s)", name, strings.Join(args, " "), err, trimmed)
		}
		return "", fmt.Errorf("%s %s failed: %w", name, strings.Join(args, " "), err)
	}
	return trimmed, nil
}

func defaultSampleRate(value int) int {
	if value <= 0 {
		return audio.SampleRate
	}
	return value
}

func defaultChannels(value int) int {
	if value <= 0 {
		return audio.Channels
	}
	return value
}
