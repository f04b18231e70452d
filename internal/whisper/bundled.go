package whisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
)

const enginePathEnv = "VOXNOTE_WHISPER_PATH"

// BundledEngine runs the whisper-cli binary shipped next to voxnote.
type BundledEngine struct {
	Executable string
	Logger     *zap.Logger
}

func NewBundledEngine(logger *zap.Logger) (*BundledEngine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if override := strings.TrimSpace(os.Getenv(enginePathEnv)); override != "" {
		if err := ensureExecutable(override); err != nil {
			return nil, fmt.Errorf("%s is not executable: %w", enginePathEnv, err)
		}
		return &BundledEngine{Executable: override, Logger: logger}, nil
	}

	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve voxnote executable path: %w", err)
	}

	whisperExe, err := ResolveBundledEnginePath(self)
	if err != nil {
		return nil, err
	}

	return &BundledEngine{Executable: whisperExe, Logger: logger}, nil
}

func ResolveBundledEnginePath(executable string) (string, error) {
	for _, candidate := range EnginePathCandidates(executable) {
		if err := ensureExecutable(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("bundled whisper engine not found near %s; expected at ../libexec/whisper/%s or set %s", executable, engineBinaryName(), enginePathEnv)
}

func EnginePathCandidates(executable string) []string {
	binDir := filepath.Dir(executable)
	engineName := engineBinaryName()
	hostTarget := fmt.Sprintf("%s_%s", runtime.GOOS, normalizeArch(runtime.GOARCH))

	return []string{
		filepath.Join(binDir, "..", "libexec", "whisper", engineName),
		filepath.Join(binDir, "libexec", "whisper", engineName),
		filepath.Join(binDir, "packaging", "whisper", hostTarget, engineName),
		filepath.Join(binDir, engineName),
	}
}

// BuildArgs maps a request onto whisper-cli flags. whisper-cli always decodes
// in 30 s windows, so the chunk settings are validated but not forwarded.
func BuildArgs(req TranscriptionRequest, outBase string) ([]string, error) {
	if strings.TrimSpace(req.AudioPath) == "" {
		return nil, errors.New("audio path is required")
	}
	if strings.TrimSpace(req.ModelPath) == "" {
		return nil, errors.New("model path is required")
	}

	opts := req.Options
	if opts.Task != "" && opts.Task != TaskTranscribe {
		return nil, fmt.Errorf("unsupported task %q", opts.Task)
	}
	if opts.ChunkLengthSeconds < 0 || opts.StrideLengthSeconds < 0 {
		return nil, errors.New("chunk and stride lengths must not be negative")
	}
	if opts.ChunkLengthSeconds > 0 && opts.StrideLengthSeconds >= opts.ChunkLengthSeconds {
		return nil, fmt.Errorf("stride length %ds must be shorter than chunk length %ds", opts.StrideLengthSeconds, opts.ChunkLengthSeconds)
	}

	args := []string{"-m", req.ModelPath, "-f", req.AudioPath, "-otxt", "-of", outBase}
	if !opts.ReturnTimestamps {
		args = append(args, "-nt")
	}
	if lang := strings.TrimSpace(opts.Language); lang != "" && lang != "auto" {
		args = append(args, "-l", lang)
	}
	return args, nil
}

func (b *BundledEngine) Transcribe(ctx context.Context, req TranscriptionRequest) (Result, error) {
	outBase := filepath.Join(os.TempDir(), fmt.Sprintf("voxnote-%d", time.Now().UnixNano()))
	args, err := BuildArgs(req, outBase)
	if err != nil {
		return Result{}, err
	}

	if err := ensureExecutable(b.Executable); err != nil {
		return Result{}, fmt.Errorf("bundled whisper engine missing or not executable: %w", err)
	}

	logger := b.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cmd := exec.CommandContext(ctx, b.Executable, args...)
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	txtOut := outBase + ".txt"
	defer os.Remove(txtOut)

	logger.Debug("running whisper engine", zap.String("engine", b.Executable), zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		return Result{}, classifyEngineFailure(b.Executable, err, strings.TrimSpace(stderr.String()))
	}

	content, err := os.ReadFile(txtOut)
	if err != nil {
		return Result{}, fmt.Errorf("read whisper output: %w", err)
	}

	return Result{Text: strings.TrimSpace(string(content))}, nil
}

func classifyEngineFailure(executable string, err error, stderr string) error {
	lower := strings.ToLower(stderr)
	switch {
	case containsAny(lower, "error while loading shared libraries", "cannot open shared object file", "dyld: library not loaded", "image not found"):
		return fmt.Errorf("whisper engine at %s is missing required shared libraries (%s); rebuild whisper-cli with BUILD_SHARED_LIBS=OFF", executable, stderr)
	case containsAny(lower, "illegal instruction") || containsAny(strings.ToLower(err.Error()), "illegal instruction"):
		return fmt.Errorf("whisper engine crashed with an illegal CPU instruction; set %s to a whisper-cli built for this CPU", enginePathEnv)
	case stderr == "":
		return fmt.Errorf("whisper transcribe failed: %w", err)
	default:
		return fmt.Errorf("whisper transcribe failed: %w (%s)", err, stderr)
	}
}

func containsAny(value string, patterns ...string) bool {
	for _, pattern := range patterns {
		if strings.Contains(value, pattern) {
			return true
		}
	}
	return false
}

func engineBinaryName() string {
	if runtime.GOOS == "windows" {
		return "whisper-cli.exe"
	}
	return "whisper-cli"
}

func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}

func normalizeArch(arch string) string {
	switch arch {
	case "x86_64":
		return "amd64"
	case "aarch64":
		return "arm64"
	default:
		return arch
	}
}
