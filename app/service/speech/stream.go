package speech

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/rajjagirdar007/platemateuh/app/config"
)

// FFmpegCapture taps the configured input device and converts it to the
// 16kHz mono LINEAR16 PCM the recognizer expects.
type FFmpegCapture struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr io.ReadCloser
	mu     sync.Mutex
}

func NewFFmpegCapture(ctx context.Context, format, device string) (*FFmpegCapture, error) {
	args := []string{
		"-loglevel", "warning",
		"-f", format,
		"-i", device,
		"-ac", "1",
		"-ar", "16000",
		"-f", "s16le",
		"-",
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	slog.Debug("Running ffmpeg", "cmd", "ffmpeg "+strings.Join(args, " "))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	capture := &FFmpegCapture{
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	go capture.logStderr()

	return capture, nil
}

func (f *FFmpegCapture) Read(p []byte) (int, error) {
	return f.stdout.Read(p)
}

func (f *FFmpegCapture) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cmd.Process != nil {
		_ = f.cmd.Process.Kill()
	}

	return f.stdout.Close()
}

func (f *FFmpegCapture) logStderr() {
	scanner := bufio.NewScanner(f.stderr)
	for scanner.Scan() {
		slog.Debug("ffmpeg", "stderr", scanner.Text())
	}
}

type ffmpegSource struct {
	cfg *config.Config
}

func (s ffmpegSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return NewFFmpegCapture(ctx, s.cfg.Speech.InputFormat, s.cfg.Speech.InputDevice)
}
