package audioio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
)

// CommandSource records by running a capture tool that writes raw PCM16 to
// stdout: arecord on Linux, sox's rec elsewhere.
type CommandSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	cancel   context.CancelFunc
	cmd      *exec.Cmd
	streamCh chan Chunk
	done     chan struct{}
}

// captureTool returns the program for this platform.
func captureTool() string {
	if runtime.GOOS == "linux" {
		return "arecord"
	}
	return "rec"
}

// CommandAvailable reports whether the capture tool is on PATH.
func CommandAvailable() bool {
	_, err := exec.LookPath(captureTool())
	return err == nil
}

// NewCommandSource creates a source that has not started recording yet.
func NewCommandSource(cfg Config, logger *slog.Logger) *CommandSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandSource{
		cfg:    cfg,
		logger: logger.With("component", "audioio.command"),
	}
}

func (s *CommandSource) args() []string {
	rate := strconv.Itoa(s.cfg.SampleRate)
	channels := strconv.Itoa(s.cfg.Channels)
	if captureTool() == "arecord" {
		args := []string{"-q", "-f", "S16_LE", "-r", rate, "-c", channels, "-t", "raw"}
		if s.cfg.Device != "" {
			args = append(args, "-D", s.cfg.Device)
		}
		return args
	}
	return []string{"-q", "-t", "raw", "-b", "16", "-e", "signed-integer", "-L", "-r", rate, "-c", channels, "-"}
}

// Start launches the capture tool.
func (s *CommandSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(runCtx, captureTool(), s.args()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start %s: %w", captureTool(), err)
	}

	s.running = true
	s.cancel = cancel
	s.cmd = cmd
	s.streamCh = make(chan Chunk, 10)
	s.done = make(chan struct{})

	go s.captureLoop(runCtx, stdout, s.streamCh, s.done)
	return nil
}

func (s *CommandSource) captureLoop(ctx context.Context, r io.Reader, out chan<- Chunk, done chan<- struct{}) {
	defer close(done)
	defer close(out)

	buf := make([]byte, s.cfg.BufferBytes())
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			chunk := Chunk{
				Samples:    BytesToSamples(buf[:n]),
				SampleRate: s.cfg.SampleRate,
				Channels:   s.cfg.Channels,
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) && ctx.Err() == nil {
				s.logger.Debug("capture read failed", "error", err)
			}
			return
		}
	}
}

// stop kills the capture tool and waits for it.
func (s *CommandSource) stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cancel()
	cmd, done := s.cmd, s.done
	s.mu.Unlock()

	<-done
	// Killed by our own cancel, so the exit status is not interesting.
	_ = cmd.Wait()
	return nil
}

// Read returns the next chunk.
func (s *CommandSource) Read(ctx context.Context) (Chunk, error) {
	s.mu.Lock()
	ch := s.streamCh
	s.mu.Unlock()
	if ch == nil {
		return Chunk{}, io.EOF
	}

	select {
	case <-ctx.Done():
		return Chunk{}, ctx.Err()
	case chunk, ok := <-ch:
		if !ok {
			return Chunk{}, io.EOF
		}
		return chunk, nil
	}
}

// Name returns "command".
func (s *CommandSource) Name() string {
	return "command"
}

// Close stops the source for good.
func (s *CommandSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.stop()
}

var _ Source = (*CommandSource)(nil)
