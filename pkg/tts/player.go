package tts

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"
)

// Player plays a synthesized result.
type Player interface {
	Play(ctx context.Context, audio *AudioResult) error
}

// CommandPlayer writes audio to a temp file and plays it with aplay on
// Linux or afplay on macOS, with ffplay as a last resort.
type CommandPlayer struct {
	run runFunc
}

// NewCommandPlayer returns a player backed by system tools.
func NewCommandPlayer() *CommandPlayer {
	return &CommandPlayer{run: runCommand}
}

// Play blocks until playback finishes or ctx is cancelled.
func (p *CommandPlayer) Play(ctx context.Context, audio *AudioResult) error {
	if audio == nil || len(audio.Audio) == 0 {
		return nil
	}

	f, err := os.CreateTemp("", "lumen-tts-*"+audio.Format.Encoding.FileExt())
	if err != nil {
		return fmt.Errorf("tts: temp file: %w", err)
	}
	name := f.Name()
	defer os.Remove(name)

	if _, err := f.Write(audio.Audio); err != nil {
		f.Close()
		return fmt.Errorf("tts: write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("tts: close temp file: %w", err)
	}

	bin, args, err := playerCommand(runtime.GOOS, audio.Format, name)
	if err != nil {
		return err
	}
	_, err = p.run(ctx, bin, args, nil)
	return err
}

// playerCommand picks a player for the platform and encoding.
func playerCommand(goos string, format AudioFormat, path string) (string, []string, error) {
	switch {
	case goos == "darwin" && format.Encoding != EncodingPCM16 && format.Encoding != EncodingPCM22:
		if bin, ok := lookPath("afplay"); ok {
			return bin, []string{path}, nil
		}
	case format.Encoding == EncodingWAV:
		if bin, ok := lookPath("aplay"); ok {
			return bin, []string{"-q", path}, nil
		}
	case format.Encoding == EncodingPCM16 || format.Encoding == EncodingPCM22:
		if bin, ok := lookPath("aplay"); ok {
			rate := format.SampleRate
			if rate == 0 {
				rate = 16000
			}
			return bin, []string{"-q", "-f", "S16_LE", "-c", "1", "-r", strconv.Itoa(rate), path}, nil
		}
	}
	if bin, ok := lookPath("ffplay"); ok {
		return bin, []string{"-nodisp", "-autoexit", "-loglevel", "quiet", path}, nil
	}
	return "", nil, ErrNoPlayer
}

var _ Player = (*CommandPlayer)(nil)
