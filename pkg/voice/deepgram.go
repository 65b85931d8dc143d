package voice

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/listen"

	"github.com/teslashibe/go-lumen/pkg/audioio"
)

// liveSession is the part of the Deepgram websocket client we use.
type liveSession interface {
	Connect() bool
	Stream(r io.Reader) error
	// Finalize asks the server to flush transcripts for audio already sent.
	Finalize() error
	Stop()
}

// DeepgramConfig configures the Deepgram recognizer.
type DeepgramConfig struct {
	APIKey   string
	Language string
	Model    string
	// Grace is the longest wait for the final transcript after the clip
	// has been sent. It never exceeds the listen timeout.
	Grace time.Duration
}

// Deepgram records a clip and transcribes it with Deepgram's live API.
type Deepgram struct {
	cfg    DeepgramConfig
	rec    *audioio.Recorder
	logger *slog.Logger
	dial   func(ctx context.Context, cb *transcriptCollector) (liveSession, error)
}

// NewDeepgram creates a recognizer that records through rec.
func NewDeepgram(cfg DeepgramConfig, rec *audioio.Recorder, logger *slog.Logger) *Deepgram {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Grace == 0 {
		cfg.Grace = 1500 * time.Millisecond
	}
	d := &Deepgram{
		cfg:    cfg,
		rec:    rec,
		logger: logger.With("component", "voice.deepgram"),
	}
	d.dial = d.dialLive
	return d
}

func (d *Deepgram) dialLive(ctx context.Context, cb *transcriptCollector) (liveSession, error) {
	audio := d.rec.Config()
	opts := &interfaces.LiveTranscriptionOptions{
		Language:       d.cfg.Language,
		Encoding:       "linear16",
		SampleRate:     audio.SampleRate,
		Channels:       audio.Channels,
		Endpointing:    "100",
		InterimResults: false,
		Model:          d.cfg.Model,
	}
	client, err := listen.NewWebSocketUsingCallback(ctx, d.cfg.APIKey, &interfaces.ClientOptions{}, opts, cb)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// ListenOnce records for timeout and returns the final transcript. The
// upload and the wait for a transcript together take at most
// min(Grace, timeout) after recording.
func (d *Deepgram) ListenOnce(ctx context.Context, timeout time.Duration) string {
	samples, err := d.rec.Record(ctx, timeout)
	if err != nil {
		d.logger.Debug("record failed", "error", err)
		return ErrTextAudioUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, min(d.cfg.Grace, timeout))
	defer cancel()

	cb := newTranscriptCollector(d.logger)
	sess, err := d.dial(ctx, cb)
	if err != nil {
		d.logger.Warn("create live client failed", "error", err)
		return ErrTextServiceUnavailable
	}
	if !sess.Connect() {
		d.logger.Warn("connect failed")
		return ErrTextServiceUnavailable
	}
	defer sess.Stop()

	if err := sess.Stream(bytes.NewReader(audioio.SamplesToBytes(samples))); err != nil && !errors.Is(err, io.EOF) {
		d.logger.Warn("stream failed", "error", err)
		return ErrTextServiceUnavailable
	}
	if err := sess.Finalize(); err != nil {
		d.logger.Debug("finalize failed", "error", err)
	}

	select {
	case <-cb.done:
	case <-ctx.Done():
		d.logger.Debug("no final transcript before deadline")
	}
	return cb.text()
}

// transcriptCollector gathers final transcripts from the live callback.
type transcriptCollector struct {
	logger *slog.Logger

	mu    sync.Mutex
	parts []string
	once  sync.Once
	done  chan struct{}
}

func newTranscriptCollector(logger *slog.Logger) *transcriptCollector {
	return &transcriptCollector{logger: logger, done: make(chan struct{})}
}

func (c *transcriptCollector) finish() {
	c.once.Do(func() { close(c.done) })
}

func (c *transcriptCollector) text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.parts, " ")
}

func (c *transcriptCollector) Open(*msginterfaces.OpenResponse) error {
	return nil
}

func (c *transcriptCollector) Message(mr *msginterfaces.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	transcript := strings.TrimSpace(mr.Channel.Alternatives[0].Transcript)
	if transcript != "" && mr.IsFinal {
		c.mu.Lock()
		c.parts = append(c.parts, transcript)
		c.mu.Unlock()
	}
	if mr.SpeechFinal {
		c.finish()
	}
	return nil
}

func (c *transcriptCollector) Metadata(*msginterfaces.MetadataResponse) error {
	return nil
}

func (c *transcriptCollector) SpeechStarted(*msginterfaces.SpeechStartedResponse) error {
	return nil
}

func (c *transcriptCollector) UtteranceEnd(*msginterfaces.UtteranceEndResponse) error {
	c.finish()
	return nil
}

func (c *transcriptCollector) Close(*msginterfaces.CloseResponse) error {
	c.finish()
	return nil
}

func (c *transcriptCollector) Error(er *msginterfaces.ErrorResponse) error {
	c.logger.Warn("deepgram error", "error", er)
	c.finish()
	return nil
}

func (c *transcriptCollector) UnhandledEvent(data []byte) error {
	c.logger.Debug("unhandled event", "data", string(data))
	return nil
}

var _ Recognizer = (*Deepgram)(nil)
