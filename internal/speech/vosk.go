package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultSampleRate     = 16000
	defaultSilenceTimeout = 1200 * time.Millisecond
	defaultMaxDuration    = 30 * time.Second

	// The server answers every audio chunk; a stuck read means the
	// connection is gone.
	readTimeout = 10 * time.Second
)

// Config describes how to reach the Vosk server and when to stop listening.
type Config struct {
	// ServerURL is the websocket endpoint, e.g. ws://localhost:2700.
	ServerURL string
	// SampleRate of the PCM audio the source produces.
	SampleRate int
	// SilenceTimeout ends the session when no new speech is recognized for
	// this long.
	SilenceTimeout time.Duration
	// MaxDuration caps the total length of one listening session.
	MaxDuration time.Duration
}

// Transcriber turns a PCM audio source into transcript segments by streaming
// it to a Vosk recognition server over a websocket. Each Listen call dials a
// fresh connection, so a transcriber is restartable per listening session.
type Transcriber struct {
	serverURL      string
	sampleRate     int
	silenceTimeout time.Duration
	maxDuration    time.Duration
	dialer         *websocket.Dialer
	logger         *zap.Logger
}

// NewTranscriber validates the config and builds a transcriber.
func NewTranscriber(cfg *Config, logger *zap.Logger) (*Transcriber, error) {
	if cfg == nil || strings.TrimSpace(cfg.ServerURL) == "" {
		return nil, errors.New("vosk server url is required")
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}

	silenceTimeout := cfg.SilenceTimeout
	if silenceTimeout <= 0 {
		silenceTimeout = defaultSilenceTimeout
	}

	maxDuration := cfg.MaxDuration
	if maxDuration <= 0 {
		maxDuration = defaultMaxDuration
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Transcriber{
		serverURL:      strings.TrimSpace(cfg.ServerURL),
		sampleRate:     sampleRate,
		silenceTimeout: silenceTimeout,
		maxDuration:    maxDuration,
		dialer:         websocket.DefaultDialer,
		logger:         logger,
	}, nil
}

// Listen runs one listening session. Segments carry the growing transcript;
// the last segment is marked Final. The segment channel is closed when the
// session ends, after which the error channel reports at most one error.
func (t *Transcriber) Listen(ctx context.Context, src Source) (<-chan Segment, <-chan error) {
	segments := make(chan Segment, 16)
	errc := make(chan error, 1)

	go func() {
		defer close(errc)
		defer close(segments)
		if err := t.run(ctx, src, segments); err != nil {
			errc <- err
		}
	}()

	return segments, errc
}

func (t *Transcriber) run(ctx context.Context, src Source, segments chan<- Segment) error {
	conn, _, err := t.dialer.DialContext(ctx, t.serverURL, nil)
	if err != nil {
		return fmt.Errorf("dial vosk server %q: %w", t.serverURL, err)
	}
	defer conn.Close()

	cfg := fmt.Sprintf(`{"config": {"sample_rate": %d}}`, t.sampleRate)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(cfg)); err != nil {
		return fmt.Errorf("send recognizer config: %w", err)
	}

	t.logger.Debug("listening started",
		zap.String("server", t.serverURL),
		zap.Int("sample_rate", t.sampleRate),
	)

	start := time.Now()
	lastSpeech := start
	var final strings.Builder

	emit := func(text string, isFinal bool) bool {
		text = strings.TrimSpace(text)
		if text == "" {
			return true
		}
		select {
		case segments <- Segment{Text: text, Final: isFinal}:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if time.Since(start) > t.maxDuration {
			t.logger.Debug("listening stopped", zap.String("reason", "max duration reached"))
			break
		}
		if time.Since(lastSpeech) > t.silenceTimeout {
			t.logger.Debug("listening stopped", zap.String("reason", "silence timeout"))
			break
		}

		chunk, err := src.Read(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read audio: %w", err)
		}
		if len(chunk) == 0 {
			continue
		}

		if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			return fmt.Errorf("send audio: %w", err)
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read recognition result: %w", err)
		}

		res, err := decodeResult(payload)
		if err != nil {
			return err
		}

		switch {
		case res.Text != "":
			if final.Len() > 0 {
				final.WriteString(" ")
			}
			final.WriteString(res.Text)
			lastSpeech = time.Now()
			if !emit(final.String(), false) {
				return ctx.Err()
			}
		case res.Partial != "":
			lastSpeech = time.Now()
			if !emit(final.String()+" "+res.Partial, false) {
				return ctx.Err()
			}
		}
	}

	// Flush the recognizer and collect the trailing utterance.
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"eof" : 1}`)); err != nil {
		return fmt.Errorf("send eof: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	if _, payload, err := conn.ReadMessage(); err == nil {
		if res, derr := decodeResult(payload); derr == nil && res.Text != "" {
			if final.Len() > 0 {
				final.WriteString(" ")
			}
			final.WriteString(res.Text)
		}
	}

	if !emit(final.String(), true) {
		return ctx.Err()
	}

	return nil
}

type recognitionResult struct {
	Text    string `json:"text"`
	Partial string `json:"partial"`
}

func decodeResult(payload []byte) (*recognitionResult, error) {
	var res recognitionResult
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, fmt.Errorf("parse recognizer payload: %w", err)
	}

	res.Text = strings.TrimSpace(res.Text)
	res.Partial = strings.TrimSpace(res.Partial)

	return &res, nil
}
