// Package voice owns the listen/think/speak loop that drives the automation
// agent end to end: single-shot speech capture, remote inference, synthesized
// playback, and the re-arm policy between turns.
package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Capture failure taxonomy. The backoff policy classifies against these.
var (
	ErrNoSpeech           = errors.New("no speech detected")
	ErrCaptureUnavailable = errors.New("audio capture unavailable")
)

// Source produces one recorded utterance per call. Record blocks until the
// utterance is complete (silence detection, push-to-talk release, whatever
// the device layer implements) and returns its encoded audio.
type Source interface {
	Record(ctx context.Context) (io.ReadCloser, error)
}

// Recognizer turns one utterance into text. Capture is single-shot: one call,
// one recording, one transcript.
type Recognizer interface {
	Capture(ctx context.Context) (string, error)
}

// WhisperRecognizer transcribes captured audio through the Whisper endpoint.
// The API accepts OGG/Opus directly so the recording is sent as-is.
type WhisperRecognizer struct {
	source Source
	client *openai.Client
	model  string
}

func NewWhisperRecognizer(source Source, apiKey, model string) (*WhisperRecognizer, error) {
	if apiKey == "" {
		return nil, errors.New("transcription API key not configured")
	}
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperRecognizer{
		source: source,
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

// Capture records one utterance and transcribes it. An empty transcript is
// reported as ErrNoSpeech so the loop can re-arm on the short delay.
func (r *WhisperRecognizer) Capture(ctx context.Context) (string, error) {
	rec, err := r.source.Record(ctx)
	if err != nil {
		if errors.Is(err, ErrNoSpeech) {
			return "", ErrNoSpeech
		}
		return "", fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
	}
	defer rec.Close()

	resp, err := r.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    r.model,
		Reader:   rec,
		FilePath: "utterance.ogg",
	})
	if err != nil {
		return "", fmt.Errorf("transcribe utterance: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}
