package voice

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sink is a live playback device at a fixed output rate. Resume unlocks a
// suspended device; Play blocks until the buffer has been rendered or ctx is
// cancelled.
type Sink interface {
	SampleRate() int
	Resume(ctx context.Context) error
	Play(ctx context.Context, pcm []int16) error
}

// SinkFactory opens the playback device. The player calls it at most once.
type SinkFactory func() (Sink, error)

// Player streams synthesized speech. One sink is created lazily on first use
// and reused for every later utterance; the primed flag makes the unlock
// attempt happen exactly once.
type Player struct {
	endpoint string
	factory  SinkFactory
	client   *http.Client
	logger   *zap.Logger

	// decode is swappable for tests.
	decode func(data []byte) (pcm []int16, sampleRate int, err error)

	mu     sync.Mutex
	sink   Sink
	primed bool
}

func NewPlayer(endpoint string, factory SinkFactory, logger *zap.Logger) *Player {
	return &Player{
		endpoint: endpoint,
		factory:  factory,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger.Named("player"),
		decode:   decodeOggOpus,
	}
}

// Speak fetches synthesized audio for (text, voice), decodes it, and plays it
// to completion. It returns only after playback ends or fails.
func (p *Player) Speak(ctx context.Context, text, voice string) error {
	sink, err := p.acquireSink(ctx)
	if err != nil {
		return err
	}

	data, err := p.fetch(ctx, text, voice)
	if err != nil {
		return err
	}

	pcm, rate, err := p.decode(data)
	if err != nil {
		return fmt.Errorf("decode speech audio: %w", err)
	}
	pcm = resample(pcm, rate, sink.SampleRate())

	p.logger.Debug("playing reply",
		zap.Int("samples", len(pcm)),
		zap.Int("rate", sink.SampleRate()))
	return sink.Play(ctx, pcm)
}

// acquireSink opens the device on first use and resumes it once. A sink that
// fails to resume is still used; some devices report resume errors while
// already running.
func (p *Player) acquireSink(ctx context.Context) (Sink, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sink == nil {
		sink, err := p.factory()
		if err != nil {
			return nil, fmt.Errorf("open playback device: %w", err)
		}
		p.sink = sink
	}
	if !p.primed {
		if err := p.sink.Resume(ctx); err != nil {
			p.logger.Warn("playback resume failed", zap.Error(err))
		}
		p.primed = true
	}
	return p.sink, nil
}

func (p *Player) fetch(ctx context.Context, text, voice string) ([]byte, error) {
	q := url.Values{}
	q.Set("text", text)
	q.Set("voice", voice)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build speech request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch speech audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("speech endpoint returned %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read speech audio: %w", err)
	}
	return data, nil
}
