package voice

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BilliamsFluster/stockpilot/pkg/plan"
)

// FallbackReply is spoken verbatim when inference fails. The user always
// hears something rather than silence.
const FallbackReply = "Sorry, I didn't catch that. Could you say it again?"

// Reply is one inference turn's output: the spoken answer plus an optional
// action plan to run against the dashboard.
type Reply struct {
	Text  string
	Voice string
	Plan  []plan.Action
}

// Thinker is the remote inference collaborator.
type Thinker interface {
	Think(ctx context.Context, utterance string) (*Reply, error)
}

// Speaker renders a reply to audio and blocks until playback completes.
type Speaker interface {
	Speak(ctx context.Context, text, voice string) error
}

// PlanRunner executes an action plan and reports the per-step ledger.
type PlanRunner interface {
	Execute(ctx context.Context, raw []plan.Action) plan.Ledger
}

// Notifier signals session lifecycle to an external collaborator. Both calls
// are best-effort; failures never block the loop.
type Notifier interface {
	SessionStarted(ctx context.Context) error
	SessionStopped(ctx context.Context) error
}

// Loop is the listen/think/speak state machine. Exactly one capture and one
// playback are active at any time; the listening and speaking flags enforce
// the overlap rule. The only way to terminate a running loop is the stop
// handle returned by Start.
type Loop struct {
	recognizer Recognizer
	thinker    Thinker
	speaker    Speaker
	runner     PlanRunner
	notifier   Notifier
	policy     Policy
	logger     *zap.Logger

	voice        string
	onTranscript func(string)
	onReply      func(Reply)

	mu         sync.Mutex
	listening  bool
	speaking   bool
	stopped    bool
	playCancel context.CancelFunc
}

// LoopOption tunes a Loop.
type LoopOption func(*Loop)

// WithPolicy overrides the re-arm backoff policy.
func WithPolicy(p Policy) LoopOption {
	return func(l *Loop) { l.policy = p }
}

// WithNotifier registers the external session start/stop triggers.
func WithNotifier(n Notifier) LoopOption {
	return func(l *Loop) { l.notifier = n }
}

// WithVoice sets the voice used when a reply does not name one.
func WithVoice(voice string) LoopOption {
	return func(l *Loop) { l.voice = voice }
}

// WithOnTranscript registers a callback fired with each recognized utterance.
func WithOnTranscript(fn func(string)) LoopOption {
	return func(l *Loop) { l.onTranscript = fn }
}

// WithOnReply registers a callback fired with each reply before playback.
func WithOnReply(fn func(Reply)) LoopOption {
	return func(l *Loop) { l.onReply = fn }
}

func NewLoop(recognizer Recognizer, thinker Thinker, speaker Speaker, runner PlanRunner, logger *zap.Logger, opts ...LoopOption) *Loop {
	l := &Loop{
		recognizer: recognizer,
		thinker:    thinker,
		speaker:    speaker,
		runner:     runner,
		policy:     DefaultPolicy(),
		logger:     logger.Named("voice"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start launches the loop and returns its stop handle. Invoking the handle
// halts capture, cancels active playback, and ends the loop; it is safe to
// call more than once.
func (l *Loop) Start(ctx context.Context) (stop func()) {
	loopCtx, cancel := context.WithCancel(ctx)

	if l.notifier != nil {
		if err := l.notifier.SessionStarted(loopCtx); err != nil {
			l.logger.Warn("session start notification failed", zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		l.run(loopCtx)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.stopped = true
			if l.playCancel != nil {
				l.playCancel()
			}
			l.mu.Unlock()
			cancel()
			<-done
			if l.notifier != nil {
				if err := l.notifier.SessionStopped(context.Background()); err != nil {
					l.logger.Warn("session stop notification failed", zap.Error(err))
				}
			}
		})
	}
}

func (l *Loop) run(ctx context.Context) {
	for {
		if ctx.Err() != nil || l.isStopped() {
			return
		}
		if !l.beginListening() {
			// Another phase is still active; re-check on the short delay.
			if !sleep(ctx, l.policy.Short) {
				return
			}
			continue
		}

		transcript, err := l.recognizer.Capture(ctx)
		l.setListening(false)

		if ctx.Err() != nil || l.isStopped() {
			return
		}
		if err != nil {
			delay := l.policy.Delay(err)
			l.logger.Debug("capture retry",
				zap.Error(err),
				zap.Duration("delay", delay))
			if !sleep(ctx, delay) {
				return
			}
			continue
		}

		l.turn(ctx, transcript)
	}
}

// turn runs one recognized utterance through inference, then plays the reply
// and executes its plan concurrently. Failures are contained; the loop always
// re-arms afterwards.
func (l *Loop) turn(ctx context.Context, transcript string) {
	turnID := uuid.NewString()[:8]
	l.logger.Info("utterance recognized",
		zap.String("turn_id", turnID),
		zap.Int("transcript_len", len(transcript)))

	if l.onTranscript != nil {
		l.onTranscript(transcript)
	}

	l.setSpeaking(true)
	defer l.setSpeaking(false)

	reply, err := l.thinker.Think(ctx, transcript)
	if err != nil || reply == nil || reply.Text == "" {
		if err != nil {
			l.logger.Warn("inference failed, using fallback reply",
				zap.String("turn_id", turnID),
				zap.Error(err))
		}
		reply = &Reply{Text: FallbackReply}
	}
	if reply.Voice == "" {
		reply.Voice = l.voice
	}
	if l.onReply != nil {
		l.onReply(*reply)
	}

	playCtx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	l.playCancel = cancel
	l.mu.Unlock()
	defer func() {
		cancel()
		l.mu.Lock()
		l.playCancel = nil
		l.mu.Unlock()
	}()

	var g errgroup.Group
	g.Go(func() error {
		if err := l.speaker.Speak(playCtx, reply.Text, reply.Voice); err != nil {
			l.logger.Warn("playback failed",
				zap.String("turn_id", turnID),
				zap.Error(err))
		}
		return nil
	})
	if l.runner != nil && len(reply.Plan) > 0 {
		g.Go(func() error {
			ledger := l.runner.Execute(playCtx, reply.Plan)
			l.logger.Info("plan executed for turn",
				zap.String("turn_id", turnID),
				zap.Int("steps", len(ledger)),
				zap.Int("failures", ledger.Failures()))
			return nil
		})
	}
	_ = g.Wait()
}

func (l *Loop) beginListening() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped || l.listening || l.speaking {
		return false
	}
	l.listening = true
	return true
}

func (l *Loop) setListening(v bool) {
	l.mu.Lock()
	l.listening = v
	l.mu.Unlock()
}

func (l *Loop) setSpeaking(v bool) {
	l.mu.Lock()
	l.speaking = v
	l.mu.Unlock()
}

func (l *Loop) isStopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
