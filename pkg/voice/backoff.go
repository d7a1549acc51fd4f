package voice

import (
	"context"
	"errors"
	"net"
	"time"
)

// Policy maps a classified capture failure to a re-arm delay. Transient
// failures (nothing said, capture device busy, network hiccup) retry on the
// short delay; anything else backs off on the long one.
type Policy struct {
	Short time.Duration
	Long  time.Duration
}

// DefaultPolicy is tuned for a conversational cadence: silence re-arms almost
// immediately, a broken device or API waits long enough to not spin.
func DefaultPolicy() Policy {
	return Policy{
		Short: 500 * time.Millisecond,
		Long:  3 * time.Second,
	}
}

// Delay classifies err and returns the re-arm delay for it. A nil error (an
// empty but successful turn) counts as transient.
func (p Policy) Delay(err error) time.Duration {
	if transient(err) {
		return p.Short
	}
	return p.Long
}

func transient(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, ErrNoSpeech) || errors.Is(err, ErrCaptureUnavailable) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
