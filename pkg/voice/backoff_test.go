package voice

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicyDelayClassification(t *testing.T) {
	p := Policy{Short: 100 * time.Millisecond, Long: 2 * time.Second}

	short := []error{
		nil,
		ErrNoSpeech,
		ErrCaptureUnavailable,
		fmt.Errorf("%w: device busy", ErrCaptureUnavailable),
		context.DeadlineExceeded,
		&net.DNSError{Err: "lookup failed", IsTimeout: true},
	}
	for _, err := range short {
		assert.Equal(t, p.Short, p.Delay(err), "err=%v", err)
	}

	long := []error{
		errors.New("model returned 500"),
		context.Canceled,
		errors.New("permission denied"),
	}
	for _, err := range long {
		assert.Equal(t, p.Long, p.Delay(err), "err=%v", err)
	}
}

func TestDefaultPolicyOrdering(t *testing.T) {
	p := DefaultPolicy()
	assert.Less(t, p.Short, p.Long)
}
