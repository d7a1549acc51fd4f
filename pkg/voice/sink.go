package voice

import (
	"context"
	"encoding/binary"
	"fmt"
	"os/exec"
)

// CommandSink renders PCM by piping it into an external player command, the
// way "aplay -f S16_LE -r 48000 -c 1 -q -" consumes raw samples on stdin.
type CommandSink struct {
	rate int
	argv []string
}

func NewCommandSink(rate int, argv []string) (*CommandSink, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("playback sample rate must be positive")
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("playback command is empty")
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return nil, fmt.Errorf("playback command %q not found: %w", argv[0], err)
	}
	return &CommandSink{rate: rate, argv: argv}, nil
}

func (s *CommandSink) SampleRate() int { return s.rate }

// Resume is a no-op; a command pipeline needs no unlock gesture.
func (s *CommandSink) Resume(context.Context) error { return nil }

// Play spawns the player, streams the samples as little-endian 16-bit PCM,
// and waits for the pipeline to drain.
func (s *CommandSink) Play(ctx context.Context, pcm []int16) error {
	cmd := exec.CommandContext(ctx, s.argv[0], s.argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open player stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start player: %w", err)
	}

	buf := make([]byte, len(pcm)*2)
	for i, v := range pcm {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	_, writeErr := stdin.Write(buf)
	stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("player exited: %w", err)
	}
	return writeErr
}
