package voice

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pion/opus"
	"github.com/pion/opus/pkg/oggreader"
	"github.com/zeozeozeo/gomplerate"
)

// maxOpusFrame is the largest Opus frame per channel (120ms at 48kHz).
const maxOpusFrame = 5760

// decodeOggOpus decodes an OGG/Opus stream into mono int16 PCM and reports
// the stream's sample rate. The decoder is known to panic on some streams, so
// the whole decode runs behind a recover.
func decodeOggOpus(data []byte) (pcm []int16, sampleRate int, err error) {
	defer func() {
		if r := recover(); r != nil {
			pcm, sampleRate = nil, 0
			err = fmt.Errorf("opus decoder panic: %v", r)
		}
	}()
	return decodeOggOpusUnsafe(data)
}

func decodeOggOpusUnsafe(data []byte) ([]int16, int, error) {
	ogg, header, err := oggreader.NewWith(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("parse ogg container: %w", err)
	}
	channels := int(header.Channels)
	if channels < 1 {
		channels = 1
	}

	decoder := opus.NewDecoder()
	out := make([]byte, maxOpusFrame*channels*2)

	var samples []int16
	for {
		segments, _, err := ogg.ParseNextPage()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("parse ogg page: %w", err)
		}
		for _, segment := range segments {
			if len(segment) == 0 {
				continue
			}
			_, isStereo, err := decoder.Decode(segment, out)
			if err != nil {
				// Malformed packets are dropped, not fatal.
				continue
			}
			frameChannels := 1
			if isStereo {
				frameChannels = 2
			}
			frame := pcmFromBytes(out)
			if frameChannels > 1 {
				frame = downmix(frame, frameChannels)
			}
			samples = append(samples, frame...)
		}
	}

	if len(samples) == 0 {
		return nil, 0, fmt.Errorf("no audio samples decoded")
	}
	return samples, int(header.SampleRate), nil
}

// pcmFromBytes reads little-endian int16 samples, stopping at the trailing
// all-zero region of the decode buffer.
func pcmFromBytes(buf []byte) []int16 {
	samples := make([]int16, 0, len(buf)/2)
	for i := 0; i+1 < len(buf); i += 2 {
		v := int16(binary.LittleEndian.Uint16(buf[i : i+2]))
		if v == 0 && i > 0 && allZero(buf[i:]) {
			break
		}
		samples = append(samples, v)
	}
	return samples
}

func allZero(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}

// downmix averages interleaved channels into mono.
func downmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	mono := make([]int16, len(samples)/channels)
	for i := range mono {
		var sum int32
		for ch := 0; ch < channels; ch++ {
			sum += int32(samples[i*channels+ch])
		}
		mono[i] = int16(sum / int32(channels))
	}
	return mono
}

// resample converts mono PCM between sample rates. On resampler failure the
// input passes through unchanged; a pitch-shifted reply beats no reply.
func resample(samples []int16, from, to int) []int16 {
	if from == to || from <= 0 || to <= 0 {
		return samples
	}
	r, err := gomplerate.NewResampler(1, from, to)
	if err != nil {
		return samples
	}
	return r.ResampleInt16(samples)
}
