package native

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/tcolgate/mp3"

	audiodecoder "github.com/wippyai/audio-decoder"
)

// go-mp3 always outputs interleaved 16-bit little-endian stereo.
const (
	mp3Channels      = 2
	mp3BytesPerFrame = 4
)

type mp3Stream struct {
	decoder *gomp3.Decoder
	props   audiodecoder.Properties
	raw     []byte
}

func openMP3(data []byte) (*mp3Stream, error) {
	decoder, err := gomp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create MP3 decoder: %w", err)
	}

	rate := decoder.SampleRate()
	duration, err := mp3Duration(data)
	if err != nil || duration <= 0 {
		// Frame walk failed; fall back to the decoder's own length.
		if length := decoder.Length(); length > 0 && rate > 0 {
			duration = float64(length/mp3BytesPerFrame) / float64(rate)
		}
	}

	return &mp3Stream{
		decoder: decoder,
		props: audiodecoder.Properties{
			SampleRate:   uint32(rate),
			ChannelCount: mp3Channels,
			Encoding:     "mp3",
			Duration:     duration,
		},
	}, nil
}

// mp3Duration sums the durations of every frame in data.
func mp3Duration(data []byte) (float64, error) {
	decoder := mp3.NewDecoder(bytes.NewReader(data))
	var (
		frame   mp3.Frame
		skipped int
		total   float64
	)
	for {
		if err := decoder.Decode(&frame, &skipped); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, err
		}
		total += frame.Duration().Seconds()
	}
	return total, nil
}

func (s *mp3Stream) properties() audiodecoder.Properties {
	return s.props
}

func (s *mp3Stream) read(dst []float32) (int, error) {
	frames := len(dst) / mp3Channels
	size := frames * mp3BytesPerFrame
	if cap(s.raw) < size {
		s.raw = make([]byte, size)
	}
	raw := s.raw[:size]

	n, err := io.ReadFull(s.decoder, raw)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("read MP3 data: %w", err)
	}
	frames = n / mp3BytesPerFrame
	if frames == 0 {
		return 0, io.EOF
	}

	for i := 0; i < frames*mp3Channels; i++ {
		v := int16(raw[i*2]) | int16(raw[i*2+1])<<8
		dst[i] = float32(v) / 32768
	}
	return frames, nil
}

func (s *mp3Stream) close() error {
	return nil
}
