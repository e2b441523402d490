package native

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"

	audiodecoder "github.com/wippyai/audio-decoder"
)

type flacStream struct {
	stream   *flac.Stream
	props    audiodecoder.Properties
	channels int
	// pending holds interleaved samples of the current frame not yet read.
	pending []float32
}

func openFLAC(data []byte) (*flacStream, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create FLAC decoder: %w", err)
	}

	info := stream.Info
	if info.NChannels == 0 || info.SampleRate == 0 {
		stream.Close()
		return nil, errors.New("invalid FLAC stream info")
	}

	return &flacStream{
		stream:   stream,
		channels: int(info.NChannels),
		props: audiodecoder.Properties{
			SampleRate:   info.SampleRate,
			ChannelCount: uint32(info.NChannels),
			Encoding:     "flac",
			Duration:     float64(info.NSamples) / float64(info.SampleRate),
		},
	}, nil
}

func (s *flacStream) properties() audiodecoder.Properties {
	return s.props
}

func (s *flacStream) read(dst []float32) (int, error) {
	written := 0
	for written < len(dst) {
		if len(s.pending) == 0 {
			if err := s.nextFrame(); err != nil {
				if errors.Is(err, io.EOF) && written > 0 {
					break
				}
				return written / s.channels, err
			}
		}
		n := copy(dst[written:], s.pending)
		s.pending = s.pending[n:]
		written += n
	}
	return written / s.channels, nil
}

func (s *flacStream) nextFrame() error {
	frame, err := s.stream.ParseNext()
	if err != nil {
		return err
	}
	if len(frame.Subframes) != s.channels {
		return fmt.Errorf("frame has %d subframes, stream has %d channels", len(frame.Subframes), s.channels)
	}

	maxVal := float32(int64(1) << (frame.BitsPerSample - 1))
	count := len(frame.Subframes[0].Samples)
	if cap(s.pending) < count*s.channels {
		s.pending = make([]float32, count*s.channels)
	}
	s.pending = s.pending[:count*s.channels]
	for i := 0; i < count; i++ {
		for c, sub := range frame.Subframes {
			s.pending[i*s.channels+c] = float32(sub.Samples[i]) / maxVal
		}
	}
	return nil
}

func (s *flacStream) close() error {
	return s.stream.Close()
}
