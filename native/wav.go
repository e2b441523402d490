package native

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	audiodecoder "github.com/wippyai/audio-decoder"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

type wavStream struct {
	decoder  *wav.Decoder
	props    audiodecoder.Properties
	bitDepth int
	channels int
	buf      *audio.IntBuffer
}

func openWAV(data []byte) (*wavStream, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}
	if f := decoder.WavAudioFormat; f != wavFormatPCM && f != wavFormatExtensible {
		return nil, fmt.Errorf("unsupported WAV sample format %d", f)
	}
	if err := decoder.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("seek to PCM data: %w", err)
	}

	channels := int(decoder.NumChans)
	bitDepth := int(decoder.BitDepth)
	if channels < 1 || bitDepth < 8 {
		return nil, fmt.Errorf("invalid WAV format: %d channels, %d bits", channels, bitDepth)
	}

	frames := decoder.PCMLen() / int64(bitDepth/8) / int64(channels)
	props := audiodecoder.Properties{
		SampleRate:   decoder.SampleRate,
		ChannelCount: uint32(channels),
		Encoding:     wavEncoding(bitDepth),
	}
	if decoder.SampleRate > 0 {
		props.Duration = float64(frames) / float64(decoder.SampleRate)
	}

	return &wavStream{
		decoder:  decoder,
		props:    props,
		bitDepth: bitDepth,
		channels: channels,
		buf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: channels,
				SampleRate:  int(decoder.SampleRate),
			},
			SourceBitDepth: bitDepth,
		},
	}, nil
}

// wavEncoding names the codec the way ffmpeg does.
func wavEncoding(bitDepth int) string {
	if bitDepth == 8 {
		return "pcm_u8"
	}
	return fmt.Sprintf("pcm_s%dle", bitDepth)
}

func (s *wavStream) properties() audiodecoder.Properties {
	return s.props
}

func (s *wavStream) read(dst []float32) (int, error) {
	if cap(s.buf.Data) < len(dst) {
		s.buf.Data = make([]int, len(dst))
	}
	s.buf.Data = s.buf.Data[:len(dst)]

	n, err := s.decoder.PCMBuffer(s.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("read PCM buffer: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}

	frames := n / s.channels
	n = frames * s.channels
	if s.bitDepth == 8 {
		for i := 0; i < n; i++ {
			dst[i] = float32(s.buf.Data[i]-128) / 128
		}
	} else {
		maxVal := float32(audio.IntMaxSignedValue(s.bitDepth))
		for i := 0; i < n; i++ {
			dst[i] = float32(s.buf.Data[i]) / maxVal
		}
	}
	return frames, nil
}

func (s *wavStream) close() error {
	return nil
}
