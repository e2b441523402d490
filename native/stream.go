package native

import (
	"errors"
	"io"
	"math"

	audiodecoder "github.com/wippyai/audio-decoder"
)

// stream is one opened container, positioned at its first frame.
type stream interface {
	properties() audiodecoder.Properties
	// read fills dst with interleaved samples normalised to [-1, 1] and
	// returns the number of whole frames read. It returns io.EOF once the
	// stream is exhausted.
	read(dst []float32) (int, error)
	close() error
}

const chunkFrames = 4096

// frameTolerance absorbs float error in duration*rate so that 0.1s at
// 44100 Hz is 4410 frames, not 4411.
const frameTolerance = 1e-9

// frameSpan converts a time range into a first frame and a frame count.
// A count of -1 means read to the end of the stream.
func frameSpan(start, duration float64, rate uint32) (first, count int64) {
	first = int64(math.Floor(start*float64(rate) + frameTolerance))
	if duration == audiodecoder.ToEnd {
		return first, -1
	}
	return first, int64(math.Ceil(duration*float64(rate) - frameTolerance))
}

// decodeRange reads the requested span of s. A start beyond the end of the
// stream clamps to the end and yields no samples. The result holds exactly
// the requested frame count unless the stream ends first.
func decodeRange(s stream, start, duration float64, opts audiodecoder.Options) ([]float32, error) {
	props := s.properties()
	channels := int(props.ChannelCount)
	if channels == 0 {
		return nil, errors.New("stream has no channels")
	}

	first, count := frameSpan(start, duration, props.SampleRate)
	if total := props.Frames(); total > 0 && first >= total {
		return []float32{}, nil
	}

	outChannels := 1
	if opts.MultiChannel {
		outChannels = channels
	}

	var out []float32
	if count >= 0 {
		out = make([]float32, 0, int(count)*outChannels)
	} else if total := props.Frames(); total > first {
		out = make([]float32, 0, int(total-first)*outChannels)
	}

	chunk := make([]float32, chunkFrames*channels)
	skip := first
	for count != 0 {
		want := chunkFrames
		if skip > 0 && skip < int64(want) {
			want = int(skip)
		} else if skip == 0 && count > 0 && count < int64(want) {
			want = int(count)
		}

		n, err := s.read(chunk[:want*channels])
		if n > 0 {
			frames := chunk[:n*channels]
			if skip > 0 {
				skip -= int64(n)
			} else {
				if opts.MultiChannel {
					out = append(out, frames...)
				} else {
					out = appendDownmix(out, frames, channels)
				}
				if count > 0 {
					count -= int64(n)
				}
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
	}

	if out == nil {
		out = []float32{}
	}
	return out, nil
}

// appendDownmix averages each interleaved frame to one sample.
func appendDownmix(out, frames []float32, channels int) []float32 {
	if channels == 1 {
		return append(out, frames...)
	}
	inv := 1 / float32(channels)
	for i := 0; i+channels <= len(frames); i += channels {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += frames[i+c]
		}
		out = append(out, sum*inv)
	}
	return out
}
