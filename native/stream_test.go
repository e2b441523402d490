package native

import (
	"io"
	"testing"

	audiodecoder "github.com/wippyai/audio-decoder"
)

// rampStream yields frame i with every channel set to float32(i).
type rampStream struct {
	props audiodecoder.Properties
	pos   int
	// maxRead caps frames per read to exercise short reads.
	maxRead int
}

func (s *rampStream) properties() audiodecoder.Properties { return s.props }

func (s *rampStream) read(dst []float32) (int, error) {
	ch := int(s.props.ChannelCount)
	total := int(s.props.Frames())
	if s.pos >= total {
		return 0, io.EOF
	}
	frames := len(dst) / ch
	if s.maxRead > 0 && frames > s.maxRead {
		frames = s.maxRead
	}
	if s.pos+frames > total {
		frames = total - s.pos
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < ch; c++ {
			dst[i*ch+c] = float32(s.pos+i) + float32(c)
		}
	}
	s.pos += frames
	return frames, nil
}

func (s *rampStream) close() error { return nil }

func TestFrameSpan(t *testing.T) {
	tests := []struct {
		start, duration float64
		rate            uint32
		first, count    int64
	}{
		{0.5, 1.0, 44100, 22050, 44100},
		{0, 0.1, 44100, 0, 4410},
		{0, audiodecoder.ToEnd, 8000, 0, -1},
		{0.3, 0.7, 48000, 14400, 33600},
	}
	for _, tt := range tests {
		first, count := frameSpan(tt.start, tt.duration, tt.rate)
		if first != tt.first || count != tt.count {
			t.Errorf("frameSpan(%v, %v, %d) = (%d, %d), want (%d, %d)",
				tt.start, tt.duration, tt.rate, first, count, tt.first, tt.count)
		}
	}
}

func TestDecodeRange_ShortReads(t *testing.T) {
	props := audiodecoder.Properties{SampleRate: 1000, ChannelCount: 3, Duration: 10}

	for _, maxRead := range []int{0, 1, 7, 5000} {
		s := &rampStream{props: props, maxRead: maxRead}
		got, err := decodeRange(s, 2.5, 1.0, audiodecoder.Options{MultiChannel: true})
		if err != nil {
			t.Fatalf("maxRead=%d: %v", maxRead, err)
		}
		if len(got) != 3000 {
			t.Fatalf("maxRead=%d: len = %d, want 3000", maxRead, len(got))
		}
		if got[0] != 2500 || got[1] != 2501 || got[2] != 2502 {
			t.Fatalf("maxRead=%d: first frame = %v", maxRead, got[:3])
		}
		if last := got[len(got)-3]; last != 3499 {
			t.Fatalf("maxRead=%d: last frame starts at %v, want 3499", maxRead, last)
		}
	}
}

func TestDecodeRange_Downmix(t *testing.T) {
	props := audiodecoder.Properties{SampleRate: 100, ChannelCount: 2, Duration: 1}
	got, err := decodeRange(&rampStream{props: props}, 0, audiodecoder.ToEnd, audiodecoder.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 100 {
		t.Fatalf("len = %d, want 100", len(got))
	}
	// frame i is (i, i+1), averaged to i+0.5
	for i, v := range got {
		if v != float32(i)+0.5 {
			t.Fatalf("sample %d = %v, want %v", i, v, float32(i)+0.5)
		}
	}
}

func TestDecodeRange_StartPastEnd(t *testing.T) {
	props := audiodecoder.Properties{SampleRate: 100, ChannelCount: 1, Duration: 1}
	got, err := decodeRange(&rampStream{props: props}, 5, 1, audiodecoder.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("got %v, want empty non-nil slice", got)
	}
}
