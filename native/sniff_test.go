package native

import (
	"testing"

	"github.com/wippyai/audio-decoder/testbed"
)

func TestSniff(t *testing.T) {
	wavData, err := testbed.WAV(testbed.WAVSpec{SampleRate: 8000, Channels: 1, BitDepth: 16, Frames: 80})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		data []byte
		want container
	}{
		{"wav", wavData, containerWAV},
		{"mpeg frame sync", []byte{0xFF, 0xFB, 0x90, 0x64, 0, 0, 0, 0, 0, 0, 0, 0}, containerMP3},
		{"garbage", testbed.Garbage(), containerUnknown},
		{"too short", []byte{0xFF}, containerUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := sniff(tt.data)
			if got != tt.want {
				t.Fatalf("sniff = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestHasFrameSync(t *testing.T) {
	tests := []struct {
		header []byte
		want   bool
	}{
		{[]byte{0xFF, 0xFB, 0x90, 0x64}, true},  // MPEG-1 layer III 128k
		{[]byte{0xFF, 0xF3, 0x40, 0x00}, true},  // MPEG-2 layer III
		{[]byte{0xFF, 0xFD, 0x90, 0x64}, false}, // layer II
		{[]byte{0xFF, 0xFB, 0xF0, 0x64}, false}, // bad bitrate index
		{[]byte{0xFF, 0xEB, 0x90, 0x64}, false}, // reserved version
		{[]byte{'R', 'I', 'F', 'F'}, false},
	}
	for _, tt := range tests {
		if got := hasFrameSync(tt.header); got != tt.want {
			t.Errorf("hasFrameSync(% x) = %v, want %v", tt.header, got, tt.want)
		}
	}
}
