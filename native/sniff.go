package native

import (
	"bytes"
	"fmt"

	"github.com/dhowden/tag"

	audiodecoder "github.com/wippyai/audio-decoder"
)

type container int

const (
	containerUnknown container = iota
	containerWAV
	containerMP3
	containerFLAC
)

func (c container) String() string {
	switch c {
	case containerWAV:
		return "wav"
	case containerMP3:
		return "mp3"
	case containerFLAC:
		return "flac"
	default:
		return "unknown"
	}
}

// sniff identifies the container of data. The second result names a
// recognised but unsupported container.
func sniff(data []byte) (container, string) {
	if len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")) {
		return containerWAV, ""
	}

	_, fileType, err := tag.Identify(bytes.NewReader(data))
	if err == nil {
		switch fileType {
		case tag.MP3:
			return containerMP3, ""
		case tag.FLAC:
			return containerFLAC, ""
		case "":
		default:
			return containerUnknown, string(fileType)
		}
	}

	if hasFrameSync(data) {
		return containerMP3, ""
	}
	return containerUnknown, ""
}

// hasFrameSync reports whether data starts with an MPEG audio frame header:
// 11 sync bits, a valid version, layer III.
func hasFrameSync(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	if data[0] != 0xFF || data[1]&0xE0 != 0xE0 {
		return false
	}
	version := (data[1] >> 3) & 0x03
	layer := (data[1] >> 1) & 0x03
	bitrate := data[2] >> 4
	return version != 0x01 && layer == 0x01 && bitrate != 0x0F
}

// open sniffs data and opens the matching stream.
func open(data []byte) (stream, audiodecoder.Status) {
	if len(data) == 0 {
		return nil, audiodecoder.Status{Code: audiodecoder.StatusInvalidData, Message: "empty input"}
	}

	kind, other := sniff(data)
	var (
		s   stream
		err error
	)
	switch kind {
	case containerWAV:
		s, err = openWAV(data)
	case containerMP3:
		s, err = openMP3(data)
	case containerFLAC:
		s, err = openFLAC(data)
	default:
		if other != "" {
			return nil, audiodecoder.Status{
				Code:    audiodecoder.StatusUnsupported,
				Message: fmt.Sprintf("unsupported container %s", other),
			}
		}
		return nil, audiodecoder.Status{
			Code:    audiodecoder.StatusInvalidData,
			Message: "invalid data found when processing input",
		}
	}
	if err != nil {
		return nil, audiodecoder.Status{
			Code:    audiodecoder.StatusInvalidData,
			Message: fmt.Sprintf("open %s stream: %v", kind, err),
		}
	}
	return s, audiodecoder.OK
}
