package worker

import (
	audiodecoder "github.com/wippyai/audio-decoder"
	"github.com/wippyai/audio-decoder/errors"
)

// MessageType tags a channel message.
type MessageType string

const (
	// TypeInitialize carries the file to the worker, and the worker's ack
	// (properties or error) back.
	TypeInitialize MessageType = "initialize"
	// TypeDecode carries a decode request to the worker, and its samples back.
	TypeDecode MessageType = "decode"
	// TypeDecodeError answers a decode request that failed.
	TypeDecodeError MessageType = "decodeError"
	// TypeDispose tells the worker to release its session. It has no reply.
	TypeDispose MessageType = "dispose"
)

// Message is the unit exchanged over a Channel. Payload and Samples are
// transferred: after Send the sender must not touch them.
type Message struct {
	Type       MessageType              `json:"type"`
	ID         uint64                   `json:"id,omitempty"`
	Locator    string                   `json:"locator,omitempty"`
	Start      float64                  `json:"start,omitempty"`
	Duration   float64                  `json:"duration,omitempty"`
	Options    *audiodecoder.Options    `json:"options,omitempty"`
	Properties *audiodecoder.Properties `json:"properties,omitempty"`
	Error      *errors.Wire             `json:"error,omitempty"`

	// Payload is the input file of an initialize request.
	Payload []byte `json:"-"`
	// Samples is the result of a decode response.
	Samples []float32 `json:"-"`
}

// Initialize builds the request that hands data to a worker.
func Initialize(data []byte, locator string) Message {
	return Message{Type: TypeInitialize, Locator: locator, Payload: data}
}

// InitializeAck builds the successful reply to Initialize.
func InitializeAck(props audiodecoder.Properties) Message {
	return Message{Type: TypeInitialize, Properties: &props}
}

// InitializeFailed builds the failed reply to Initialize.
func InitializeFailed(err *errors.Wire) Message {
	return Message{Type: TypeInitialize, Error: err}
}

// Decode builds a decode request.
func Decode(id uint64, start, duration float64, opts audiodecoder.Options) Message {
	return Message{Type: TypeDecode, ID: id, Start: start, Duration: duration, Options: &opts}
}

// DecodeResult builds the successful reply to a decode request.
func DecodeResult(id uint64, samples []float32) Message {
	if samples == nil {
		samples = []float32{}
	}
	return Message{Type: TypeDecode, ID: id, Samples: samples}
}

// DecodeError builds the failed reply to a decode request.
func DecodeError(id uint64, err *errors.Wire) Message {
	return Message{Type: TypeDecodeError, ID: id, Error: err}
}

// Dispose builds the fire-and-forget teardown notice.
func Dispose() Message {
	return Message{Type: TypeDispose}
}

// DecodeOptions returns the request's options, defaulting when absent.
func (m Message) DecodeOptions() audiodecoder.Options {
	if m.Options == nil {
		return audiodecoder.Options{}
	}
	return *m.Options
}
