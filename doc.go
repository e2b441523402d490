// Package audiodecoder decodes compressed audio into float32 PCM, either in
// process or on a worker reached over a message channel.
//
// A session is opened on the bytes of one audio file. It probes the stream
// once, then answers any number of range decodes: a start time and a
// duration in seconds, with channels either averaged to mono or kept
// interleaved.
//
// # Architecture Overview
//
// The module is organized into several packages with distinct responsibilities:
//
//	audiodecoder/        Root package with Properties, Options and the Module interface
//	├── runtime/         High-level API for opening and offloading sessions
//	├── session/         In-process session: lifecycle and serialized decodes
//	├── decoder/         Binding that drives a decoder module through its memory file
//	├── native/          Pure Go decoder module (WAV, MP3, FLAC)
//	├── engine/          wazero host for decoder modules compiled to WebAssembly
//	├── offload/         Controller and worker loop for offloaded sessions
//	├── worker/          Message types and channels (in-memory pipe, websocket)
//	├── resource/        Handle table for staging buffers
//	├── errors/          Structured error types with phase and kind
//	└── testbed/         Fixtures: generated WAV files and a test decoder module
//
// # Quick Start
//
//	rt, err := runtime.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	s, err := rt.OpenFile(ctx, "speech.mp3", runtime.LocatorNative)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Dispose(ctx)
//
//	props, _ := s.Properties()
//	samples, err := s.DecodeAudioData(ctx, 0, audiodecoder.ToEnd, audiodecoder.Options{})
//
// # Ranges
//
// The first frame decoded is floor(start*sampleRate) and the frame count is
// ceil(duration*sampleRate), clamped to the end of the stream. ToEnd as the
// duration decodes everything from start. With MultiChannel set the result
// holds frames*channelCount samples, interleaved; otherwise frames samples.
//
// # Errors
//
// Every failure is an *errors.Error carrying a Kind (initialization, decode,
// protocol, resource) and the Phase that raised it. Errors that crossed a
// worker channel have Remote set and, for decodes, the RequestID of the
// request that failed. Match them with errors.Is against the sentinels:
//
//	if errors.Is(err, errors.ErrDecode) { ... }
//
// # Thread Safety
//
// Runtime is safe for concurrent use. A session serializes its decodes, so
// concurrent callers queue. An offloaded session accepts concurrent
// DecodeAsync calls and pipelines them on the channel; responses are matched
// to requests by id, not by order.
package audiodecoder
