// Package runtime provides the high-level API for decoding audio.
//
// # Quick Start
//
//	ctx := context.Background()
//	rt, err := runtime.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	// Open a session on the built-in decoder
//	s, err := rt.Open(ctx, wavBytes, "")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Dispose(ctx)
//
//	// One second starting at 0.5 s, channels averaged
//	samples, err := s.DecodeAudioData(ctx, 0.5, 1.0, audiodecoder.Options{})
//
// # Decoder Modules
//
// The locator passed to Open picks the decoder:
//
//	"", "native", "builtin"   - pure Go decoder (WAV, MP3, FLAC)
//	path or file:// URL       - WebAssembly module speaking the engine ABI
//
// # Offloading
//
// Offload runs the session in a worker goroutine and returns a controller
// whose decodes can be pipelined:
//
//	s, err := rt.Offload(ctx, data, "")
//	a := s.DecodeAsync(ctx, 0, 1, audiodecoder.Options{})
//	b := s.DecodeAsync(ctx, 1, 1, audiodecoder.Options{})
//	first, err := a.Wait(ctx)
//
// Handler and Connect do the same across processes over a websocket.
//
// # Thread Safety
//
// Runtime is safe for concurrent use. Sessions serialise their own decodes.
package runtime
