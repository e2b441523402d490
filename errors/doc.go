// Package errors provides structured error types for the audio decoder.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). Kind is the taxonomy callers branch on:
//
//	KindInitialization  the decoder could not open or probe the input
//	KindDecode          the decoder failed on a requested range
//	KindProtocol        a response matched no pending request, or the channel failed
//	KindResource        an operation hit a disposed or uninitialized session
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseBinding, errors.KindDecode).
//		Status(-22).
//		Detail("invalid range start=%v", start).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Initialization(errors.PhaseBinding, "probe file", cause)
//	err := errors.Unmatched(errors.PhaseController, "decode", id)
//
// The sentinels ErrInitialization, ErrDecode, ErrProtocol and ErrResource
// match any phase, so callers can write errors.Is(err, errors.ErrDecode).
//
// Errors raised inside a worker cross the channel as a Wire value and are
// rebuilt with Remote set and the originating request id attached.
package errors
