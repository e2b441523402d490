// Package engine hosts decoder modules compiled to WebAssembly.
//
// This package wraps wazero. A decoder module is a core WebAssembly module
// that exports linear memory and a small C-style ABI (see abi.go); the host
// copies the input file into guest memory, asks the guest to probe and
// decode it, and reads float32 samples back out of guest memory.
//
// # Architecture
//
// The engine package provides three main types:
//
//	WazeroEngine   - Owns a wazero runtime and a cache of compiled modules
//	WazeroModule   - A compiled decoder module, can create instances
//	WazeroInstance - A running decoder; implements audiodecoder.Module
//
// # Instantiation Flow
//
//  1. WazeroEngine.Load() reads and compiles a module, or returns the cached one
//  2. WazeroModule.Instantiate() creates an anonymous instance with fresh memory
//  3. The instance's "_initialize" export runs, if present
//  4. Missing ABI exports close the instance and fail with an initialization error
//
// # Memory Records
//
// Results too wide for a single return value are written by the guest into
// a record the host allocates with ad_alloc:
//
//	Record       Layout (little-endian)                          Size
//	──────────────────────────────────────────────────────────────────
//	properties   u32 rate, u32 channels, f64 duration,           24
//	             u32 encoding_ptr, u32 encoding_len
//	samples      u32 ptr, u32 count                              8
//	string       u32 ptr, u32 len                                8
//
// Samples buffers stay owned by the guest until the host calls ad_release.
//
// # WASI
//
// Modules that import wasi_snapshot_preview1 get it linked on first
// instantiation. Guest stdout and stderr are written to the engine logger,
// line by line.
//
// # Thread Safety
//
// WazeroEngine and WazeroModule are safe for concurrent use.
// WazeroInstance is NOT thread-safe and should be used by a single goroutine.
//
// Most users should use the runtime package, which picks between this
// package and the native decoder by locator.
package engine
