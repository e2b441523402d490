package engine

import (
	"github.com/tetratelabs/wazero/api"
)

// Guest exports. Every decoder module must provide all of them.
//
//	ad_alloc(size i32) i32                     bump or heap allocation, 0 on failure
//	ad_free(ptr i32, size i32)
//	ad_load(ptr i32, len i32) i32              takes ownership of [ptr, ptr+len) on success
//	ad_unload() i32
//	ad_properties(out i32) i32                 writes a properties record
//	ad_decode(start f64, dur f64, multi i32, out i32) i32
//	                                           writes a samples record; the buffer
//	                                           may be set even on failure
//	ad_release(ptr i32)                        frees a samples buffer
//	ad_error(out i32) i32                      writes a string record for the last failure
//
// Status results follow the native convention: 0 or positive on success,
// negative codes on failure.
const (
	ExportMemory     = "memory"
	ExportAlloc      = "ad_alloc"
	ExportFree       = "ad_free"
	ExportLoad       = "ad_load"
	ExportUnload     = "ad_unload"
	ExportProperties = "ad_properties"
	ExportDecode     = "ad_decode"
	ExportRelease    = "ad_release"
	ExportError      = "ad_error"

	// Reactor modules export this; it runs before any other call.
	initializeFunc = "_initialize"

	wasiModuleName = "wasi_snapshot_preview1"
)

// Record layouts, little-endian.
const (
	// u32 sample_rate, u32 channels, f64 duration, u32 enc_ptr, u32 enc_len
	propertiesRecordSize = 24
	// u32 ptr, u32 count (samples buffer) or u32 ptr, u32 len (string)
	pairRecordSize = 8

	maxEncodingLen = 256
	maxErrorLen    = 4096
)

var requiredExports = []string{
	ExportAlloc,
	ExportFree,
	ExportLoad,
	ExportUnload,
	ExportProperties,
	ExportDecode,
	ExportRelease,
	ExportError,
}

// exports caches the guest's ABI functions.
type exports struct {
	alloc      api.Function
	free       api.Function
	load       api.Function
	unload     api.Function
	properties api.Function
	decode     api.Function
	release    api.Function
	lastError  api.Function
}

// lookupExports resolves every required export, returning the first name
// that is missing.
func lookupExports(mod api.Module) (exports, string) {
	fns := make(map[string]api.Function, len(requiredExports))
	for _, name := range requiredExports {
		fn := mod.ExportedFunction(name)
		if fn == nil {
			return exports{}, name
		}
		fns[name] = fn
	}
	return exports{
		alloc:      fns[ExportAlloc],
		free:       fns[ExportFree],
		load:       fns[ExportLoad],
		unload:     fns[ExportUnload],
		properties: fns[ExportProperties],
		decode:     fns[ExportDecode],
		release:    fns[ExportRelease],
		lastError:  fns[ExportError],
	}, ""
}

// readPair reads the two u32 fields of an 8-byte record.
func readPair(mem api.Memory, at uint32) (uint32, uint32, bool) {
	a, ok1 := mem.ReadUint32Le(at)
	b, ok2 := mem.ReadUint32Le(at + 4)
	return a, b, ok1 && ok2
}

func readString(mem api.Memory, ptr, n, limit uint32) (string, bool) {
	if n == 0 {
		return "", true
	}
	if n > limit {
		n = limit
	}
	b, ok := mem.Read(ptr, n)
	if !ok {
		return "", false
	}
	return string(b), true
}
