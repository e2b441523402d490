package testbed

import (
	"encoding/binary"
	"math"
)

// Guest describes a minimal decoder module that speaks the engine ABI
// without decoding anything real. Properties are fixed (8000 Hz, 2 channels,
// 0.5 s, encoding "test"); decode returns GuestSamples, all four for a
// multi-channel request and the first two otherwise; starts beyond
// GuestMaxStart fail with status -22 and the error text "bad range". Every
// ad_release increments the exported i32 global "released".
type Guest struct {
	// Omit drops one export by name, to exercise export validation.
	Omit string
	// WASI imports fd_write and prints GuestGreeting from _initialize.
	WASI bool
	// SampleCount, when non-zero, replaces the sample count ad_decode
	// reports, to exercise bounds checks on the samples record.
	SampleCount int32
}

// Fixed guest behaviour.
const (
	GuestSampleRate = 8000
	GuestChannels   = 2
	GuestDuration   = 0.5
	GuestEncoding   = "test"
	GuestMaxStart   = 100.0
	GuestErrorText  = "bad range"
	GuestGreeting   = "guest ready"
)

// GuestSamples are the samples a decode returns.
var GuestSamples = []float32{0.25, -0.25, 0.5, -0.5}

// GuestModule returns the default guest.
func GuestModule() []byte {
	return Guest{}.Bytes()
}

// Value types and opcodes used below.
const (
	i32 = 0x7f
	f64 = 0x7c

	opEnd       = 0x0b
	opIf        = 0x04
	opReturn    = 0x0f
	opCall      = 0x10
	opDrop      = 0x1a
	opSelect    = 0x1b
	opLocalGet  = 0x20
	opGlobalGet = 0x23
	opGlobalSet = 0x24
	opI32Store  = 0x36
	opF64Store  = 0x39
	opI32Const  = 0x41
	opF64Const  = 0x44
	opF64Gt     = 0x64
	opI32Add    = 0x6a
	opI32And    = 0x71
	blockVoid   = 0x40
)

// Fixed guest memory layout.
const (
	addrEncoding = 16
	addrSamples  = 32
	addrError    = 48
	addrIovec    = 64
	addrWritten  = 72
	addrGreeting = 80
	heapBase     = 1024
)

// sampleCount pushes the count ad_decode reports: all samples when the
// multi-channel flag (local 2) is set, one channel's worth otherwise.
func (g Guest) sampleCount() []byte {
	if g.SampleCount != 0 {
		return i32Const(g.SampleCount)
	}
	return concat(
		i32Const(int32(len(GuestSamples))), i32Const(int32(len(GuestSamples)/GuestChannels)),
		op(opLocalGet, 2), op(opSelect),
	)
}

type guestFunc struct {
	name string
	typ  []byte
	body []byte
}

// Bytes encodes the module.
func (g Guest) Bytes() []byte {
	funcs := []guestFunc{
		{"ad_alloc", funcType([]byte{i32}, []byte{i32}), code(
			// return heap; heap = (heap + size + 7) &^ 7
			op(opGlobalGet, 0),
			op(opGlobalGet, 0), op(opLocalGet, 0), op(opI32Add),
			i32Const(7), op(opI32Add), i32Const(-8), op(opI32And),
			op(opGlobalSet, 0),
		)},
		{"ad_free", funcType([]byte{i32, i32}, nil), code()},
		{"ad_load", funcType([]byte{i32, i32}, []byte{i32}), code(i32Const(0))},
		{"ad_unload", funcType(nil, []byte{i32}), code(i32Const(0))},
		{"ad_properties", funcType([]byte{i32}, []byte{i32}), code(
			op(opLocalGet, 0), i32Const(GuestSampleRate), store32(0),
			op(opLocalGet, 0), i32Const(GuestChannels), store32(4),
			op(opLocalGet, 0), f64Const(GuestDuration), op(opF64Store, 3, 8),
			op(opLocalGet, 0), i32Const(addrEncoding), store32(16),
			op(opLocalGet, 0), i32Const(int32(len(GuestEncoding))), store32(20),
			i32Const(0),
		)},
		{"ad_decode", funcType([]byte{f64, f64, i32, i32}, []byte{i32}), code(
			op(opLocalGet, 0), f64Const(GuestMaxStart), op(opF64Gt),
			op(opIf, blockVoid), i32Const(-22), op(opReturn), op(opEnd),
			op(opLocalGet, 3), i32Const(addrSamples), store32(0),
			op(opLocalGet, 3), g.sampleCount(), store32(4),
			i32Const(0),
		)},
		{"ad_release", funcType([]byte{i32}, nil), code(
			op(opGlobalGet, 1), i32Const(1), op(opI32Add), op(opGlobalSet, 1),
		)},
		{"ad_error", funcType([]byte{i32}, []byte{i32}), code(
			op(opLocalGet, 0), i32Const(addrError), store32(0),
			op(opLocalGet, 0), i32Const(int32(len(GuestErrorText))), store32(4),
			i32Const(0),
		)},
	}

	var imports [][]byte
	var types [][]byte
	if g.WASI {
		types = append(types, funcType([]byte{i32, i32, i32, i32}, []byte{i32}))
		imports = append(imports, concat(name("wasi_snapshot_preview1"), name("fd_write"), []byte{0x00, 0x00}))
		funcs = append(funcs, guestFunc{"_initialize", funcType(nil, nil), code(
			i32Const(1), i32Const(addrIovec), i32Const(1), i32Const(addrWritten),
			op(opCall, 0), op(opDrop),
		)})
	}

	var kept []guestFunc
	for _, f := range funcs {
		if f.name != g.Omit {
			kept = append(kept, f)
		}
	}

	var funcIdx, bodies, exports [][]byte
	for k, f := range kept {
		types = append(types, f.typ)
		funcIdx = append(funcIdx, uleb(uint32(len(types)-1)))
		bodies = append(bodies, f.body)
		exports = append(exports, concat(name(f.name), []byte{0x00}, uleb(uint32(len(imports)+k))))
	}
	if g.Omit != "memory" {
		exports = append(exports, concat(name("memory"), []byte{0x02, 0x00}))
	}
	exports = append(exports, concat(name("released"), []byte{0x03, 0x01}))

	globals := [][]byte{
		concat([]byte{i32, 0x01}, i32Const(heapBase), []byte{opEnd}),
		concat([]byte{i32, 0x01}, i32Const(0), []byte{opEnd}),
	}

	samples := make([]byte, 0, 4*len(GuestSamples))
	for _, s := range GuestSamples {
		samples = binary.LittleEndian.AppendUint32(samples, math.Float32bits(s))
	}
	data := [][]byte{
		segment(addrEncoding, []byte(GuestEncoding)),
		segment(addrSamples, samples),
		segment(addrError, []byte(GuestErrorText)),
	}
	if g.WASI {
		iovec := binary.LittleEndian.AppendUint32(nil, addrGreeting)
		iovec = binary.LittleEndian.AppendUint32(iovec, uint32(len(GuestGreeting)+1))
		data = append(data,
			segment(addrIovec, iovec),
			segment(addrGreeting, []byte(GuestGreeting+"\n")),
		)
	}

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	out = append(out, section(1, vec(types))...)
	if len(imports) > 0 {
		out = append(out, section(2, vec(imports))...)
	}
	out = append(out, section(3, vec(funcIdx))...)
	out = append(out, section(5, vec([][]byte{{0x00, 0x01}}))...)
	out = append(out, section(6, vec(globals))...)
	out = append(out, section(7, vec(exports))...)
	out = append(out, section(10, vec(bodies))...)
	out = append(out, section(11, vec(data))...)
	return out
}

func funcType(params, results []byte) []byte {
	return concat([]byte{0x60}, uleb(uint32(len(params))), params, uleb(uint32(len(results))), results)
}

// code wraps instructions into a function body with no locals.
func code(instrs ...[]byte) []byte {
	body := concat(append([][]byte{{0x00}}, append(instrs, []byte{opEnd})...)...)
	return concat(uleb(uint32(len(body))), body)
}

func op(b ...byte) []byte {
	return b
}

func store32(offset byte) []byte {
	return []byte{opI32Store, 2, offset}
}

func i32Const(v int32) []byte {
	return append([]byte{opI32Const}, sleb(v)...)
}

func f64Const(v float64) []byte {
	return binary.LittleEndian.AppendUint64([]byte{opF64Const}, math.Float64bits(v))
}

func segment(offset int32, b []byte) []byte {
	return concat([]byte{0x00}, i32Const(offset), []byte{opEnd}, uleb(uint32(len(b))), b)
}

func name(s string) []byte {
	return concat(uleb(uint32(len(s))), []byte(s))
}

func vec(items [][]byte) []byte {
	return concat(append([][]byte{uleb(uint32(len(items)))}, items...)...)
}

func section(id byte, content []byte) []byte {
	return concat([]byte{id}, uleb(uint32(len(content))), content)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func sleb(v int32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if !done {
			b |= 0x80
		}
		out = append(out, b)
		if done {
			return out
		}
	}
}
