package engine

import (
	"context"
	"fmt"
	"io/fs"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zapio"

	audiodecoder "github.com/wippyai/audio-decoder"
	"github.com/wippyai/audio-decoder/errors"
)

// WazeroInstance is one running decoder module. It implements
// audiodecoder.Module. The guest holds at most one file; the name it was
// written under is tracked on the host side.
//
// WazeroInstance is NOT safe for concurrent use; a decoder binding
// serialises calls.
type WazeroInstance struct {
	instance api.Module
	memory   api.Memory
	fns      exports
	logger   *zap.Logger
	stdout   *zapio.Writer
	stderr   *zapio.Writer

	file    string
	loaded  bool
	live    int
	closeMu sync.Mutex
	closed  bool
}

var _ audiodecoder.Module = (*WazeroInstance)(nil)

func newGuestWriter(log *zap.Logger, stream string, level zapcore.Level) *zapio.Writer {
	return &zapio.Writer{Log: log.With(zap.String("stream", stream)), Level: level}
}

// WriteFile copies data into guest memory and hands it to ad_load. Writing
// over the loaded file unloads it first.
func (i *WazeroInstance) WriteFile(ctx context.Context, name string, data []byte) error {
	if i.isClosed() {
		return &fs.PathError{Op: "write", Path: name, Err: fs.ErrClosed}
	}
	if i.loaded {
		if err := i.Unlink(ctx, i.file); err != nil {
			return err
		}
	}

	size := uint32(len(data))
	ptr, err := i.alloc(ctx, size)
	if err != nil {
		return errors.Wrap(errors.PhaseEngine, errors.KindInitialization, err, "allocate file buffer")
	}
	if !i.memory.Write(ptr, data) {
		i.free(ctx, ptr, size)
		return errors.New(errors.PhaseEngine, errors.KindInitialization).
			Detail("file buffer [%d, %d) out of guest memory", ptr, ptr+size).
			Build()
	}

	st := i.call(ctx, i.fns.load, api.EncodeU32(ptr), api.EncodeU32(size))
	if st.Failed() {
		i.free(ctx, ptr, size)
		return errors.FromStatus(errors.PhaseEngine, errors.KindInitialization, st.Code, st.Message)
	}

	i.file = name
	i.loaded = true
	return nil
}

// Unlink unloads name from the guest.
func (i *WazeroInstance) Unlink(ctx context.Context, name string) error {
	if !i.loaded || name != i.file {
		return &fs.PathError{Op: "unlink", Path: name, Err: fs.ErrNotExist}
	}
	i.loaded = false
	i.file = ""

	if st := i.call(ctx, i.fns.unload); st.Failed() {
		return errors.FromStatus(errors.PhaseEngine, errors.KindResource, st.Code, st.Message)
	}
	return nil
}

// Properties asks the guest to probe the loaded file.
func (i *WazeroInstance) Properties(ctx context.Context, name string) (audiodecoder.Properties, audiodecoder.Status) {
	if !i.loaded || name != i.file {
		return audiodecoder.Properties{}, notFound(name)
	}

	out, err := i.alloc(ctx, propertiesRecordSize)
	if err != nil {
		return audiodecoder.Properties{}, trapStatus(err)
	}
	defer i.free(ctx, out, propertiesRecordSize)

	if st := i.call(ctx, i.fns.properties, api.EncodeU32(out)); st.Failed() {
		return audiodecoder.Properties{}, st
	}

	rate, channels, ok1 := readPair(i.memory, out)
	duration, ok2 := i.memory.ReadFloat64Le(out + 8)
	encPtr, encLen, ok3 := readPair(i.memory, out+16)
	encoding, ok4 := readString(i.memory, encPtr, encLen, maxEncodingLen)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return audiodecoder.Properties{}, audiodecoder.Status{
			Code:    audiodecoder.StatusInvalidData,
			Message: "properties record out of guest memory",
		}
	}

	return audiodecoder.Properties{
		SampleRate:   rate,
		ChannelCount: channels,
		Encoding:     encoding,
		Duration:     duration,
	}, audiodecoder.OK
}

// DecodeAudio runs ad_decode. The returned buffer lives in guest memory
// until released.
func (i *WazeroInstance) DecodeAudio(ctx context.Context, name string, start, duration float64, opts audiodecoder.Options) (audiodecoder.SampleBuffer, audiodecoder.Status) {
	if !i.loaded || name != i.file {
		return nil, notFound(name)
	}

	out, err := i.alloc(ctx, pairRecordSize)
	if err != nil {
		return nil, trapStatus(err)
	}
	defer i.free(ctx, out, pairRecordSize)
	i.memory.WriteUint32Le(out, 0)
	i.memory.WriteUint32Le(out+4, 0)

	var multi uint32
	if opts.MultiChannel {
		multi = 1
	}
	st := i.call(ctx, i.fns.decode,
		api.EncodeF64(start), api.EncodeF64(duration), api.EncodeU32(multi), api.EncodeU32(out))

	ptr, count, ok := readPair(i.memory, out)
	if !ok || ptr == 0 {
		return nil, st
	}
	if end := uint64(ptr) + 4*uint64(count); end > uint64(i.memory.Size()) {
		// the guest still owns the buffer; hand it back before failing
		i.release(ctx, ptr)
		return nil, audiodecoder.Status{
			Code:    audiodecoder.StatusInvalidData,
			Message: fmt.Sprintf("samples record [%d, %d) exceeds guest memory of %d bytes", ptr, end, i.memory.Size()),
		}
	}
	i.live++
	return &guestBuffer{inst: i, ptr: ptr, count: int(count)}, st
}

// LiveBuffers returns the number of samples buffers not yet released.
func (i *WazeroInstance) LiveBuffers() int {
	return i.live
}

// Module returns the underlying wazero module.
func (i *WazeroInstance) Module() api.Module {
	return i.instance
}

// Close unloads any file and closes the instance. Later calls are no-ops.
func (i *WazeroInstance) Close(ctx context.Context) error {
	i.closeMu.Lock()
	if i.closed {
		i.closeMu.Unlock()
		return nil
	}
	i.closed = true
	i.closeMu.Unlock()

	if i.loaded {
		if err := i.Unlink(ctx, i.file); err != nil {
			i.logger.Warn("unload on close", zap.Error(err))
		}
	}
	if i.live > 0 {
		i.logger.Warn("closing instance with unreleased samples buffers", zap.Int("count", i.live))
	}

	var firstErr error
	if err := i.instance.Close(ctx); err != nil {
		firstErr = err
	}
	for _, w := range []*zapio.Writer{i.stdout, i.stderr} {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (i *WazeroInstance) isClosed() bool {
	i.closeMu.Lock()
	defer i.closeMu.Unlock()
	return i.closed
}

// call invokes a status-returning export. Traps become StatusError; guest
// failures carry the guest's error text.
func (i *WazeroInstance) call(ctx context.Context, fn api.Function, params ...uint64) audiodecoder.Status {
	res, err := fn.Call(ctx, params...)
	if err != nil {
		return trapStatus(err)
	}
	if len(res) == 0 {
		return audiodecoder.OK
	}
	code := int(api.DecodeI32(res[0]))
	if code >= 0 {
		return audiodecoder.OK
	}
	return audiodecoder.Status{Code: code, Message: i.lastError(ctx)}
}

func (i *WazeroInstance) lastError(ctx context.Context) string {
	out, err := i.alloc(ctx, pairRecordSize)
	if err != nil {
		return ""
	}
	defer i.free(ctx, out, pairRecordSize)

	res, err := i.fns.lastError.Call(ctx, api.EncodeU32(out))
	if err != nil || len(res) == 0 || api.DecodeI32(res[0]) < 0 {
		return ""
	}
	ptr, n, ok := readPair(i.memory, out)
	if !ok {
		return ""
	}
	msg, _ := readString(i.memory, ptr, n, maxErrorLen)
	return msg
}

func (i *WazeroInstance) alloc(ctx context.Context, size uint32) (uint32, error) {
	res, err := i.fns.alloc.Call(ctx, api.EncodeU32(size))
	if err != nil {
		return 0, err
	}
	ptr := api.DecodeU32(res[0])
	if ptr == 0 && size > 0 {
		return 0, errors.Resource(errors.PhaseEngine, "guest allocation of %d bytes failed", size)
	}
	return ptr, nil
}

func (i *WazeroInstance) free(ctx context.Context, ptr, size uint32) {
	if _, err := i.fns.free.Call(ctx, api.EncodeU32(ptr), api.EncodeU32(size)); err != nil {
		i.logger.Warn("guest free failed",
			zap.Uint32("ptr", ptr),
			zap.Uint32("size", size),
			zap.Error(err))
	}
}

func (i *WazeroInstance) release(ctx context.Context, ptr uint32) {
	if _, err := i.fns.release.Call(ctx, api.EncodeU32(ptr)); err != nil {
		i.logger.Warn("guest release failed", zap.Uint32("ptr", ptr), zap.Error(err))
	}
}

func trapStatus(err error) audiodecoder.Status {
	return audiodecoder.Status{Code: audiodecoder.StatusError, Message: err.Error()}
}

func notFound(name string) audiodecoder.Status {
	return audiodecoder.Status{
		Code:    audiodecoder.StatusNotFound,
		Message: name + ": no such file",
	}
}
