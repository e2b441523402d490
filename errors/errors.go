package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLoad       Phase = "load"       // decoder module loading
	PhaseNative     Phase = "native"     // native decoder module
	PhaseEngine     Phase = "engine"     // wasm-hosted decoder module
	PhaseBinding    Phase = "binding"    // decoder binding
	PhaseSession    Phase = "session"    // session lifecycle
	PhaseChannel    Phase = "channel"    // worker channel transport
	PhaseController Phase = "controller" // offloaded session, controller side
	PhaseWorker     Phase = "worker"     // offloaded session, worker side
)

// Kind categorizes the error
type Kind string

const (
	KindInitialization Kind = "initialization" // decoder failed to open or probe the input
	KindDecode         Kind = "decode"         // decoder failed on a range
	KindProtocol       Kind = "protocol"       // unmatched response, channel failure
	KindResource       Kind = "resource"       // operation on a disposed or uninitialized session
)

// Sentinels for errors.Is. They match any phase.
var (
	ErrInitialization = &Error{Kind: KindInitialization}
	ErrDecode         = &Error{Kind: KindDecode}
	ErrProtocol       = &Error{Kind: KindProtocol}
	ErrResource       = &Error{Kind: KindResource}
)

// Error is the structured error type used throughout the module
type Error struct {
	Cause     error
	Phase     Phase
	Kind      Kind
	Detail    string
	Status    int    // native status code, 0 when not applicable
	RequestID uint64 // correlation id, 0 when not applicable
	Remote    bool   // raised on the far side of a worker channel
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.RequestID != 0 {
		fmt.Fprintf(&b, " (request %d)", e.RequestID)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Status != 0 {
		fmt.Fprintf(&b, " [status %d]", e.Status)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target with an empty Phase matches on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Status sets the native status code
func (b *Builder) Status(code int) *Builder {
	b.err.Status = code
	return b
}

// RequestID sets the correlation id
func (b *Builder) RequestID(id uint64) *Builder {
	b.err.RequestID = id
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Initialization creates an initialization error
func Initialization(phase Phase, detail string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInitialization,
		Detail: detail,
		Cause:  cause,
	}
}

// Decode creates a decode error
func Decode(phase Phase, detail string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDecode,
		Detail: detail,
		Cause:  cause,
	}
}

// Protocol creates a protocol error
func Protocol(phase Phase, detail string, args ...any) *Error {
	return New(phase, KindProtocol).Detail(detail, args...).Build()
}

// Resource creates a resource error
func Resource(phase Phase, detail string, args ...any) *Error {
	return New(phase, KindResource).Detail(detail, args...).Build()
}

// FromStatus translates a negative native status into an error of the given kind
func FromStatus(phase Phase, kind Kind, code int, message string) *Error {
	if message == "" {
		message = fmt.Sprintf("native status %d", code)
	}
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: message,
		Status: code,
	}
}

// Unmatched creates the protocol error reported for a response whose id has
// no pending request
func Unmatched(phase Phase, what string, id uint64) *Error {
	return &Error{
		Phase:     phase,
		Kind:      KindProtocol,
		Detail:    fmt.Sprintf("%s response with no pending request", what),
		RequestID: id,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInitialization,
		Detail: detail,
		Cause:  cause,
	}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}
