package errors

import stderrors "errors"

// Wire is the serialisable form of an error sent across a worker channel.
// Causes do not cross the channel; their text is folded into Detail.
type Wire struct {
	Phase  Phase  `json:"phase"`
	Kind   Kind   `json:"kind"`
	Detail string `json:"detail"`
	Status int    `json:"status,omitempty"`
}

// ToWire converts err into its wire form. Errors outside this package are
// reported with the fallback kind.
func ToWire(err error, phase Phase, fallback Kind) *Wire {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		detail := e.Detail
		if e.Cause != nil {
			if detail != "" {
				detail += ": "
			}
			detail += e.Cause.Error()
		}
		return &Wire{Phase: e.Phase, Kind: e.Kind, Detail: detail, Status: e.Status}
	}
	return &Wire{Phase: phase, Kind: fallback, Detail: err.Error()}
}

// Err rebuilds the error on the receiving side, tagged with the request id.
func (w *Wire) Err(id uint64) *Error {
	return &Error{
		Phase:     w.Phase,
		Kind:      w.Kind,
		Detail:    w.Detail,
		Status:    w.Status,
		RequestID: id,
		Remote:    true,
	}
}
