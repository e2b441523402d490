// Package worker provides the message channel between a controller and an
// isolated decoding worker.
//
// A Channel carries Messages in both directions with FIFO order per
// direction. Send never blocks on the peer; a message's Payload (the input
// file) and Samples (a decode result) are handed over, not shared.
//
// Two transports are provided. Pipe connects goroutines in one process and
// moves messages by reference. The websocket transport (Dial, Upgrade,
// Handler) sends each message as a JSON text frame, followed by one binary
// frame when it carries a file or samples:
//
//	{"type":"decode","id":3,"start":0.5,"duration":1,"options":{"multiChannel":false}}
//	{"type":"decode","id":3,"binary":"samples"}   + binary frame, float32 LE
//
// The channel does not interpret messages; correlation lives in package
// offload.
package worker
