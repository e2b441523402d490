// Package offload runs a decoder session in an isolated worker context and
// drives it from a controller over a worker.Channel.
//
// The controller side, Session, mirrors session.Session but every call is a
// message exchange:
//
//	controller                          worker (Serve)
//	    |  initialize{file, locator}  ->    | session.Initialize
//	    |  <- initialize{properties|error}  |
//	    |  decode{id=1}               ->    | DecodeAudioData
//	    |  decode{id=2}               ->    |
//	    |  <- decode{id=1, samples}         |
//	    |  <- decodeError{id=2, error}      |
//	    |  dispose                    ->    | session.Dispose, exit
//
// Requests are pipelined. Ids come from a per-session counter starting at 1
// and every response resolves exactly the request that carries its id. A
// response with an unknown id is a protocol violation: it is logged and
// handed to the WithProtocolErrorHandler callback, and no request is
// resolved by it.
//
// Spawn wires both sides together over an in-process worker.Pipe. Serve can
// equally sit behind a websocket (worker.Handler) in another process.
package offload
