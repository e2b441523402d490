// Package session provides the in-process decoding session.
//
// A Session moves through three states:
//
//	Uninitialized --Initialize ok--> Ready --Dispose--> Disposed
//	Uninitialized --Initialize err--> Uninitialized
//	Uninitialized --Dispose--> Disposed
//
// Initialize asks a Loader for a fresh decoder module (one per session,
// never shared), binds the input to it and caches the file's properties.
// Decodes are synchronous and serialised. Dispose releases the bound file
// and the module exactly once; operations on a session that is not Ready
// fail with a resource error.
//
//	s, err := session.Open(ctx, loader, data, "")
//	if err != nil {
//	    return err
//	}
//	defer s.Dispose(ctx)
//
//	samples, err := s.DecodeAudioData(ctx, 0.5, 1.0, audiodecoder.Options{})
package session
