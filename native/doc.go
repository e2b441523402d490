// Package native implements the decoder module in Go.
//
// A Module owns a small memory filesystem and a resource table. Input files
// are written under a name (the binding uses "audio"), probed for their
// container, and decoded on demand into staging buffers that stay registered
// in the table until released. WAV goes through go-audio, MP3 through go-mp3
// with a tcolgate/mp3 frame walk for the duration, FLAC through mewkiz/flac.
// Containers are sniffed from the RIFF header, then dhowden/tag, then MPEG
// frame sync.
//
// Status codes follow the negative-errno convention of audiodecoder.Status.
package native
