package worker

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"

	audiodecoder "github.com/wippyai/audio-decoder"
	"github.com/wippyai/audio-decoder/errors"
)

// echoServer replies to every message with a transformed copy.
func echoServer(t *testing.T) string {
	t.Helper()
	h := Handler(func(ctx context.Context, ch Channel) {
		for {
			msg, err := ch.Receive(ctx)
			if err != nil {
				return
			}
			switch msg.Type {
			case TypeInitialize:
				ch.Send(ctx, InitializeAck(audiodecoder.Properties{
					SampleRate: uint32(len(msg.Payload)),
					Encoding:   msg.Locator,
				}))
			case TypeDecode:
				if msg.Start < 0 {
					ch.Send(ctx, DecodeError(msg.ID, &errors.Wire{Kind: errors.KindDecode, Detail: "negative"}))
					continue
				}
				n := int(msg.Duration)
				if msg.DecodeOptions().MultiChannel {
					n *= 2
				}
				out := make([]float32, n)
				for i := range out {
					out[i] = float32(i) / 4
				}
				ch.Send(ctx, DecodeResult(msg.ID, out))
			case TypeDispose:
				return
			}
		}
	}, WithLogger(zaptest.NewLogger(t)))

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocket_RoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := Dial(ctx, echoServer(t), WithLogger(zaptest.NewLogger(t)))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer ch.Close()

	if err := ch.Send(ctx, Initialize(make([]byte, 1234), "native")); err != nil {
		t.Fatal(err)
	}
	ack, err := ch.Receive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ack.Properties == nil || ack.Properties.SampleRate != 1234 || ack.Properties.Encoding != "native" {
		t.Fatalf("ack = %+v", ack)
	}

	for id := uint64(1); id <= 3; id++ {
		ch.Send(ctx, Decode(id, 0, float64(id*10), audiodecoder.Options{MultiChannel: id == 2}))
	}
	ch.Send(ctx, Decode(4, -1, 1, audiodecoder.Options{}))

	for id := uint64(1); id <= 3; id++ {
		msg, err := ch.Receive(ctx)
		if err != nil {
			t.Fatal(err)
		}
		want := int(id * 10)
		if id == 2 {
			want *= 2
		}
		if msg.ID != id || msg.Type != TypeDecode || len(msg.Samples) != want {
			t.Fatalf("reply %d = type %s id %d len %d", id, msg.Type, msg.ID, len(msg.Samples))
		}
		if msg.Samples[3] != 0.75 {
			t.Fatalf("sample value lost in transit: %v", msg.Samples[3])
		}
	}

	msg, err := ch.Receive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Type != TypeDecodeError || msg.ID != 4 || msg.Error == nil || msg.Error.Kind != errors.KindDecode {
		t.Fatalf("error reply = %+v", msg)
	}
}

func TestWebSocket_PeerClose(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := Dial(ctx, echoServer(t))
	if err != nil {
		t.Fatal(err)
	}
	defer ch.Close()

	ch.Send(ctx, Dispose())
	if _, err := ch.Receive(ctx); !stderrors.Is(err, ErrClosed) {
		t.Fatalf("Receive after server hung up = %v, want ErrClosed", err)
	}
}

func TestWebSocket_DialFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := Dial(ctx, "ws://127.0.0.1:1/none"); err == nil {
		t.Fatal("Dial to closed port should fail")
	}
}

func TestSamplesCodec(t *testing.T) {
	in := []float32{0, -1, 1, 0.5, -0.25}
	out, err := decodeSamples(encodeSamples(in))
	if err != nil {
		t.Fatal(err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("sample %d: %v != %v", i, in[i], out[i])
		}
	}
	if _, err := decodeSamples([]byte{1, 2, 3}); err == nil {
		t.Fatal("odd-length frame should fail")
	}
}

type frame struct {
	kind int
	data string
}

// rawPeer writes frames as-is to whoever connects, then waits for the
// client to go away.
func rawPeer(t *testing.T, frames ...frame) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var up websocket.Upgrader
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(f.kind, []byte(f.data)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocket_MalformedFrameEndsChannel(t *testing.T) {
	good := frame{websocket.TextMessage, `{"type":"decodeError","id":7}`}

	tests := []struct {
		name   string
		frames []frame
	}{
		{"binary without header", []frame{{websocket.BinaryMessage, "\x00\x00\x80\x3f"}}},
		{"unparseable header", []frame{{websocket.TextMessage, `{"type":`}}},
		{"unknown binary kind", []frame{
			{websocket.TextMessage, `{"type":"decode","id":1,"binary":"bogus"}`},
			{websocket.BinaryMessage, "abcd"},
		}},
		{"text where binary expected", []frame{
			{websocket.TextMessage, `{"type":"decode","id":1,"binary":"samples"}`},
			{websocket.TextMessage, `{"type":"decode","id":2}`},
		}},
		{"short samples frame", []frame{
			{websocket.TextMessage, `{"type":"decode","id":1,"binary":"samples"}`},
			{websocket.BinaryMessage, "abc"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			ch, err := Dial(ctx, rawPeer(t, append([]frame{good}, tt.frames...)...), WithLogger(zaptest.NewLogger(t)))
			if err != nil {
				t.Fatal(err)
			}
			defer ch.Close()

			msg, err := ch.Receive(ctx)
			if err != nil || msg.ID != 7 {
				t.Fatalf("message before the bad frame = %+v, %v", msg, err)
			}
			if _, err := ch.Receive(ctx); !stderrors.Is(err, ErrMalformed) {
				t.Fatalf("Receive = %v, want ErrMalformed", err)
			}
			if _, err := ch.Receive(ctx); !stderrors.Is(err, ErrMalformed) {
				t.Fatalf("second Receive = %v, want ErrMalformed", err)
			}
			if err := ch.Send(ctx, Dispose()); err != nil && !stderrors.Is(err, ErrClosed) {
				t.Fatalf("Send after failure = %v", err)
			}
		})
	}
}
