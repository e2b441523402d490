package worker

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// DefaultMaxMessageSize bounds a single websocket frame (an input file).
const DefaultMaxMessageSize = 512 << 20

const closeGrace = time.Second

// binary frame kinds announced by the header
const (
	binaryFile    = "file"
	binarySamples = "samples"
)

// wsHeader is the JSON text frame. When Binary is set, exactly one binary
// frame follows it.
type wsHeader struct {
	Message
	Binary string `json:"binary,omitempty"`
}

// WebSocketOption configures a websocket channel.
type WebSocketOption func(*wsConfig)

type wsConfig struct {
	maxMessageSize int64
	logger         *zap.Logger
	upgrader       websocket.Upgrader
	dialer         *websocket.Dialer
}

// WithMaxMessageSize overrides DefaultMaxMessageSize.
func WithMaxMessageSize(n int64) WebSocketOption {
	return func(c *wsConfig) {
		c.maxMessageSize = n
	}
}

// WithLogger sets the channel's logger.
func WithLogger(l *zap.Logger) WebSocketOption {
	return func(c *wsConfig) {
		c.logger = l
	}
}

// WithCheckOrigin replaces the upgrader's origin check.
func WithCheckOrigin(fn func(r *http.Request) bool) WebSocketOption {
	return func(c *wsConfig) {
		c.upgrader.CheckOrigin = fn
	}
}

func newWSConfig(opts []WebSocketOption) *wsConfig {
	c := &wsConfig{
		maxMessageSize: DefaultMaxMessageSize,
		logger:         Logger(),
		dialer:         websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial connects to a worker served by Handler.
func Dial(ctx context.Context, url string, opts ...WebSocketOption) (Channel, error) {
	cfg := newWSConfig(opts)
	conn, resp, err := cfg.dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial worker %s: %w", url, err)
	}
	return newWSChannel(conn, cfg), nil
}

// Upgrade turns an HTTP request into a channel.
func Upgrade(w http.ResponseWriter, r *http.Request, opts ...WebSocketOption) (Channel, error) {
	cfg := newWSConfig(opts)
	conn, err := cfg.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrade: %w", err)
	}
	return newWSChannel(conn, cfg), nil
}

// Handler serves one channel per websocket connection. serve runs for the
// lifetime of the connection; the channel is closed when it returns.
func Handler(serve func(ctx context.Context, ch Channel), opts ...WebSocketOption) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ch, err := Upgrade(w, r, opts...)
		if err != nil {
			newWSConfig(opts).logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		defer ch.Close()
		serve(r.Context(), ch)
	})
}

type wsChannel struct {
	id     string
	conn   *websocket.Conn
	logger *zap.Logger
	in     *queue

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newWSChannel(conn *websocket.Conn, cfg *wsConfig) *wsChannel {
	conn.SetReadLimit(cfg.maxMessageSize)
	c := &wsChannel{
		id:   uuid.NewString(),
		conn: conn,
		in:   newQueue(),
	}
	c.logger = cfg.logger.With(zap.String("channel", c.id))
	go c.readLoop()
	return c
}

func (c *wsChannel) ID() string {
	return c.id
}

func (c *wsChannel) Send(ctx context.Context, msg Message) error {
	hdr := wsHeader{Message: msg}
	var body []byte
	switch {
	case msg.Payload != nil:
		hdr.Binary = binaryFile
		body = msg.Payload
	case msg.Samples != nil:
		hdr.Binary = binarySamples
		body = encodeSamples(msg.Samples)
	}

	text, err := json.Marshal(hdr)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", msg.Type, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return c.writeErr(err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, text); err != nil {
		return c.writeErr(err)
	}
	if hdr.Binary != "" {
		if err := c.conn.WriteMessage(websocket.BinaryMessage, body); err != nil {
			return c.writeErr(err)
		}
	}
	return nil
}

func (c *wsChannel) writeErr(err error) error {
	select {
	case <-c.in.done:
		return ErrClosed
	default:
		return fmt.Errorf("write: %w", err)
	}
}

func (c *wsChannel) Receive(ctx context.Context) (Message, error) {
	return c.in.pop(ctx)
}

func (c *wsChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if werr := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace)); werr != nil {
			c.logger.Debug("write close frame", zap.Error(werr))
		}
		c.writeMu.Unlock()
		err = c.conn.Close()
		c.in.close()
	})
	return err
}

func (c *wsChannel) readLoop() {
	defer c.in.close()
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("worker channel read failed", zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage {
			c.malformed("binary frame without header", zap.Int("bytes", len(data)))
			return
		}

		var hdr wsHeader
		if err := json.Unmarshal(data, &hdr); err != nil {
			c.malformed("unparseable header", zap.Error(err))
			return
		}
		msg := hdr.Message

		if hdr.Binary != "" {
			mt, body, err := c.conn.ReadMessage()
			if err != nil {
				c.logger.Warn("worker channel read failed", zap.Error(err))
				return
			}
			if mt != websocket.BinaryMessage {
				c.malformed("expected binary frame after header", zap.String("type", string(msg.Type)), zap.Uint64("id", msg.ID))
				return
			}
			switch hdr.Binary {
			case binaryFile:
				msg.Payload = body
			case binarySamples:
				samples, err := decodeSamples(body)
				if err != nil {
					c.malformed("bad samples frame", zap.Uint64("id", msg.ID), zap.Error(err))
					return
				}
				msg.Samples = samples
			default:
				c.malformed("unknown binary frame kind "+strconv.Quote(hdr.Binary), zap.Uint64("id", msg.ID))
				return
			}
		}

		if err := c.in.push(msg); err != nil {
			return
		}
	}
}

// malformed ends the channel: a frame that cannot be decoded may have been a
// response someone is waiting for.
func (c *wsChannel) malformed(what string, fields ...zap.Field) {
	c.logger.Error("malformed frame, closing channel", append(fields, zap.String("reason", what))...)
	c.in.fail(fmt.Errorf("%w: %s", ErrMalformed, what))
}

// encodeSamples packs samples as little-endian IEEE-754 float32.
func encodeSamples(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, v := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func decodeSamples(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("samples frame of %d bytes is not a multiple of 4", len(b))
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, nil
}
