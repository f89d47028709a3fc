package stream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultReadLimit  = 4 << 20
	defaultBufferSize = 32 << 10
	closeGracePeriod  = time.Second
)

// WebSocketDialer opens websocket transports
type WebSocketDialer struct {
	HandshakeTimeout time.Duration
	ReadLimit        int64
	BufferSize       int
	Header           http.Header
}

// Dial connects to url and returns a transport that reassembles fragmented messages
func (d *WebSocketDialer) Dial(ctx context.Context, url string) (Transport, error) {
	bufSize := d.BufferSize
	if bufSize <= 0 {
		bufSize = defaultBufferSize
	}
	readLimit := d.ReadLimit
	if readLimit <= 0 {
		readLimit = defaultReadLimit
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
		ReadBufferSize:   bufSize,
		WriteBufferSize:  4096,
	}

	conn, resp, err := dialer.DialContext(ctx, url, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial %s (status %d): %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	conn.SetReadLimit(readLimit)

	return &wsTransport{
		conn: conn,
		buf:  make([]byte, 0, bufSize),
	}, nil
}

type wsTransport struct {
	conn *websocket.Conn
	buf  []byte

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (t *wsTransport) ReadFrame(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		msgType, r, err := t.conn.NextReader()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTransport, err)
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}

		// the reader yields every fragment of the message before io.EOF
		t.buf = t.buf[:0]
		for {
			if len(t.buf) == cap(t.buf) {
				t.buf = append(t.buf, 0)[:len(t.buf)]
			}
			n, err := r.Read(t.buf[len(t.buf):cap(t.buf)])
			t.buf = t.buf[:len(t.buf)+n]
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrTransport, err)
			}
		}
		return t.buf, nil
	}
}

func (t *wsTransport) WriteFrame(ctx context.Context, data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	deadline, _ := ctx.Deadline()
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}

func (t *wsTransport) Close() error {
	t.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}
