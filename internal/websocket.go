package internal

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Socket is the connection of a websocket endpoint. The pipeline accepts it
// after permissions and input binding succeed and closes it when the handler
// returns.
type Socket struct {
	conn   *websocket.Conn
	opts   *websocket.AcceptOptions
	closed bool
}

func newSocket(opts *websocket.AcceptOptions) *Socket {
	return &Socket{opts: opts}
}

// accept performs the handshake. On failure the websocket library has
// already written the response.
func (s *Socket) accept(w http.ResponseWriter, r *http.Request) error {
	if s.conn != nil {
		return nil
	}
	conn, err := websocket.Accept(w, r, s.opts)
	if err != nil {
		return ErrBadRequest("websocket handshake failed", WithError(err))
	}
	s.conn = conn
	return nil
}

// Conn returns the underlying connection, nil before the handshake.
func (s *Socket) Conn() *websocket.Conn {
	return s.conn
}

// Accepted reports whether the handshake completed.
func (s *Socket) Accepted() bool {
	return s.conn != nil
}

var errNotAccepted = errors.New("websocket not accepted")

// Send writes a binary message.
func (s *Socket) Send(ctx context.Context, data []byte) error {
	if s.conn == nil {
		return errNotAccepted
	}
	return s.conn.Write(ctx, websocket.MessageBinary, data)
}

// SendText writes a text message.
func (s *Socket) SendText(ctx context.Context, text string) error {
	if s.conn == nil {
		return errNotAccepted
	}
	return s.conn.Write(ctx, websocket.MessageText, []byte(text))
}

// Receive reads the next message.
func (s *Socket) Receive(ctx context.Context) (websocket.MessageType, []byte, error) {
	if s.conn == nil {
		return 0, nil, errNotAccepted
	}
	return s.conn.Read(ctx)
}

// SendJSON writes v as a JSON text message.
func (s *Socket) SendJSON(ctx context.Context, v any) error {
	if s.conn == nil {
		return errNotAccepted
	}
	return wsjson.Write(ctx, s.conn, v)
}

// ReceiveJSON reads the next message into v.
func (s *Socket) ReceiveJSON(ctx context.Context, v any) error {
	if s.conn == nil {
		return errNotAccepted
	}
	return wsjson.Read(ctx, s.conn, v)
}

// Close sends a close frame with code and reason.
func (s *Socket) Close(code websocket.StatusCode, reason string) error {
	if s.conn == nil || s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close(code, reason)
}

// finish closes the connection once the handler is done. Handler errors
// close with an internal error status.
func (s *Socket) finish(err error) {
	if s.conn == nil || s.closed {
		return
	}
	switch {
	case err == nil:
		_ = s.Close(websocket.StatusNormalClosure, "")
	case errors.Is(err, ErrClientDisconnected) || websocket.CloseStatus(err) != -1:
		s.closed = true
		_ = s.conn.CloseNow()
	default:
		_ = s.Close(websocket.StatusInternalError, "internal error")
	}
}
