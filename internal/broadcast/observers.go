package broadcast

import (
	"context"
	"errors"
	"sync"

	"github.com/coder/websocket"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

var ErrObserverFull = errors.New("observer is not keeping up")

// WebsocketObserver pushes events to one connected UI surface. Writes are serialized
// because responses to inbound intents share the same connection.
type WebsocketObserver struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewWebsocketObserver(conn *websocket.Conn) *WebsocketObserver {
	return &WebsocketObserver{id: uuid.NewString(), conn: conn}
}

func (w *WebsocketObserver) ID() string { return w.id }

func (w *WebsocketObserver) Send(ctx context.Context, e Event) error {
	return w.WriteJSON(ctx, e)
}

func (w *WebsocketObserver) WriteJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.Write(ctx, websocket.MessageText, data)
}

// Serve reads text frames until the connection closes, replying with whatever
// handle returns. A nil reply sends nothing.
func (w *WebsocketObserver) Serve(ctx context.Context, handle func(ctx context.Context, msg []byte) any) error {
	for {
		typ, data, err := w.conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			continue
		}
		if reply := handle(ctx, data); reply != nil {
			if err := w.WriteJSON(ctx, reply); err != nil {
				return err
			}
		}
	}
}

func (w *WebsocketObserver) Close(reason string) error {
	return w.conn.Close(websocket.StatusNormalClosure, reason)
}

// ChannelObserver delivers events to an in-process channel without blocking.
type ChannelObserver struct {
	id string
	C  chan Event
}

func NewChannelObserver(buffer int) *ChannelObserver {
	return &ChannelObserver{id: uuid.NewString(), C: make(chan Event, buffer)}
}

func (c *ChannelObserver) ID() string { return c.id }

func (c *ChannelObserver) Send(ctx context.Context, e Event) error {
	select {
	case c.C <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrObserverFull
	}
}
