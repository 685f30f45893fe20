package remote

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
)

// ConnectivitySource streams the remote link state. The channel is closed when ctx ends.
type ConnectivitySource interface {
	Subscribe(ctx context.Context) (<-chan bool, error)
}

// Prober answers "is the remote reachable right now" once.
type Prober interface {
	Probe(ctx context.Context) bool
}

const (
	reconnectMin = time.Second
	reconnectMax = time.Minute
)

// WebsocketConnectivity listens on a socket whose server pushes "true"/"false"
// text frames, in the manner of a realtime database's .info/connected node. A dropped
// socket is reported as disconnected and redialed with backoff.
type WebsocketConnectivity struct {
	url string
}

func NewWebsocketConnectivity(url string) *WebsocketConnectivity {
	return &WebsocketConnectivity{url: url}
}

func (w *WebsocketConnectivity) Subscribe(ctx context.Context) (<-chan bool, error) {
	conn, _, err := websocket.Dial(ctx, w.url, nil)
	if err != nil {
		return nil, err
	}
	out := make(chan bool, 1)
	go w.run(ctx, conn, out)
	return out, nil
}

func (w *WebsocketConnectivity) run(ctx context.Context, conn *websocket.Conn, out chan<- bool) {
	defer close(out)
	backoff := reconnectMin
	for {
		if conn != nil {
			backoff = reconnectMin
			emit(ctx, out, true)
			w.read(ctx, conn, out)
			_ = conn.Close(websocket.StatusNormalClosure, "")
			conn = nil
			if ctx.Err() != nil {
				return
			}
			emit(ctx, out, false)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, reconnectMax)

		c, _, err := websocket.Dial(ctx, w.url, nil)
		if err == nil {
			conn = c
		}
	}
}

func (w *WebsocketConnectivity) read(ctx context.Context, conn *websocket.Conn, out chan<- bool) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		switch strings.TrimSpace(string(data)) {
		case "true":
			emit(ctx, out, true)
		case "false":
			emit(ctx, out, false)
		}
	}
}

// Probe dials once and reports whether the handshake succeeded.
func (w *WebsocketConnectivity) Probe(ctx context.Context) bool {
	conn, _, err := websocket.Dial(ctx, w.url, nil)
	if err != nil {
		return false
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
	return true
}

func emit(ctx context.Context, out chan<- bool, v bool) {
	select {
	case out <- v:
	case <-ctx.Done():
	}
}

// HTTPProber treats any non-5xx answer from url as reachable.
type HTTPProber struct {
	url    string
	client *http.Client
}

func NewHTTPProber(url string, timeout time.Duration) *HTTPProber {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProber{url: url, client: &http.Client{Timeout: timeout}}
}

func (h *HTTPProber) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, h.url, nil)
	if err != nil {
		return false
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

// TargetProber probes by initializing a target, for setups with no dedicated endpoint.
type TargetProber struct {
	target Target
}

func NewTargetProber(t Target) *TargetProber {
	return &TargetProber{target: t}
}

func (p *TargetProber) Probe(ctx context.Context) bool {
	return p.target.Init(ctx) == nil
}
