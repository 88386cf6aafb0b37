package endpoint

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Path is where the listening side is mounted.
const Path = "/ws"

const (
	readLimit    = 64 << 10
	writeTimeout = 3 * time.Second
	eventBuffer  = 256
)

// WebSocket is an Endpoint over WebSocket connections. The listening side
// mounts it as an http.Handler; the dialing side is created by Dial.
type WebSocket struct {
	log *zap.Logger

	mu    sync.RWMutex
	conns map[Peer]*websocket.Conn
	next  atomic.Uint64

	events    chan Event
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

var _ Endpoint = (*WebSocket)(nil)

func NewWebSocket(log *zap.Logger) *WebSocket {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocket{
		log:    log,
		conns:  make(map[Peer]*websocket.Conn),
		events: make(chan Event, eventBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Dial connects to a listening WebSocket endpoint and returns the local
// endpoint together with the peer that stands for the server.
func Dial(ctx context.Context, url string, log *zap.Logger) (*WebSocket, Peer, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("dial %s: %w", url, err)
	}
	w := NewWebSocket(log)
	peer := w.register(conn)
	go w.readLoop(peer, conn)
	return w, peer, nil
}

// ServeHTTP accepts one connection and reads from it until it closes.
func (w *WebSocket) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if w.ctx.Err() != nil {
		http.Error(rw, "endpoint closed", http.StatusServiceUnavailable)
		return
	}
	conn, err := websocket.Accept(rw, r, nil)
	if err != nil {
		w.log.Warn("websocket accept failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	peer := w.register(conn)
	w.log.Debug("peer accepted", zap.Uint64("peer", uint64(peer)), zap.String("remote", r.RemoteAddr))
	w.readLoop(peer, conn)
}

func (w *WebSocket) register(conn *websocket.Conn) Peer {
	conn.SetReadLimit(readLimit)
	peer := Peer(w.next.Add(1))
	w.mu.Lock()
	w.conns[peer] = conn
	w.mu.Unlock()
	w.emit(Event{Kind: Connected, Peer: peer})
	return peer
}

func (w *WebSocket) unregister(peer Peer) (*websocket.Conn, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	conn, ok := w.conns[peer]
	delete(w.conns, peer)
	return conn, ok
}

func (w *WebSocket) readLoop(peer Peer, conn *websocket.Conn) {
	for {
		typ, data, err := conn.Read(w.ctx)
		if err != nil {
			if _, ok := w.unregister(peer); ok {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					w.log.Debug("peer closed", zap.Uint64("peer", uint64(peer)))
				default:
					w.log.Debug("peer read failed", zap.Uint64("peer", uint64(peer)), zap.Error(err))
				}
				conn.CloseNow()
				w.emit(Event{Kind: Disconnected, Peer: peer})
			}
			return
		}
		if typ != websocket.MessageBinary {
			w.log.Warn("dropping non-binary frame", zap.Uint64("peer", uint64(peer)))
			continue
		}
		w.emit(Event{Kind: Message, Peer: peer, Data: data})
	}
}

func (w *WebSocket) emit(ev Event) {
	select {
	case w.events <- ev:
	case <-w.ctx.Done():
	}
}

func (w *WebSocket) Send(peer Peer, data []byte) SendStatus {
	w.mu.RLock()
	conn, ok := w.conns[peer]
	w.mu.RUnlock()
	if !ok {
		return UnknownPeer
	}
	ctx, cancel := context.WithTimeout(w.ctx, writeTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageBinary, data); err != nil {
		w.log.Debug("write failed", zap.Uint64("peer", uint64(peer)), zap.Error(err))
		return TransportError
	}
	return Sent
}

func (w *WebSocket) Poll(ctx context.Context, timeout time.Duration) []Event {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var out []Event
	select {
	case ev := <-w.events:
		out = append(out, ev)
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return nil
	case <-w.ctx.Done():
		return nil
	}
	for {
		select {
		case ev := <-w.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func (w *WebSocket) Remove(peer Peer) {
	conn, ok := w.unregister(peer)
	if !ok {
		return
	}
	if err := conn.Close(websocket.StatusNormalClosure, "bye"); err != nil && !isClosed(err) {
		w.log.Debug("close failed", zap.Uint64("peer", uint64(peer)), zap.Error(err))
	}
}

// Peers returns the currently connected peers.
func (w *WebSocket) Peers() []Peer {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Peer, 0, len(w.conns))
	for p := range w.conns {
		out = append(out, p)
	}
	return out
}

// Close releases every connection. Pending and future Polls return nil.
func (w *WebSocket) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.mu.Lock()
		conns := w.conns
		w.conns = make(map[Peer]*websocket.Conn)
		w.mu.Unlock()
		for _, conn := range conns {
			if cerr := conn.Close(websocket.StatusGoingAway, "shutting down"); cerr != nil && !isClosed(cerr) {
				err = multierr.Append(err, cerr)
			}
		}
		w.cancel()
	})
	return err
}

func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed) || websocket.CloseStatus(err) != -1
}
