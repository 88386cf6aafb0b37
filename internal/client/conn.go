package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/monster-battle-net/internal/endpoint"
	"github.com/DoyleJ11/monster-battle-net/internal/mailbox"
	"github.com/DoyleJ11/monster-battle-net/internal/types"
)

const pollInterval = 5 * time.Millisecond

// Conn is the machine's link to the server. Receive never blocks.
type Conn interface {
	Send(msg types.ClientMessage) error
	Receive() (types.ServerMessage, bool)
	// Lost reports whether the server went away.
	Lost() bool
	Close() error
}

// Dialer opens a Conn to a host:port address.
type Dialer func(ctx context.Context, addr string) (Conn, error)

// WebSocketDialer dials the server's WebSocket endpoint.
func WebSocketDialer(log *zap.Logger) Dialer {
	return func(ctx context.Context, addr string) (Conn, error) {
		ep, server, err := endpoint.Dial(ctx, "ws://"+addr+endpoint.Path, log)
		if err != nil {
			return nil, err
		}
		return NewConn(ep, server, log), nil
	}
}

// netConn pumps the endpoint on its own goroutine, decoding server messages
// into a mailbox the machine drains once per tick.
type netConn struct {
	ep     endpoint.Endpoint
	server endpoint.Peer
	inbox  *mailbox.Queue[types.ServerMessage]
	log    *zap.Logger

	lost      atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewConn starts pumping ep. server is the peer that stands for the server.
func NewConn(ep endpoint.Endpoint, server endpoint.Peer, log *zap.Logger) Conn {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &netConn{
		ep:     ep,
		server: server,
		inbox:  mailbox.NewQueue[types.ServerMessage](mailbox.DefaultLimit),
		log:    log,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go c.pump(ctx)
	return c
}

func (c *netConn) pump(ctx context.Context) {
	defer close(c.done)
	for ctx.Err() == nil {
		for _, ev := range c.ep.Poll(ctx, pollInterval) {
			switch ev.Kind {
			case endpoint.Message:
				msg, err := types.DecodeServer(ev.Data)
				if err != nil {
					c.log.Warn("dropping undecodable message", zap.Error(err))
					continue
				}
				if !c.inbox.Push(msg) {
					c.log.Warn("inbox full, message dropped", zap.Stringer("kind", msg.Kind))
				}
			case endpoint.Disconnected:
				if ev.Peer == c.server {
					c.lost.Store(true)
					return
				}
			}
		}
	}
}

func (c *netConn) Send(msg types.ClientMessage) error {
	data, err := types.EncodeClient(msg)
	if err != nil {
		return fmt.Errorf("encode %v: %w", msg.Kind, err)
	}
	if status := c.ep.Send(c.server, data); status != endpoint.Sent {
		return fmt.Errorf("send %v: %v", msg.Kind, status)
	}
	return nil
}

func (c *netConn) Receive() (types.ServerMessage, bool) { return c.inbox.Pop() }

func (c *netConn) Lost() bool { return c.lost.Load() }

func (c *netConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		<-c.done
		err = c.ep.Close()
	})
	return err
}
