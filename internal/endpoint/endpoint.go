// Package endpoint abstracts "send bytes to a peer" and "receive bytes from a
// peer" so the client and the server drive their connections the same way.
// Bytes sent to a peer reach its Poll in order, or the peer is reported
// disconnected.
package endpoint

import (
	"context"
	"time"
)

// Peer identifies one connection for the lifetime of an Endpoint.
type Peer uint64

type EventKind uint8

const (
	Connected EventKind = iota + 1
	Message
	Disconnected
)

func (k EventKind) String() string {
	switch k {
	case Connected:
		return "Connected"
	case Message:
		return "Message"
	case Disconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

type Event struct {
	Kind EventKind
	Peer Peer
	Data []byte // Message only
}

type SendStatus uint8

const (
	Sent SendStatus = iota
	UnknownPeer
	TransportError
)

func (s SendStatus) String() string {
	switch s {
	case Sent:
		return "Sent"
	case UnknownPeer:
		return "UnknownPeer"
	case TransportError:
		return "TransportError"
	default:
		return "Unknown"
	}
}

// Endpoint is safe for concurrent use: sends may come from the simulation
// goroutine while another goroutine polls.
type Endpoint interface {
	Send(peer Peer, data []byte) SendStatus
	// Poll waits up to timeout for at least one event and returns everything
	// that is ready. It returns nil on timeout or when ctx is done.
	Poll(ctx context.Context, timeout time.Duration) []Event
	// Remove releases a single peer's connection without reporting it as
	// Disconnected.
	Remove(peer Peer)
	Close() error
}
