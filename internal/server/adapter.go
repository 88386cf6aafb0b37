package server

import (
	"go.uber.org/zap"

	"github.com/DoyleJ11/monster-battle-net/internal/battle"
	"github.com/DoyleJ11/monster-battle-net/internal/endpoint"
	"github.com/DoyleJ11/monster-battle-net/internal/mailbox"
	"github.com/DoyleJ11/monster-battle-net/internal/types"
)

// peerEndpoint is the battle's view of one remote participant: events go
// straight out over the connection, actions come from the peer's mailbox.
type peerEndpoint struct {
	peer   endpoint.Peer
	sender endpoint.Endpoint
	queue  *mailbox.Queue[types.Action]
	log    *zap.Logger
}

var _ battle.Endpoint = (*peerEndpoint)(nil)

func (p *peerEndpoint) Send(ev types.Event) {
	send(p.sender, p.peer, types.GameEvent(ev), p.log)
}

func (p *peerEndpoint) Receive() (types.Action, bool) {
	return p.queue.Pop()
}

// send encodes msg and hands it to the endpoint. Failures are logged and
// not retried.
func send(ep endpoint.Endpoint, peer endpoint.Peer, msg types.ServerMessage, log *zap.Logger) bool {
	data, err := types.EncodeServer(msg)
	if err != nil {
		log.Error("encode failed", zap.Stringer("kind", msg.Kind), zap.Error(err))
		return false
	}
	switch status := ep.Send(peer, data); status {
	case endpoint.Sent:
		return true
	default:
		log.Warn("send failed", zap.Uint64("peer", uint64(peer)), zap.Stringer("kind", msg.Kind), zap.Stringer("status", status))
		return false
	}
}
