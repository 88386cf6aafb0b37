// Package hub holds the server's current status for readers outside the
// battle loop. All access goes through the hub's inbox.
package hub

import (
	"context"
	"time"
)

type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseLobby    Phase = "lobby"
	PhaseBattle   Phase = "battle"
	PhaseStopping Phase = "stopping"
)

type Status struct {
	Phase        Phase     `json:"phase"`
	Round        int       `json:"round"`
	BattleSize   int       `json:"battle_size"`
	Filled       []string  `json:"filled"`
	Pending      int       `json:"pending"`
	BattleID     string    `json:"battle_id,omitempty"`
	Participants []string  `json:"participants,omitempty"`
	Turn         int       `json:"turn,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type HubMsg interface{ isHubMsg() }

type Publish struct {
	Status Status
}

type GetStatus struct {
	Reply chan Status
}

type Watch struct {
	ID     string
	Outbox chan Status
}

type Unwatch struct{ ID string }

type ShutdownHub struct{}

func (Publish) isHubMsg()     {}
func (GetStatus) isHubMsg()   {}
func (Watch) isHubMsg()       {}
func (Unwatch) isHubMsg()     {}
func (ShutdownHub) isHubMsg() {}

type Hub struct {
	inbox    chan HubMsg
	status   Status
	watchers map[string]chan Status
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewHub(parent context.Context) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		status:   Status{Phase: PhaseIdle},
		watchers: make(map[string]chan Status),
		ctx:      ctx,
		cancel:   cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Publish:
				h.status = msg.Status
				if h.status.UpdatedAt.IsZero() {
					h.status.UpdatedAt = time.Now()
				}
				h.broadcast()

			case GetStatus:
				msg.Reply <- h.status

			case Watch:
				h.watchers[msg.ID] = msg.Outbox
				msg.Outbox <- h.status

			case Unwatch:
				if ch, ok := h.watchers[msg.ID]; ok {
					close(ch)
					delete(h.watchers, msg.ID)
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for id, ch := range h.watchers {
		close(ch)
		delete(h.watchers, id)
	}
	h.cancel()
}

func (h *Hub) broadcast() {
	for id, ch := range h.watchers {
		select {
		case ch <- h.status:
		default:
			// slow watcher
			close(ch)
			delete(h.watchers, id)
		}
	}
}

// Publish replaces the current status. It never blocks the caller; when the
// inbox is full the update is dropped.
func (h *Hub) Publish(s Status) {
	select {
	case h.inbox <- Publish{Status: s}:
	default:
	}
}

// Status asks the hub for the current status.
func (h *Hub) Status(ctx context.Context) (Status, error) {
	reply := make(chan Status, 1)
	select {
	case h.inbox <- GetStatus{Reply: reply}:
	case <-ctx.Done():
		return Status{}, ctx.Err()
	case <-h.ctx.Done():
		return Status{}, h.ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	case <-h.ctx.Done():
		return Status{}, h.ctx.Err()
	}
}
