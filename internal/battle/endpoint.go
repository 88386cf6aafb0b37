package battle

import "github.com/DoyleJ11/monster-battle-net/internal/types"

// Endpoint is all a battle may use to reach a participant. Send is best
// effort and never blocks; Receive never blocks and reports false when no
// action is waiting.
type Endpoint interface {
	Send(ev types.Event)
	Receive() (types.Action, bool)
}

// LocalEndpoint connects a participant living in the same process, such as a
// bot, through buffered channels.
type LocalEndpoint struct {
	events  chan types.Event
	actions chan types.Action
}

var _ Endpoint = (*LocalEndpoint)(nil)

func NewLocalEndpoint(buffer int) *LocalEndpoint {
	return &LocalEndpoint{
		events:  make(chan types.Event, buffer),
		actions: make(chan types.Action, buffer),
	}
}

// Send drops the event when the participant is not keeping up.
func (l *LocalEndpoint) Send(ev types.Event) {
	select {
	case l.events <- ev:
	default:
	}
}

func (l *LocalEndpoint) Receive() (types.Action, bool) {
	select {
	case a := <-l.actions:
		return a, true
	default:
		return types.Action{}, false
	}
}

// Events is the participant's side of Send.
func (l *LocalEndpoint) Events() <-chan types.Event { return l.events }

// Submit queues an action for the battle. It reports false when the buffer
// is full.
func (l *LocalEndpoint) Submit(a types.Action) bool {
	select {
	case l.actions <- a:
		return true
	default:
		return false
	}
}
