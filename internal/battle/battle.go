// Package battle hosts one battle: it feeds participants' actions into the
// rules engine once per tick and forwards the resulting events. It reaches
// participants only through Endpoint.
package battle

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/monster-battle-net/internal/catalog"
	"github.com/DoyleJ11/monster-battle-net/internal/engine"
	"github.com/DoyleJ11/monster-battle-net/internal/types"
)

var ErrParticipants = errors.New("wrong number of participants")

type Participant struct {
	ID       types.PeerID
	Name     string
	Party    []*catalog.Creature
	Endpoint Endpoint
}

type Outcome string

const (
	OutcomeWinner  Outcome = "winner"
	OutcomeDraw    Outcome = "draw"
	OutcomeAborted Outcome = "aborted"
)

type Result struct {
	Outcome  Outcome
	Winner   *types.PeerID
	Turns    int
	Started  time.Time
	Finished time.Time
}

type Battle struct {
	log          *zap.Logger
	rng          *rand.Rand
	participants []Participant
	state        engine.State

	begun    bool
	finished bool
	result   Result
}

// New builds a battle for exactly size participants.
func New(size int, participants []Participant, rng *rand.Rand, log *zap.Logger) (*Battle, error) {
	if len(participants) != size {
		return nil, fmt.Errorf("%w: want %d, got %d", ErrParticipants, size, len(participants))
	}
	parties := make([][]*catalog.Creature, len(participants))
	for i, p := range participants {
		if len(p.Party) == 0 {
			return nil, fmt.Errorf("participant %s: %w", p.ID, catalog.ErrInvalidParty)
		}
		if p.Endpoint == nil {
			return nil, fmt.Errorf("participant %s has no endpoint", p.ID)
		}
		parties[i] = p.Party
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Battle{
		log:          log,
		rng:          rng,
		participants: participants,
		state:        engine.NewState(parties),
	}, nil
}

// Begin introduces the participants to each other and asks for the first
// turn's actions.
func (b *Battle) Begin() {
	if b.begun {
		return
	}
	b.begun = true
	b.result.Started = time.Now()

	roster := make([]types.Combatant, len(b.participants))
	for i, p := range b.participants {
		roster[i] = types.Combatant{Peer: p.ID, Name: p.Name, Party: views(p.Party)}
	}
	for i, p := range b.participants {
		p.Endpoint.Send(types.Event{Kind: types.EventBegin, Roster: roster, Self: i})
	}
	b.log.Info("battle begun", zap.Int("participants", len(b.participants)))
	b.requestTurn()
}

// Update runs one tick: every waiting action is applied and, once every
// participant still in has chosen, the turn is resolved.
func (b *Battle) Update() {
	if !b.begun || b.finished {
		return
	}
	for i, p := range b.participants {
		for {
			act, ok := p.Endpoint.Receive()
			if !ok {
				break
			}
			b.apply(i, act)
			if b.finished {
				return
			}
		}
	}
	if !engine.Ready(b.state) {
		return
	}
	events, next := engine.Resolve(b.state, b.rng)
	b.state = next
	b.broadcast(events)
	if b.state.Phase == engine.PhaseDone {
		b.complete()
		return
	}
	b.requestTurn()
}

func (b *Battle) apply(side int, act types.Action) {
	p := b.participants[side]
	if b.state.Sides[side].Out {
		b.log.Debug("action from eliminated participant ignored", zap.Stringer("peer", p.ID))
		return
	}
	events, next, err := engine.Apply(b.state, engine.Command{Side: side, Action: act})
	if err != nil {
		b.log.Debug("action rejected", zap.Stringer("peer", p.ID), zap.Stringer("kind", act.Kind), zap.Error(err))
		p.Endpoint.Send(types.Event{Kind: types.EventRejected, Turn: b.state.Turn, Reason: err.Error()})
		return
	}
	b.state = next
	b.broadcast(events)
	if b.state.Phase == engine.PhaseDone {
		b.complete()
	}
}

// End stops the battle without a winner. It does nothing once the battle
// has finished on its own.
func (b *Battle) End() {
	if b.finished {
		return
	}
	b.state.Phase = engine.PhaseDone
	b.state.Winner = engine.NoWinner
	b.finished = true
	b.result.Outcome = OutcomeAborted
	b.result.Turns = b.state.Turn - 1
	b.result.Finished = time.Now()
	b.broadcast([]types.Event{{Kind: types.EventGameEnd, Turn: b.state.Turn}})
	b.log.Info("battle aborted", zap.Int("turns", b.result.Turns))
}

func (b *Battle) Finished() bool { return b.finished }

func (b *Battle) Result() Result { return b.result }

func (b *Battle) Participants() []Participant { return b.participants }

func (b *Battle) Turn() int { return b.state.Turn }

func (b *Battle) complete() {
	b.finished = true
	b.result.Turns = b.state.Turn - 1
	b.result.Finished = time.Now()
	b.result.Outcome = OutcomeDraw
	if w := b.state.Winner; w != engine.NoWinner {
		id := b.participants[w].ID
		b.result.Winner = &id
		b.result.Outcome = OutcomeWinner
	}
	b.log.Info("battle finished", zap.String("outcome", string(b.result.Outcome)), zap.Int("turns", b.result.Turns))
}

func (b *Battle) requestTurn() {
	for i, p := range b.participants {
		if b.state.Sides[i].Out {
			continue
		}
		p.Endpoint.Send(types.Event{Kind: types.EventTurnRequest, Turn: b.state.Turn})
	}
}

// broadcast sends events to everyone. GameEnd gets the winner's identity.
func (b *Battle) broadcast(events []types.Event) {
	for _, ev := range events {
		if ev.Kind == types.EventGameEnd && b.state.Winner != engine.NoWinner {
			id := b.participants[b.state.Winner].ID
			ev.Winner = &id
		}
		for _, p := range b.participants {
			p.Endpoint.Send(ev)
		}
	}
}

func views(party []*catalog.Creature) []types.CreatureView {
	out := make([]types.CreatureView, len(party))
	for i, cr := range party {
		out[i] = cr.View()
	}
	return out
}
