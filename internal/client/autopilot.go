package client

import (
	"math/rand/v2"
	"time"

	"github.com/DoyleJ11/monster-battle-net/internal/catalog"
	"github.com/DoyleJ11/monster-battle-net/internal/types"
)

// maxRetries bounds how often a rejected choice is replaced before the
// autopilot gives up and forfeits.
const maxRetries = 2 * catalog.MaxMoves

// Autopilot is a Simulation that plays without a human: it mirrors its own
// party from the event stream and answers every TurnRequest with a random
// legal action after Delay.
type Autopilot struct {
	party  []*catalog.Creature
	rng    *rand.Rand
	delay  time.Duration
	active int
	self   int
	out    []bool

	waiting bool
	wait    time.Duration
	retries int
	queued  []types.Action
	done    bool
}

var _ Simulation = (*Autopilot)(nil)

func NewAutopilot(party []*catalog.Creature, rng *rand.Rand, delay time.Duration) *Autopilot {
	return &Autopilot{party: party, rng: rng, delay: delay, self: -1}
}

// Done reports whether the battle is over for this side.
func (a *Autopilot) Done() bool { return a.done }

func (a *Autopilot) Handle(ev types.Event) {
	switch ev.Kind {
	case types.EventBegin:
		a.self = ev.Self
		a.out = make([]bool, len(ev.Roster))
		a.active = 0
	case types.EventTurnRequest:
		a.retries = 0
		a.schedule()
	case types.EventRejected:
		a.retries++
		a.schedule()
	case types.EventMove, types.EventMiss:
		if a.mine(ev.Actor) {
			if slot := a.slot(ev.Index); slot != nil {
				slot.PP = max(slot.PP-1, 0)
			}
		}
	case types.EventDamage:
		if a.mine(ev.Target) {
			a.party[a.active].HP = ev.Remaining
		}
	case types.EventItem:
		if a.mine(ev.Actor) {
			a.party[a.active].HP = ev.Remaining
			a.party[a.active].Item = nil
		}
	case types.EventFaint:
		if a.mine(ev.Target) && ev.Index >= 0 && ev.Index < len(a.party) {
			a.party[ev.Index].HP = 0
		}
	case types.EventSwitch:
		if a.mine(ev.Actor) && ev.Index >= 0 && ev.Index < len(a.party) {
			a.active = ev.Index
		}
	case types.EventPlayerEnd:
		if ev.Actor >= 0 && ev.Actor < len(a.out) {
			a.out[ev.Actor] = true
		}
		if a.mine(ev.Actor) {
			a.finish()
		}
	case types.EventGameEnd:
		a.finish()
	}
}

func (a *Autopilot) Update(dt time.Duration) {
	if !a.waiting {
		return
	}
	a.wait -= dt
	if a.wait > 0 {
		return
	}
	a.waiting = false
	a.queued = append(a.queued, a.choose())
}

// Actions returns the choices made since the last call.
func (a *Autopilot) Actions() []types.Action {
	out := a.queued
	a.queued = nil
	return out
}

func (a *Autopilot) schedule() {
	if a.done {
		return
	}
	a.waiting = true
	a.wait = a.delay
}

func (a *Autopilot) finish() {
	a.done = true
	a.waiting = false
	a.queued = nil
}

func (a *Autopilot) mine(side int) bool { return a.self >= 0 && side == a.self }

func (a *Autopilot) slot(i int) *catalog.MoveSlot {
	cr := a.party[a.active]
	if i < 0 || i >= len(cr.Moves) {
		return nil
	}
	return &cr.Moves[i]
}

func (a *Autopilot) choose() types.Action {
	if a.retries > maxRetries {
		return types.ForfeitAction()
	}
	cr := a.party[a.active]
	if cr.Fainted() {
		return a.switchOr(func(*catalog.Creature) bool { return true })
	}

	var usable []int
	for i, s := range cr.Moves {
		if s.PP > 0 {
			usable = append(usable, i)
		}
	}
	if len(usable) == 0 {
		return a.switchOr(hasPP)
	}

	var targets []int
	for i, out := range a.out {
		if i != a.self && !out {
			targets = append(targets, i)
		}
	}
	if len(targets) == 0 {
		return types.ForfeitAction()
	}
	return types.MoveAction(usable[a.rng.IntN(len(usable))], targets[a.rng.IntN(len(targets))])
}

// switchOr brings in a random live creature that satisfies ok, or forfeits
// when there is none.
func (a *Autopilot) switchOr(ok func(*catalog.Creature) bool) types.Action {
	var bench []int
	for i, cr := range a.party {
		if i != a.active && !cr.Fainted() && ok(cr) {
			bench = append(bench, i)
		}
	}
	if len(bench) == 0 {
		return types.ForfeitAction()
	}
	return types.SwitchAction(bench[a.rng.IntN(len(bench))])
}

func hasPP(cr *catalog.Creature) bool {
	for _, s := range cr.Moves {
		if s.PP > 0 {
			return true
		}
	}
	return false
}
