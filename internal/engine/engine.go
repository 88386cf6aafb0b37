package engine

import (
	"errors"
	"fmt"
	"maps"
	"math/rand/v2"

	"github.com/DoyleJ11/monster-battle-net/internal/catalog"
	"github.com/DoyleJ11/monster-battle-net/internal/types"
)

var ErrWrongTurn = errors.New("invalid turn")
var ErrIllegalMove = errors.New("illegal move")
var ErrIllegalSwitch = errors.New("illegal switch")
var ErrAlreadyChosen = errors.New("action already chosen")
var ErrUnsupportedCommand = errors.New("unsupported command")
var ErrGameAlreadyCompleted = errors.New("game already completed")

type Phase string

const (
	PhaseChoose Phase = "choose"
	PhaseDone   Phase = "done"
)

// NoWinner is State.Winner while the battle runs or when it ended in a draw.
const NoWinner = -1

// Side is one participant's half of the field.
type Side struct {
	Party  []*catalog.Creature
	Active int
	Out    bool // forfeited or fully fainted
}

func (s Side) ActiveCreature() *catalog.Creature { return s.Party[s.Active] }

// State is the battle in progress. Creatures are shared with the caller, so
// Apply and Resolve update them in place as well as returning the new State.
type State struct {
	Phase   Phase
	Turn    int
	Sides   []Side
	Pending map[int]types.Action
	Winner  int
}

type Command struct {
	Side   int
	Action types.Action
}

/*
	Move    -> recorded; resolved with the turn
	Switch  -> recorded; resolved with the turn, before any move
	Forfeit -> EventPlayerEnd immediately, EventGameEnd if one side is left
*/

// Apply validates a side's action for the current turn.
func Apply(s State, cmd Command) ([]types.Event, State, error) {
	if s.Phase == PhaseDone {
		return nil, s, ErrGameAlreadyCompleted
	}
	if cmd.Side < 0 || cmd.Side >= len(s.Sides) || s.Sides[cmd.Side].Out {
		return nil, s, ErrWrongTurn
	}
	side := s.Sides[cmd.Side]
	newState := s
	newState.Pending = maps.Clone(s.Pending)
	if newState.Pending == nil {
		newState.Pending = make(map[int]types.Action)
	}

	switch cmd.Action.Kind {
	case types.ActionForfeit:
		// A forfeit replaces whatever the side already chose.
		delete(newState.Pending, cmd.Side)
		newState.Sides = cloneSides(s.Sides)
		newState.Sides[cmd.Side].Out = true
		events := []types.Event{{Kind: types.EventPlayerEnd, Turn: s.Turn, Actor: cmd.Side}}
		events = append(events, finish(&newState)...)
		return events, newState, nil

	case types.ActionMove:
		if _, ok := s.Pending[cmd.Side]; ok {
			return nil, s, ErrAlreadyChosen
		}
		if err := canMove(s, side, cmd); err != nil {
			return nil, s, err
		}
		newState.Pending[cmd.Side] = cmd.Action
		return nil, newState, nil

	case types.ActionSwitch:
		if _, ok := s.Pending[cmd.Side]; ok {
			return nil, s, ErrAlreadyChosen
		}
		if !canSwitch(side, cmd.Action.Index) {
			return nil, s, fmt.Errorf("%w: party position %d", ErrIllegalSwitch, cmd.Action.Index)
		}
		newState.Pending[cmd.Side] = cmd.Action
		return nil, newState, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

// Ready reports whether every side still in the battle has chosen.
func Ready(s State) bool {
	if s.Phase == PhaseDone {
		return false
	}
	for i, side := range s.Sides {
		if side.Out {
			continue
		}
		if _, ok := s.Pending[i]; !ok {
			return false
		}
	}
	return true
}

// Resolve plays out the chosen actions and opens the next turn. rng decides
// accuracy rolls.
func Resolve(s State, rng *rand.Rand) ([]types.Event, State) {
	newState := s
	newState.Sides = cloneSides(s.Sides)
	var events []types.Event

	for _, i := range TurnOrder(s) {
		act := s.Pending[i]
		side := &newState.Sides[i]
		if side.Out {
			continue
		}
		switch act.Kind {
		case types.ActionSwitch:
			side.Active = act.Index
			events = append(events, types.Event{
				Kind:      types.EventSwitch,
				Turn:      s.Turn,
				Actor:     i,
				Index:     act.Index,
				Remaining: side.ActiveCreature().HP,
			})
		case types.ActionMove:
			events = append(events, useMove(&newState, i, act, rng)...)
		}
	}
	events = append(events, useItems(&newState)...)

	newState.Pending = make(map[int]types.Action)
	newState.Turn++
	events = append(events, finish(&newState)...)
	return events, newState
}

func useMove(s *State, actor int, act types.Action, rng *rand.Rand) []types.Event {
	attacker := s.Sides[actor].ActiveCreature()
	if attacker.Fainted() {
		return nil
	}
	target := retarget(*s, actor, act.Target)
	if target < 0 {
		return nil
	}
	defSide := &s.Sides[target]
	defender := defSide.ActiveCreature()
	if defender.Fainted() {
		return nil
	}

	slot := &attacker.Moves[act.Index]
	slot.PP--
	events := []types.Event{{Kind: types.EventMove, Turn: s.Turn, Actor: actor, Target: target, Index: act.Index}}

	if acc := slot.Move.Accuracy; acc > 0 && acc < 100 && rng.IntN(100) >= acc {
		events[0].Kind = types.EventMiss
		return events
	}

	dmg := Damage(attacker, defender, slot.Move)
	defender.HP = max(defender.HP-dmg, 0)
	events = append(events, types.Event{
		Kind:      types.EventDamage,
		Turn:      s.Turn,
		Actor:     actor,
		Target:    target,
		Amount:    dmg,
		Remaining: defender.HP,
	})
	if !defender.Fainted() {
		return events
	}

	events = append(events, types.Event{Kind: types.EventFaint, Turn: s.Turn, Target: target, Index: defSide.Active})
	if defeated(*defSide) {
		defSide.Out = true
		events = append(events, types.Event{Kind: types.EventPlayerEnd, Turn: s.Turn, Actor: target})
	}
	return events
}

// retarget keeps a move aimed at a side that left earlier in the turn on
// the field by sending it to the next side still in.
func retarget(s State, actor, target int) int {
	n := len(s.Sides)
	for step := 0; step < n; step++ {
		i := (target + step) % n
		if i != actor && !s.Sides[i].Out {
			return i
		}
	}
	return -1
}

// useItems lets a creature below half health consume its held healing item.
func useItems(s *State) []types.Event {
	var events []types.Event
	for i := range s.Sides {
		side := &s.Sides[i]
		if side.Out {
			continue
		}
		cr := side.ActiveCreature()
		if cr.Item == nil || cr.Item.Heal <= 0 || cr.Fainted() || cr.HP*2 >= cr.Stats.MaxHP {
			continue
		}
		healed := min(cr.Item.Heal, cr.Stats.MaxHP-cr.HP)
		cr.HP += healed
		events = append(events, types.Event{
			Kind:      types.EventItem,
			Turn:      s.Turn,
			Actor:     i,
			Index:     int(cr.Item.ID),
			Amount:    healed,
			Remaining: cr.HP,
		})
		cr.Item = nil
	}
	return events
}

// finish ends the battle once at most one side is left.
func finish(s *State) []types.Event {
	left := NoWinner
	count := 0
	for i, side := range s.Sides {
		if !side.Out {
			left = i
			count++
		}
	}
	if count > 1 {
		return nil
	}
	s.Phase = PhaseDone
	s.Winner = left
	return []types.Event{{Kind: types.EventGameEnd, Turn: s.Turn}}
}

// Damage is ((2*L/5+2)*power*atk/def)/50 + 2.
func Damage(attacker, defender *catalog.Creature, mv *catalog.Move) int {
	level := int(attacker.Level)
	def := max(defender.Stats.Defense, 1)
	return ((2*level/5+2)*mv.Power*attacker.Stats.Attack/def)/50 + 2
}

func canMove(s State, side Side, cmd Command) error {
	cr := side.ActiveCreature()
	if cr.Fainted() {
		return fmt.Errorf("%w: active creature fainted, switch required", ErrIllegalMove)
	}
	idx := cmd.Action.Index
	if idx < 0 || idx >= len(cr.Moves) {
		return fmt.Errorf("%w: no move slot %d", ErrIllegalMove, idx)
	}
	if cr.Moves[idx].PP <= 0 {
		return fmt.Errorf("%w: %s is out of PP", ErrIllegalMove, cr.Moves[idx].Move.Name)
	}
	t := cmd.Action.Target
	if t == cmd.Side || t < 0 || t >= len(s.Sides) || s.Sides[t].Out {
		return fmt.Errorf("%w: bad target %d", ErrIllegalMove, t)
	}
	return nil
}

func canSwitch(side Side, index int) bool {
	if index < 0 || index >= len(side.Party) || index == side.Active {
		return false
	}
	return !side.Party[index].Fainted()
}

func defeated(side Side) bool {
	for _, cr := range side.Party {
		if !cr.Fainted() {
			return false
		}
	}
	return true
}

func cloneSides(sides []Side) []Side {
	out := make([]Side, len(sides))
	copy(out, sides)
	return out
}
