package engine

import (
	"github.com/DoyleJ11/monster-battle-net/internal/catalog"
	"github.com/DoyleJ11/monster-battle-net/internal/types"
)

// NewState opens turn 1 with the first creature of every party active.
func NewState(parties [][]*catalog.Creature) State {
	s := State{
		Phase:   PhaseChoose,
		Turn:    1,
		Sides:   make([]Side, len(parties)),
		Pending: map[int]types.Action{},
		Winner:  NoWinner,
	}
	for i, party := range parties {
		s.Sides[i] = Side{Party: party}
	}
	return s
}

func ContainsEvent(events []types.Event, kind types.EventKind) bool {
	for _, event := range events {
		if event.Kind == kind {
			return true
		}
	}
	return false
}

// Live returns the indices of the sides still in the battle.
func Live(s State) []int {
	var out []int
	for i, side := range s.Sides {
		if !side.Out {
			out = append(out, i)
		}
	}
	return out
}

// LegalActions lists every Move and Switch the side may choose this turn.
// Forfeit is always legal and not listed.
func LegalActions(s State, side int) []types.Action {
	if s.Phase == PhaseDone || side < 0 || side >= len(s.Sides) || s.Sides[side].Out {
		return nil
	}
	var out []types.Action
	sd := s.Sides[side]
	if cr := sd.ActiveCreature(); !cr.Fainted() {
		for _, target := range Live(s) {
			if target == side {
				continue
			}
			for slot, m := range cr.Moves {
				if m.PP > 0 {
					out = append(out, types.MoveAction(slot, target))
				}
			}
		}
	}
	for i := range sd.Party {
		if canSwitch(sd, i) {
			out = append(out, types.SwitchAction(i))
		}
	}
	return out
}
