package engine

import (
	"cmp"
	"slices"

	"github.com/DoyleJ11/monster-battle-net/internal/types"
)

// TurnOrder lists the sides with a pending action in resolution order:
// switches first, then moves by priority, then by the active creature's
// speed. Remaining ties go to the lower side index.
func TurnOrder(s State) []int {
	order := make([]int, 0, len(s.Pending))
	for i := range s.Sides {
		if _, ok := s.Pending[i]; ok {
			order = append(order, i)
		}
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Or(
			cmp.Compare(rank(s, b), rank(s, a)),
			cmp.Compare(priority(s, b), priority(s, a)),
			cmp.Compare(speed(s, b), speed(s, a)),
			cmp.Compare(a, b),
		)
	})
	return order
}

func rank(s State, side int) int {
	if s.Pending[side].Kind == types.ActionSwitch {
		return 1
	}
	return 0
}

func priority(s State, side int) int {
	act := s.Pending[side]
	if act.Kind != types.ActionMove {
		return 0
	}
	moves := s.Sides[side].ActiveCreature().Moves
	if act.Index < 0 || act.Index >= len(moves) {
		return 0
	}
	return moves[act.Index].Move.Priority
}

func speed(s State, side int) int {
	return s.Sides[side].ActiveCreature().Stats.Speed
}
