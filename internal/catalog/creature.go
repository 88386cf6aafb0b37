package catalog

import (
	"errors"
	"fmt"

	"github.com/DoyleJ11/monster-battle-net/internal/types"
)

// MaxMoves is the number of move slots a creature has.
const MaxMoves = 4

// MaxIV bounds each individual value.
const MaxIV = 31

var ErrInvalidParty = errors.New("invalid party")

type Stats struct {
	MaxHP   int
	Attack  int
	Defense int
	Speed   int
}

type MoveSlot struct {
	Move *Move
	PP   int
}

// Creature is the live, in-battle form of a PartyMember.
type Creature struct {
	Species  *Species
	Nickname string
	Level    uint8
	IVs      types.IVs
	Stats    Stats
	HP       int
	Moves    []MoveSlot
	Item     *Item
}

// ComputeStats derives a creature's stats from its base stats, IVs and level.
func ComputeStats(base BaseStats, ivs types.IVs, level uint8) Stats {
	l := int(level)
	stat := func(b int, iv uint8) int { return (2*b+int(iv))*l/100 + 5 }
	return Stats{
		MaxHP:   (2*base.HP+int(ivs.HP))*l/100 + l + 10,
		Attack:  stat(base.Attack, ivs.Attack),
		Defense: stat(base.Defense, ivs.Defense),
		Speed:   stat(base.Speed, ivs.Speed),
	}
}

// Materialize builds a live creature at full health.
func (c *Catalog) Materialize(m types.PartyMember) (*Creature, error) {
	species, ok := c.Species(m.Species)
	if !ok {
		return nil, fmt.Errorf("species %d: %w", m.Species, ErrUnknownSpecies)
	}
	if m.Level == 0 || m.Level > 100 {
		return nil, fmt.Errorf("level %d: %w", m.Level, ErrInvalidParty)
	}
	if len(m.Moves) == 0 || len(m.Moves) > MaxMoves {
		return nil, fmt.Errorf("%d moves: %w", len(m.Moves), ErrInvalidParty)
	}
	if iv := m.IVs; max(iv.HP, iv.Attack, iv.Defense, iv.Speed) > MaxIV {
		return nil, fmt.Errorf("ivs %+v above %d: %w", iv, MaxIV, ErrInvalidParty)
	}
	cr := &Creature{
		Species:  species,
		Nickname: m.Nickname,
		Level:    m.Level,
		IVs:      m.IVs,
		Stats:    ComputeStats(species.Base, m.IVs, m.Level),
		Moves:    make([]MoveSlot, 0, len(m.Moves)),
	}
	cr.HP = cr.Stats.MaxHP
	for _, id := range m.Moves {
		mv, ok := c.Move(id)
		if !ok {
			return nil, fmt.Errorf("move %d: %w", id, ErrUnknownMove)
		}
		cr.Moves = append(cr.Moves, MoveSlot{Move: mv, PP: mv.PP})
	}
	if m.Item != 0 {
		it, ok := c.Item(m.Item)
		if !ok {
			return nil, fmt.Errorf("item %d: %w", m.Item, ErrUnknownItem)
		}
		cr.Item = it
	}
	return cr, nil
}

// MaterializeParty converts a whole party, failing on the first bad member.
func (c *Catalog) MaterializeParty(party []types.PartyMember) ([]*Creature, error) {
	if len(party) == 0 || len(party) > types.PartyCapacity {
		return nil, fmt.Errorf("party of %d: %w", len(party), ErrInvalidParty)
	}
	out := make([]*Creature, 0, len(party))
	for i, m := range party {
		cr, err := c.Materialize(m)
		if err != nil {
			return nil, fmt.Errorf("party member %d: %w", i, err)
		}
		out = append(out, cr)
	}
	return out, nil
}

// ValidateParty reports whether party can be materialized.
func (c *Catalog) ValidateParty(party []types.PartyMember) error {
	_, err := c.MaterializeParty(party)
	return err
}

func (cr *Creature) Fainted() bool { return cr.HP <= 0 }

func (cr *Creature) Name() string {
	if cr.Nickname != "" {
		return cr.Nickname
	}
	return cr.Species.Name
}

func (cr *Creature) View() types.CreatureView {
	moves := make([]uint16, len(cr.Moves))
	for i, s := range cr.Moves {
		moves[i] = s.Move.ID
	}
	return types.CreatureView{
		Species: cr.Species.ID,
		Level:   cr.Level,
		HP:      cr.HP,
		MaxHP:   cr.Stats.MaxHP,
		Moves:   moves,
	}
}

// Snapshot converts the creature back into its wire form.
func (cr *Creature) Snapshot() types.PartyMember {
	m := types.PartyMember{
		Species:  cr.Species.ID,
		Nickname: cr.Nickname,
		Level:    cr.Level,
		IVs:      cr.IVs,
		Moves:    make([]uint16, len(cr.Moves)),
	}
	for i, s := range cr.Moves {
		m.Moves[i] = s.Move.ID
	}
	if cr.Item != nil {
		m.Item = cr.Item.ID
	}
	return m
}
