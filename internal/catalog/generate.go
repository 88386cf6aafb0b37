package catalog

import (
	"math/rand/v2"

	"github.com/DoyleJ11/monster-battle-net/internal/types"
)

const (
	GeneratedLevel = 50
	GeneratedIV    = 15
	nameLength     = 7
	nameAlphabet   = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateParty builds a full party of random species. The same rng state
// always yields the same party.
func (c *Catalog) GenerateParty(rng *rand.Rand) []types.PartyMember {
	party := make([]types.PartyMember, 0, types.PartyCapacity)
	for range types.PartyCapacity {
		id := c.speciesIDs[rng.IntN(len(c.speciesIDs))]
		species := c.species[id]
		party = append(party, types.PartyMember{
			Species: id,
			Level:   GeneratedLevel,
			IVs:     types.UniformIVs(GeneratedIV),
			Moves:   pickMoves(rng, species.Learnset),
		})
	}
	return party
}

func pickMoves(rng *rand.Rand, learnset []uint16) []uint16 {
	moves := append([]uint16(nil), learnset...)
	rng.Shuffle(len(moves), func(i, j int) { moves[i], moves[j] = moves[j], moves[i] })
	if len(moves) > MaxMoves {
		moves = moves[:MaxMoves]
	}
	return moves
}

// RandomName returns a 7 character alphanumeric display name.
func RandomName(rng *rand.Rand) string {
	b := make([]byte, nameLength)
	for i := range b {
		b[i] = nameAlphabet[rng.IntN(len(nameAlphabet))]
	}
	return string(b)
}
