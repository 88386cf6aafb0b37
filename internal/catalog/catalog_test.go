package catalog

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/monster-battle-net/internal/types"
)

func loadDefault(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load("")
	require.NoError(t, err)
	return c
}

func TestLoad_DefaultDex(t *testing.T) {
	c := loadDefault(t)

	s, ok := c.Species(25)
	require.True(t, ok)
	assert.Equal(t, "Pikachu", s.Name)

	m, ok := c.Move(4)
	require.True(t, ok)
	assert.Equal(t, 1, m.Priority)

	ids := c.SpeciesIDs()
	assert.IsIncreasing(t, ids)
}

func TestNew_RejectsBadData(t *testing.T) {
	moves := []Move{{ID: 1, Name: "Tackle", Power: 40, Accuracy: 100, PP: 35}}

	_, err := New([]Species{{ID: 1, Learnset: []uint16{1}}, {ID: 1, Learnset: []uint16{1}}}, moves, nil)
	assert.True(t, errors.Is(err, ErrDuplicateID), "got %v", err)

	_, err = New([]Species{{ID: 1, Learnset: []uint16{9}}}, moves, nil)
	assert.True(t, errors.Is(err, ErrUnknownMove), "got %v", err)

	_, err = New(nil, moves, nil)
	assert.Error(t, err)
}

func TestComputeStats(t *testing.T) {
	stats := ComputeStats(BaseStats{HP: 35, Attack: 55, Defense: 40, Speed: 90}, types.UniformIVs(15), 50)
	assert.Equal(t, Stats{MaxHP: 102, Attack: 67, Defense: 52, Speed: 102}, stats)
}

func TestMaterialize(t *testing.T) {
	c := loadDefault(t)

	cr, err := c.Materialize(types.PartyMember{Species: 25, Level: 50, IVs: types.UniformIVs(15), Moves: []uint16{14, 15}, Item: 1})
	require.NoError(t, err)
	assert.Equal(t, cr.Stats.MaxHP, cr.HP)
	assert.Len(t, cr.Moves, 2)
	assert.Equal(t, 30, cr.Moves[0].PP)
	assert.Equal(t, "Pikachu", cr.Name())
	assert.Equal(t, types.PartyMember{Species: 25, Level: 50, IVs: types.UniformIVs(15), Moves: []uint16{14, 15}, Item: 1}, cr.Snapshot())

	cases := []struct {
		name   string
		member types.PartyMember
		want   error
	}{
		{name: "unknown species", member: types.PartyMember{Species: 999, Level: 5, Moves: []uint16{1}}, want: ErrUnknownSpecies},
		{name: "unknown move", member: types.PartyMember{Species: 25, Level: 5, Moves: []uint16{999}}, want: ErrUnknownMove},
		{name: "unknown item", member: types.PartyMember{Species: 25, Level: 5, Moves: []uint16{1}, Item: 99}, want: ErrUnknownItem},
		{name: "no moves", member: types.PartyMember{Species: 25, Level: 5}, want: ErrInvalidParty},
		{name: "level zero", member: types.PartyMember{Species: 25, Moves: []uint16{1}}, want: ErrInvalidParty},
		{name: "iv above max", member: types.PartyMember{Species: 25, Level: 5, IVs: types.IVs{Attack: MaxIV + 1}, Moves: []uint16{1}}, want: ErrInvalidParty},
		{name: "inflated ivs", member: types.PartyMember{Species: 25, Level: 5, IVs: types.UniformIVs(255), Moves: []uint16{1}}, want: ErrInvalidParty},
	}
	top, err := c.Materialize(types.PartyMember{Species: 25, Level: 5, IVs: types.UniformIVs(MaxIV), Moves: []uint16{1}})
	require.NoError(t, err, "the maximum itself is allowed")
	assert.Equal(t, types.UniformIVs(MaxIV), top.IVs)

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Materialize(tc.member)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestValidateParty_Size(t *testing.T) {
	c := loadDefault(t)
	member := types.PartyMember{Species: 1, Level: 5, Moves: []uint16{1}}

	assert.ErrorIs(t, c.ValidateParty(nil), ErrInvalidParty)
	seven := make([]types.PartyMember, 7)
	for i := range seven {
		seven[i] = member
	}
	assert.ErrorIs(t, c.ValidateParty(seven), ErrInvalidParty)
	assert.NoError(t, c.ValidateParty(seven[:6]))
}

func TestGenerateParty_DeterministicAndValid(t *testing.T) {
	c := loadDefault(t)

	a := c.GenerateParty(rand.New(rand.NewPCG(7, 7)))
	b := c.GenerateParty(rand.New(rand.NewPCG(7, 7)))
	assert.Equal(t, a, b, "same seed must give the same party")
	require.Len(t, a, types.PartyCapacity)

	for _, m := range a {
		assert.EqualValues(t, GeneratedLevel, m.Level)
		assert.Equal(t, types.UniformIVs(GeneratedIV), m.IVs)
		assert.NotEmpty(t, m.Moves)
		assert.LessOrEqual(t, len(m.Moves), MaxMoves)
	}
	assert.NoError(t, c.ValidateParty(a))
}

func TestRandomName(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	name := RandomName(rng)
	assert.Len(t, name, 7)
	assert.Regexp(t, `^[a-zA-Z0-9]{7}$`, name)
	assert.Equal(t, name, RandomName(rand.New(rand.NewPCG(1, 2))))
}
