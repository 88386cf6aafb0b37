// Package catalog holds the static species, move and item reference data. A
// Catalog is built once at startup, never mutated, and handed explicitly to
// whatever needs lookups.
package catalog

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
)

//go:embed data/dex.json
var defaultDex []byte

var ErrUnknownSpecies = errors.New("unknown species")
var ErrUnknownMove = errors.New("unknown move")
var ErrUnknownItem = errors.New("unknown item")
var ErrDuplicateID = errors.New("duplicate id")

type BaseStats struct {
	HP      int `json:"hp"`
	Attack  int `json:"attack"`
	Defense int `json:"defense"`
	Speed   int `json:"speed"`
}

type Species struct {
	ID       uint16    `json:"id"`
	Name     string    `json:"name"`
	Base     BaseStats `json:"base"`
	Learnset []uint16  `json:"learnset"`
}

type Move struct {
	ID       uint16 `json:"id"`
	Name     string `json:"name"`
	Power    int    `json:"power"`
	Accuracy int    `json:"accuracy"` // percent
	PP       int    `json:"pp"`
	Priority int    `json:"priority"`
}

type Item struct {
	ID   uint16 `json:"id"`
	Name string `json:"name"`
	Heal int    `json:"heal"`
}

type dexFile struct {
	Species []Species `json:"species"`
	Moves   []Move    `json:"moves"`
	Items   []Item    `json:"items"`
}

type Catalog struct {
	species    map[uint16]*Species
	moves      map[uint16]*Move
	items      map[uint16]*Item
	speciesIDs []uint16
}

// New validates and indexes the given reference data.
func New(species []Species, moves []Move, items []Item) (*Catalog, error) {
	c := &Catalog{
		species: make(map[uint16]*Species, len(species)),
		moves:   make(map[uint16]*Move, len(moves)),
		items:   make(map[uint16]*Item, len(items)),
	}
	for i := range moves {
		m := moves[i]
		if _, ok := c.moves[m.ID]; ok {
			return nil, fmt.Errorf("move %d: %w", m.ID, ErrDuplicateID)
		}
		c.moves[m.ID] = &m
	}
	for i := range items {
		it := items[i]
		if _, ok := c.items[it.ID]; ok {
			return nil, fmt.Errorf("item %d: %w", it.ID, ErrDuplicateID)
		}
		c.items[it.ID] = &it
	}
	for i := range species {
		s := species[i]
		if _, ok := c.species[s.ID]; ok {
			return nil, fmt.Errorf("species %d: %w", s.ID, ErrDuplicateID)
		}
		if len(s.Learnset) == 0 {
			return nil, fmt.Errorf("species %d has an empty learnset", s.ID)
		}
		for _, id := range s.Learnset {
			if _, ok := c.moves[id]; !ok {
				return nil, fmt.Errorf("species %d learnset move %d: %w", s.ID, id, ErrUnknownMove)
			}
		}
		s.Learnset = slices.Clone(s.Learnset)
		c.species[s.ID] = &s
		c.speciesIDs = append(c.speciesIDs, s.ID)
	}
	if len(c.speciesIDs) == 0 {
		return nil, errors.New("catalog has no species")
	}
	slices.Sort(c.speciesIDs)
	return c, nil
}

// Parse reads a JSON dex document.
func Parse(data []byte) (*Catalog, error) {
	var f dexFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse dex: %w", err)
	}
	return New(f.Species, f.Moves, f.Items)
}

// Load reads a dex file from disk. An empty path loads the built-in dex.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(defaultDex)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dex %s: %w", path, err)
	}
	return Parse(data)
}

func (c *Catalog) Species(id uint16) (*Species, bool) {
	s, ok := c.species[id]
	return s, ok
}

func (c *Catalog) Move(id uint16) (*Move, bool) {
	m, ok := c.moves[id]
	return m, ok
}

func (c *Catalog) Item(id uint16) (*Item, bool) {
	it, ok := c.items[id]
	return it, ok
}

// SpeciesIDs returns every species id in ascending order.
func (c *Catalog) SpeciesIDs() []uint16 {
	return slices.Clone(c.speciesIDs)
}
