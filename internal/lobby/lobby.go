// Package lobby tracks who is waiting for the next battle. It is a plain
// slot table driven by the server's lobby loop; it never touches the network.
package lobby

import (
	"math/rand/v2"
	"slices"

	"go.uber.org/zap"

	"github.com/DoyleJ11/monster-battle-net/internal/catalog"
	"github.com/DoyleJ11/monster-battle-net/internal/config"
	"github.com/DoyleJ11/monster-battle-net/internal/endpoint"
	"github.com/DoyleJ11/monster-battle-net/internal/types"
)

// Slot belongs to a peer that passed the version check. Player stays nil
// until the peer sends Join.
type Slot struct {
	Peer   endpoint.Peer
	Player *types.Player
	// Party is the server-generated party offered in CanJoin, if any.
	Party []types.PartyMember

	seq int
}

func (s Slot) Filled() bool { return s.Player != nil }

type Options struct {
	Size        int
	Version     string
	PartyOrigin config.PartyOrigin
	Catalog     *catalog.Catalog
	Rand        *rand.Rand
	Log         *zap.Logger
}

type Lobby struct {
	log     *zap.Logger
	size    int
	version string
	origin  config.PartyOrigin
	catalog *catalog.Catalog
	rng     *rand.Rand

	slots  map[endpoint.Peer]*Slot
	filled int
	seq    int
}

func New(opts Options) *Lobby {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Version == "" {
		opts.Version = types.Version
	}
	if opts.PartyOrigin == "" {
		opts.PartyOrigin = config.PartyFromClient
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Lobby{
		log:     opts.Log,
		size:    opts.Size,
		version: opts.Version,
		origin:  opts.PartyOrigin,
		catalog: opts.Catalog,
		rng:     opts.Rand,
		slots:   make(map[endpoint.Peer]*Slot),
	}
}

// RequestJoin checks the peer's protocol version and, on a match, opens a
// pending slot for it.
func (l *Lobby) RequestJoin(peer endpoint.Peer, version string) types.ConnectOutcome {
	if l.Full() {
		return types.Outcome(types.OutcomeInProgress)
	}
	if _, ok := l.slots[peer]; ok {
		l.log.Warn("duplicate join request", zap.Uint64("peer", uint64(peer)))
		return types.Outcome(types.OutcomeAlreadyConnected)
	}
	if version != l.version {
		l.log.Info("version mismatch", zap.Uint64("peer", uint64(peer)), zap.String("got", version), zap.String("want", l.version))
		return types.Outcome(types.OutcomeWrongVersion)
	}

	l.seq++
	slot := &Slot{Peer: peer, seq: l.seq}
	if l.origin == config.PartyFromServer {
		slot.Party = l.catalog.GenerateParty(l.rng)
	}
	l.slots[peer] = slot
	l.log.Debug("slot pending", zap.Uint64("peer", uint64(peer)))
	return types.CanJoin(slot.Party)
}

// Join fills the peer's pending slot. The returned outcome, when not nil,
// must be sent back to the peer.
func (l *Lobby) Join(peer endpoint.Peer, p types.Player) *types.ConnectOutcome {
	if l.Full() {
		return outcome(types.OutcomeInProgress)
	}
	slot, ok := l.slots[peer]
	if !ok || slot.Filled() {
		l.log.Warn("join without a pending slot", zap.Uint64("peer", uint64(peer)), zap.Bool("known", ok))
		return outcome(types.OutcomeAlreadyConnected)
	}

	player := types.Player{Name: types.NormalizeName(p.Name), Party: p.Party}
	if player.Name == "" {
		player.Name = catalog.RandomName(l.rng)
	}
	if slot.Party != nil {
		player.Party = slot.Party
	} else if err := l.catalog.ValidateParty(player.Party); err != nil {
		l.log.Warn("join with invalid party dropped", zap.Uint64("peer", uint64(peer)), zap.Error(err))
		return nil
	}

	slot.Player = &player
	l.filled++
	l.log.Info("slot filled", zap.Uint64("peer", uint64(peer)), zap.String("name", player.Name),
		zap.Int("filled", l.filled), zap.Int("size", l.size))
	return nil
}

// Remove drops the peer's slot, filled or pending.
func (l *Lobby) Remove(peer endpoint.Peer) bool {
	slot, ok := l.slots[peer]
	if !ok {
		return false
	}
	if slot.Filled() {
		l.filled--
	}
	delete(l.slots, peer)
	l.log.Debug("slot removed", zap.Uint64("peer", uint64(peer)))
	return true
}

// Full reports whether exactly Size slots are filled.
func (l *Lobby) Full() bool { return l.filled == l.size }

func (l *Lobby) Size() int { return l.size }

// Has reports whether the peer holds a slot.
func (l *Lobby) Has(peer endpoint.Peer) bool {
	_, ok := l.slots[peer]
	return ok
}

// Filled returns the filled slots in the order their requests arrived.
func (l *Lobby) Filled() []Slot {
	return l.collect(true)
}

// Pending returns the slots still waiting for Join.
func (l *Lobby) Pending() []Slot {
	return l.collect(false)
}

func (l *Lobby) collect(filled bool) []Slot {
	var out []Slot
	for _, s := range l.slots {
		if s.Filled() == filled {
			out = append(out, *s)
		}
	}
	slices.SortFunc(out, func(a, b Slot) int { return a.seq - b.seq })
	return out
}

func outcome(kind types.OutcomeKind) *types.ConnectOutcome {
	o := types.Outcome(kind)
	return &o
}
