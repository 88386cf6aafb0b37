// Package client drives a player's connection to the battle server: typing
// an address, the join handshake, waiting for an opponent and the battle
// itself. The Machine is advanced once per frame by the surrounding loop.
package client

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/monster-battle-net/internal/catalog"
	"github.com/DoyleJ11/monster-battle-net/internal/types"
)

const (
	// ResendInterval is how long the machine waits for Validate before it
	// asks again.
	ResendInterval = 10 * time.Second
	// RejectedDisplay is how long a rejection stays on screen.
	RejectedDisplay = 5 * time.Second
)

type StateKind uint8

const (
	Connecting StateKind = iota + 1
	AwaitingConfirm
	AwaitingOpponent
	InBattle
	RejectedVersion
	Closed
)

func (k StateKind) String() string {
	switch k {
	case Connecting:
		return "Connecting"
	case AwaitingConfirm:
		return "AwaitingConfirm"
	case AwaitingOpponent:
		return "AwaitingOpponent"
	case InBattle:
		return "InBattle"
	case RejectedVersion:
		return "RejectedVersion"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Simulation is the local battle the machine feeds. It never sees the
// connection: events come in through Handle and actions leave through
// Actions.
type Simulation interface {
	Handle(ev types.Event)
	Update(dt time.Duration)
	Actions() []types.Action
}

// NewSimulation builds the local battle once the party is known.
type NewSimulation func(self types.Player, party []*catalog.Creature) Simulation

type Options struct {
	Catalog       *catalog.Catalog
	Dial          Dialer
	NewSimulation NewSimulation
	Version       string
	Rand          *rand.Rand
	Log           *zap.Logger
}

type Machine struct {
	catalog *catalog.Catalog
	dial    Dialer
	newSim  NewSimulation
	version string
	rng     *rand.Rand
	log     *zap.Logger

	state   StateKind
	input   string
	warning string

	conn        Conn
	name        string
	accumulator time.Duration
	remaining   time.Duration
	rejection   types.OutcomeKind

	player types.Player
	party  []*catalog.Creature
	sim    Simulation
	self   int
}

func New(opts Options) *Machine {
	if opts.Version == "" {
		opts.Version = types.Version
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.NewSimulation == nil {
		rng := opts.Rand
		opts.NewSimulation = func(_ types.Player, party []*catalog.Creature) Simulation {
			return NewAutopilot(party, rng, 0)
		}
	}
	return &Machine{
		catalog: opts.Catalog,
		dial:    opts.Dial,
		newSim:  opts.NewSimulation,
		version: opts.Version,
		rng:     opts.Rand,
		log:     opts.Log,
		state:   Connecting,
	}
}

func (m *Machine) State() StateKind { return m.state }

// Input is the text typed so far while Connecting.
func (m *Machine) Input() string { return m.input }

// Warning is the last problem worth showing the player, if any.
func (m *Machine) Warning() string { return m.warning }

// Accumulator is the time since RequestJoin was last sent.
func (m *Machine) Accumulator() time.Duration { return m.accumulator }

// Remaining is what is left of the rejection display.
func (m *Machine) Remaining() time.Duration { return m.remaining }

// Rejection is the outcome that sent the machine to RejectedVersion.
func (m *Machine) Rejection() types.OutcomeKind { return m.rejection }

func (m *Machine) Player() types.Player { return m.player }

// Type appends text to the input line. It is ignored outside Connecting.
func (m *Machine) Type(text string) {
	if m.state == Connecting {
		m.input += text
	}
}

// Confirm parses the input line and tries to connect. On failure the input
// is cleared and Warning explains why.
func (m *Machine) Confirm(ctx context.Context) {
	if m.state != Connecting {
		return
	}
	line := m.input
	m.input = ""

	addr, name, err := ParseLine(line)
	if err != nil {
		m.warn("invalid address", err)
		return
	}
	conn, err := m.dial(ctx, addr)
	if err != nil {
		m.warn("could not connect", err)
		return
	}
	m.log.Info("connected", zap.String("addr", addr))
	m.conn = conn
	m.name = name
	m.warning = ""
	// first tick sends RequestJoin straight away
	m.accumulator = ResendInterval
	m.state = AwaitingConfirm
}

func (m *Machine) warn(msg string, err error) {
	m.log.Warn(msg, zap.Error(err))
	m.warning = msg + ": " + err.Error()
}

// Tick advances the machine by dt.
func (m *Machine) Tick(dt time.Duration) {
	switch m.state {
	case AwaitingConfirm:
		m.tickConfirm(dt)
	case AwaitingOpponent:
		m.tickOpponent()
	case InBattle:
		m.tickBattle(dt)
	case RejectedVersion:
		m.remaining -= dt
		if m.remaining <= 0 {
			m.reset()
		}
	case Closed:
		m.reset()
	}
}

func (m *Machine) tickConfirm(dt time.Duration) {
	for {
		msg, ok := m.conn.Receive()
		if !ok {
			break
		}
		if msg.Kind != types.ServerValidate {
			m.log.Warn("expected Validate", zap.Stringer("got", msg.Kind))
			continue
		}
		if msg.Outcome.Kind != types.OutcomeCanJoin {
			m.reject(msg.Outcome.Kind)
			return
		}
		m.accept(msg.Outcome.Party)
		return
	}
	if m.conn.Lost() {
		m.close("server closed the connection")
		return
	}

	m.accumulator += dt
	if m.accumulator >= ResendInterval {
		m.accumulator = 0
		if err := m.conn.Send(types.RequestJoin(m.version)); err != nil {
			m.log.Warn("join request not sent", zap.Error(err))
		}
	}
}

// accept answers CanJoin with our player and builds the local battle.
func (m *Machine) accept(offered []types.PartyMember) {
	party := offered
	if party == nil {
		party = m.catalog.GenerateParty(m.rng)
	}
	name := types.NormalizeName(m.name)
	if name == "" {
		name = catalog.RandomName(m.rng)
	}
	creatures, err := m.catalog.MaterializeParty(party)
	if err != nil {
		m.log.Error("party unusable", zap.Error(err))
		m.release(false)
		m.warning = "party unusable: " + err.Error()
		m.state = Closed
		return
	}

	m.player = types.Player{Name: name, Party: party}
	if err := m.conn.Send(types.Join(m.player)); err != nil {
		m.log.Warn("join not sent", zap.Error(err))
	}
	m.party = creatures
	m.sim = m.newSim(m.player, creatures)
	m.self = -1
	m.state = AwaitingOpponent
	m.log.Info("joined lobby", zap.String("name", name))
}

func (m *Machine) reject(kind types.OutcomeKind) {
	m.log.Info("join rejected", zap.Stringer("outcome", kind))
	m.release(false)
	m.rejection = kind
	m.remaining = RejectedDisplay
	m.state = RejectedVersion
}

func (m *Machine) tickOpponent() {
	for {
		msg, ok := m.conn.Receive()
		if !ok {
			break
		}
		switch msg.Kind {
		case types.ServerGame:
			m.feed(*msg.Event)
		case types.ServerBegin:
			m.log.Info("battle begun")
			m.state = InBattle
			// the rest of the queue belongs to the battle
			return
		case types.ServerEnd:
			m.close("server ended the session")
			return
		case types.ServerValidate:
			if msg.Outcome.Kind != types.OutcomeCanJoin {
				m.reject(msg.Outcome.Kind)
				return
			}
		}
	}
	if m.conn.Lost() {
		m.close("server closed the connection")
	}
}

func (m *Machine) tickBattle(dt time.Duration) {
	for {
		msg, ok := m.conn.Receive()
		if !ok {
			break
		}
		switch msg.Kind {
		case types.ServerGame:
			m.feed(*msg.Event)
			if m.over(*msg.Event) {
				m.close("")
				return
			}
		case types.ServerEnd:
			m.close("")
			return
		default:
			m.log.Warn("unexpected message in battle", zap.Stringer("kind", msg.Kind))
		}
	}
	if m.conn.Lost() {
		m.close("server closed the connection")
		return
	}

	m.sim.Update(dt)
	for _, a := range m.sim.Actions() {
		if err := m.conn.Send(types.Game(a)); err != nil {
			m.log.Warn("action not sent", zap.Stringer("kind", a.Kind), zap.Error(err))
		}
	}
}

func (m *Machine) feed(ev types.Event) {
	if ev.Kind == types.EventBegin {
		m.self = ev.Self
	}
	m.sim.Handle(ev)
}

// over reports whether ev ends the battle for this player.
func (m *Machine) over(ev types.Event) bool {
	switch ev.Kind {
	case types.EventGameEnd:
		return true
	case types.EventPlayerEnd:
		return ev.Actor == m.self
	}
	return false
}

// Leave tears the session down from the player's side. In the lobby or a
// battle the server is told with Leave before the connection is released.
func (m *Machine) Leave() {
	switch m.state {
	case AwaitingOpponent, InBattle:
		m.release(true)
		m.state = Closed
	case AwaitingConfirm:
		m.release(false)
		m.state = Closed
	}
}

func (m *Machine) close(warning string) {
	if warning != "" {
		m.warning = warning
	}
	m.release(false)
	m.state = Closed
}

func (m *Machine) release(leave bool) {
	if m.conn == nil {
		return
	}
	if leave {
		if err := m.conn.Send(types.Leave()); err != nil {
			m.log.Warn("leave not sent", zap.Error(err))
		}
	}
	if err := m.conn.Close(); err != nil {
		m.log.Debug("close failed", zap.Error(err))
	}
	m.conn = nil
}

func (m *Machine) reset() {
	m.input = ""
	m.sim = nil
	m.party = nil
	m.state = Connecting
}
