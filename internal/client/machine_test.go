package client

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/monster-battle-net/internal/catalog"
	"github.com/DoyleJ11/monster-battle-net/internal/types"
)

type fakeConn struct {
	in     []types.ServerMessage
	sent   []types.ClientMessage
	lost   bool
	closed bool
}

func (c *fakeConn) Send(msg types.ClientMessage) error {
	if c.closed {
		return errors.New("closed")
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeConn) Receive() (types.ServerMessage, bool) {
	if len(c.in) == 0 {
		return types.ServerMessage{}, false
	}
	msg := c.in[0]
	c.in = c.in[1:]
	return msg, true
}

func (c *fakeConn) Lost() bool { return c.lost }

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func (c *fakeConn) push(msgs ...types.ServerMessage) { c.in = append(c.in, msgs...) }

func (c *fakeConn) sentKinds() []types.ClientKind {
	out := make([]types.ClientKind, len(c.sent))
	for i, m := range c.sent {
		out[i] = m.Kind
	}
	return out
}

func (c *fakeConn) count(kind types.ClientKind) int {
	n := 0
	for _, m := range c.sent {
		if m.Kind == kind {
			n++
		}
	}
	return n
}

type stubSim struct {
	handled []types.Event
	elapsed time.Duration
	next    []types.Action
}

func (s *stubSim) Handle(ev types.Event)    { s.handled = append(s.handled, ev) }
func (s *stubSim) Update(dt time.Duration) { s.elapsed += dt }

func (s *stubSim) Actions() []types.Action {
	out := s.next
	s.next = nil
	return out
}

type rig struct {
	m      *Machine
	conn   *fakeConn
	sim    *stubSim
	dialed []string
	cat    *catalog.Catalog
}

func newRig(t *testing.T) *rig {
	t.Helper()
	cat, err := catalog.Load("")
	require.NoError(t, err)
	r := &rig{conn: &fakeConn{}, sim: &stubSim{}, cat: cat}
	r.m = New(Options{
		Catalog: cat,
		Dial: func(_ context.Context, addr string) (Conn, error) {
			r.dialed = append(r.dialed, addr)
			return r.conn, nil
		},
		NewSimulation: func(types.Player, []*catalog.Creature) Simulation { return r.sim },
		Version:       "1.0.0",
		Rand:          rand.New(rand.NewPCG(3, 3)),
	})
	return r
}

// connect types line, confirms and runs the first tick.
func (r *rig) connect(t *testing.T, line string) {
	t.Helper()
	r.m.Type(line)
	r.m.Confirm(context.Background())
	require.Equal(t, AwaitingConfirm, r.m.State(), r.m.Warning())
	r.m.Tick(0)
}

func (r *rig) join(t *testing.T, line string) {
	t.Helper()
	r.connect(t, line)
	r.conn.push(types.Validate(types.CanJoin(nil)))
	r.m.Tick(time.Millisecond)
	require.Equal(t, AwaitingOpponent, r.m.State())
}

func TestConfirm_BadAddressStaysConnecting(t *testing.T) {
	r := newRig(t)
	r.m.Type("::1 Ash")
	r.m.Confirm(context.Background())

	assert.Equal(t, Connecting, r.m.State())
	assert.Empty(t, r.m.Input())
	assert.Contains(t, r.m.Warning(), "invalid address")
	assert.Empty(t, r.dialed)
}

func TestConfirm_DialFailureStaysConnecting(t *testing.T) {
	r := newRig(t)
	r.m.dial = func(context.Context, string) (Conn, error) {
		return nil, errors.New("connection refused")
	}
	r.m.Type("localhost:9")
	r.m.Confirm(context.Background())

	assert.Equal(t, Connecting, r.m.State())
	assert.Empty(t, r.m.Input())
	assert.Contains(t, r.m.Warning(), "connection refused")
}

func TestAwaitingConfirm_ResendsOnInterval(t *testing.T) {
	r := newRig(t)
	r.m.Type("localhost")
	r.m.Confirm(context.Background())
	require.Equal(t, []string{"localhost:28528"}, r.dialed)
	assert.Equal(t, ResendInterval, r.m.Accumulator())

	r.m.Tick(0)
	require.Equal(t, 1, r.conn.count(types.ClientRequestJoin), "first tick asks straight away")
	assert.Equal(t, "1.0.0", r.conn.sent[0].Version)
	assert.Zero(t, r.m.Accumulator())

	for range 3 {
		r.m.Tick(3 * time.Second)
	}
	assert.Equal(t, 1, r.conn.count(types.ClientRequestJoin))
	assert.Equal(t, 9*time.Second, r.m.Accumulator())

	r.m.Tick(3 * time.Second)
	assert.Equal(t, 2, r.conn.count(types.ClientRequestJoin), "one resend per crossing")
	assert.Zero(t, r.m.Accumulator(), "overshoot is not carried")

	r.m.Tick(ResendInterval)
	assert.Equal(t, 3, r.conn.count(types.ClientRequestJoin))
}

func TestCanJoin_SendsJoinWithName(t *testing.T) {
	r := newRig(t)
	r.connect(t, "localhost  Ash ")
	r.conn.push(types.Validate(types.CanJoin(nil)))
	r.m.Tick(time.Millisecond)

	require.Equal(t, AwaitingOpponent, r.m.State())
	require.Equal(t, []types.ClientKind{types.ClientRequestJoin, types.ClientJoin}, r.conn.sentKinds())
	join := r.conn.sent[1].Player
	require.NotNil(t, join)
	assert.Equal(t, "Ash", join.Name)
	assert.NoError(t, r.cat.ValidateParty(join.Party))
	assert.Equal(t, *join, r.m.Player())
}

func TestCanJoin_EmptyNameGetsRandomName(t *testing.T) {
	r := newRig(t)
	r.join(t, "localhost")

	assert.Regexp(t, `^[a-zA-Z0-9]{7}$`, r.conn.sent[1].Player.Name)
}

func TestCanJoin_UsesServerParty(t *testing.T) {
	r := newRig(t)
	r.connect(t, "localhost")
	offered := r.cat.GenerateParty(rand.New(rand.NewPCG(42, 42)))
	r.conn.push(types.Validate(types.CanJoin(offered)))
	r.m.Tick(time.Millisecond)

	require.Equal(t, AwaitingOpponent, r.m.State())
	assert.Equal(t, offered, r.conn.sent[1].Player.Party)
}

func TestRejected_CountsDownToConnecting(t *testing.T) {
	for _, kind := range []types.OutcomeKind{
		types.OutcomeWrongVersion,
		types.OutcomeAlreadyConnected,
		types.OutcomeInProgress,
	} {
		t.Run(kind.String(), func(t *testing.T) {
			r := newRig(t)
			r.connect(t, "localhost")
			r.conn.push(types.Validate(types.Outcome(kind)))
			r.m.Tick(time.Millisecond)

			require.Equal(t, RejectedVersion, r.m.State())
			assert.Equal(t, kind, r.m.Rejection())
			assert.True(t, r.conn.closed)

			r.m.Tick(RejectedDisplay - time.Millisecond)
			assert.Equal(t, RejectedVersion, r.m.State())
			r.m.Tick(time.Millisecond)
			assert.Equal(t, Connecting, r.m.State())
		})
	}
}

func TestAwaitingConfirm_IgnoresGameMessages(t *testing.T) {
	r := newRig(t)
	r.connect(t, "localhost")
	r.conn.push(types.GameEvent(types.Event{Kind: types.EventTurnRequest, Turn: 1}))
	r.m.Tick(time.Millisecond)

	assert.Equal(t, AwaitingConfirm, r.m.State())
	assert.Empty(t, r.sim.handled)
	assert.Equal(t, 1, r.conn.count(types.ClientRequestJoin))
}

func TestAwaitingConfirm_LostConnectionCloses(t *testing.T) {
	r := newRig(t)
	r.connect(t, "localhost")
	r.conn.lost = true
	r.m.Tick(time.Millisecond)

	assert.Equal(t, Closed, r.m.State())
	assert.True(t, r.conn.closed)
	r.m.Tick(time.Millisecond)
	assert.Equal(t, Connecting, r.m.State())
}

func TestBattle_FullSession(t *testing.T) {
	r := newRig(t)
	r.join(t, "localhost Ash")

	// events that arrive before Begin are fed to the simulation
	r.conn.push(types.GameEvent(types.Event{Kind: types.EventTurnRequest, Turn: 0}))
	r.m.Tick(time.Millisecond)
	assert.Equal(t, AwaitingOpponent, r.m.State())
	require.Len(t, r.sim.handled, 1)

	r.conn.push(
		types.Begin(),
		types.GameEvent(types.Event{Kind: types.EventBegin, Self: 1, Roster: make([]types.Combatant, 2)}),
		types.GameEvent(types.Event{Kind: types.EventTurnRequest, Turn: 1}),
	)
	r.m.Tick(time.Millisecond)
	require.Equal(t, InBattle, r.m.State())
	assert.Len(t, r.sim.handled, 1, "Begin hands over before the battle's events")

	r.sim.next = []types.Action{types.MoveAction(0, 0)}
	r.m.Tick(16 * time.Millisecond)
	require.Len(t, r.sim.handled, 3)
	assert.Equal(t, types.EventTurnRequest, r.sim.handled[2].Kind)
	assert.Equal(t, 16*time.Millisecond, r.sim.elapsed)
	last := r.conn.sent[len(r.conn.sent)-1]
	require.Equal(t, types.ClientGame, last.Kind)
	assert.Equal(t, types.MoveAction(0, 0), *last.Action)

	// another side leaving does not end our battle
	r.conn.push(types.GameEvent(types.Event{Kind: types.EventPlayerEnd, Actor: 0}))
	r.m.Tick(time.Millisecond)
	assert.Equal(t, InBattle, r.m.State())

	r.conn.push(types.End())
	r.m.Tick(time.Millisecond)
	assert.Equal(t, Closed, r.m.State())
	assert.True(t, r.conn.closed)

	r.m.Tick(time.Millisecond)
	assert.Equal(t, Connecting, r.m.State())
	assert.Empty(t, r.m.Input())
}

func TestBattle_OwnPlayerEndCloses(t *testing.T) {
	r := newRig(t)
	r.join(t, "localhost")
	r.conn.push(
		types.Begin(),
		types.GameEvent(types.Event{Kind: types.EventBegin, Self: 1, Roster: make([]types.Combatant, 3)}),
		types.GameEvent(types.Event{Kind: types.EventPlayerEnd, Actor: 1}),
	)
	r.m.Tick(time.Millisecond)
	r.m.Tick(time.Millisecond)

	assert.Equal(t, Closed, r.m.State())
}

func TestBattle_LostConnectionCloses(t *testing.T) {
	r := newRig(t)
	r.join(t, "localhost")
	r.conn.push(types.Begin())
	r.m.Tick(time.Millisecond)
	require.Equal(t, InBattle, r.m.State())

	r.conn.lost = true
	r.m.Tick(time.Millisecond)
	assert.Equal(t, Closed, r.m.State())
	assert.NotEmpty(t, r.m.Warning())
}

func TestLeave_TellsServer(t *testing.T) {
	r := newRig(t)
	r.join(t, "localhost")
	r.m.Leave()

	assert.Equal(t, Closed, r.m.State())
	assert.Equal(t, types.ClientLeave, r.conn.sent[len(r.conn.sent)-1].Kind)
	assert.True(t, r.conn.closed)
}

func TestLeave_BeforeJoinDoesNotSendLeave(t *testing.T) {
	r := newRig(t)
	r.connect(t, "localhost")
	r.m.Leave()

	assert.Equal(t, Closed, r.m.State())
	assert.Zero(t, r.conn.count(types.ClientLeave))
	assert.True(t, r.conn.closed)
}

func TestType_OnlyWhileConnecting(t *testing.T) {
	r := newRig(t)
	r.m.Type("local")
	r.m.Type("host")
	assert.Equal(t, "localhost", r.m.Input())

	r.m.Confirm(context.Background())
	r.m.Type("ignored")
	assert.Empty(t, r.m.Input())
}
