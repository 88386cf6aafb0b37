// Package server runs the battle server: a lobby phase that collects
// players, then a battle whose tick loop runs on the calling goroutine while
// a second goroutine routes network traffic into per-peer mailboxes.
package server

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/monster-battle-net/internal/battle"
	"github.com/DoyleJ11/monster-battle-net/internal/catalog"
	"github.com/DoyleJ11/monster-battle-net/internal/config"
	"github.com/DoyleJ11/monster-battle-net/internal/endpoint"
	"github.com/DoyleJ11/monster-battle-net/internal/hub"
	"github.com/DoyleJ11/monster-battle-net/internal/lobby"
	"github.com/DoyleJ11/monster-battle-net/internal/mailbox"
	"github.com/DoyleJ11/monster-battle-net/internal/store"
	"github.com/DoyleJ11/monster-battle-net/internal/types"
)

const (
	DefaultPollInterval = 5 * time.Millisecond
	DefaultTickInterval = 5 * time.Millisecond

	recordTimeout = 5 * time.Second
)

// Recorder persists finished battles.
type Recorder interface {
	Record(ctx context.Context, rec *store.BattleRecord) error
}

// StatusSink receives the server's status as it changes.
type StatusSink interface {
	Publish(hub.Status)
}

type Options struct {
	Endpoint    endpoint.Endpoint
	Catalog     *catalog.Catalog
	BattleSize  int
	PartyOrigin config.PartyOrigin
	Version     string

	Recorder Recorder
	Status   StatusSink
	Rand     *rand.Rand
	Log      *zap.Logger

	PollInterval time.Duration
	TickInterval time.Duration
}

type Server struct {
	ep      endpoint.Endpoint
	catalog *catalog.Catalog
	size    int
	origin  config.PartyOrigin
	version string

	recorder Recorder
	status   StatusSink
	rng      *rand.Rand
	log      *zap.Logger

	poll time.Duration
	tick time.Duration

	round int
}

func New(opts Options) (*Server, error) {
	if opts.Endpoint == nil || opts.Catalog == nil {
		return nil, errors.New("server needs an endpoint and a catalog")
	}
	if opts.BattleSize < config.MinBattleSize {
		return nil, fmt.Errorf("battle size %d: %w", opts.BattleSize, config.ErrInvalid)
	}
	if opts.Version == "" {
		opts.Version = types.Version
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	return &Server{
		ep:       opts.Endpoint,
		catalog:  opts.Catalog,
		size:     opts.BattleSize,
		origin:   opts.PartyOrigin,
		version:  opts.Version,
		recorder: opts.Recorder,
		status:   opts.Status,
		rng:      opts.Rand,
		log:      opts.Log,
		poll:     opts.PollInterval,
		tick:     opts.TickInterval,
	}, nil
}

// Run plays rounds until ctx is cancelled. Cancellation ends the current
// battle gracefully, so it returns nil in that case.
func (s *Server) Run(ctx context.Context) error {
	defer s.publish(hub.Status{Phase: hub.PhaseStopping, Round: s.round, BattleSize: s.size})
	for {
		_, err := s.RunRound(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			s.log.Error("round failed", zap.Int("round", s.round), zap.Error(err))
		}
	}
}

// RunRound fills a lobby and plays one battle in it. The result is nil when
// the round was interrupted before the battle began.
func (s *Server) RunRound(ctx context.Context) (*battle.Result, error) {
	s.round++
	log := s.log.With(zap.Int("round", s.round))

	lb := lobby.New(lobby.Options{
		Size:        s.size,
		Version:     s.version,
		PartyOrigin: s.origin,
		Catalog:     s.catalog,
		Rand:        s.rng,
		Log:         log.Named("lobby"),
	})
	if err := s.fillLobby(ctx, lb, log); err != nil {
		return nil, err
	}

	for _, slot := range lb.Pending() {
		send(s.ep, slot.Peer, types.Validate(types.Outcome(types.OutcomeInProgress)), log)
	}

	r, err := s.newRound(lb.Filled(), log)
	if err != nil {
		for _, slot := range lb.Filled() {
			send(s.ep, slot.Peer, types.End(), log)
			s.ep.Remove(slot.Peer)
		}
		return nil, err
	}
	res := r.play(ctx)
	s.record(ctx, r, res)
	return &res, nil
}

// fillLobby polls until exactly BattleSize slots are filled.
func (s *Server) fillLobby(ctx context.Context, lb *lobby.Lobby, log *zap.Logger) error {
	log.Info("lobby open", zap.Int("battle_size", s.size))
	s.publishLobby(lb)
	for !lb.Full() {
		if err := ctx.Err(); err != nil {
			// everyone waiting is told the server is going away
			for _, slot := range append(lb.Filled(), lb.Pending()...) {
				send(s.ep, slot.Peer, types.End(), log)
			}
			return err
		}
		events := s.ep.Poll(ctx, s.poll)
		changed := false
		for _, ev := range events {
			if s.handleLobbyEvent(lb, ev, log) {
				changed = true
			}
		}
		if changed {
			s.publishLobby(lb)
		}
	}
	return nil
}

func (s *Server) handleLobbyEvent(lb *lobby.Lobby, ev endpoint.Event, log *zap.Logger) bool {
	switch ev.Kind {
	case endpoint.Connected:
		log.Debug("peer connected", zap.Uint64("peer", uint64(ev.Peer)))
		return false

	case endpoint.Disconnected:
		if lb.Remove(ev.Peer) {
			log.Info("peer left the lobby", zap.Uint64("peer", uint64(ev.Peer)))
			return true
		}
		return false

	case endpoint.Message:
		msg, err := types.DecodeClient(ev.Data)
		if err != nil {
			log.Warn("dropping undecodable message", zap.Uint64("peer", uint64(ev.Peer)), zap.Error(err))
			return false
		}
		switch msg.Kind {
		case types.ClientRequestJoin:
			send(s.ep, ev.Peer, types.Validate(lb.RequestJoin(ev.Peer, msg.Version)), log)
			return true
		case types.ClientJoin:
			if reply := lb.Join(ev.Peer, *msg.Player); reply != nil {
				send(s.ep, ev.Peer, types.Validate(*reply), log)
			}
			return true
		case types.ClientLeave:
			return lb.Remove(ev.Peer)
		case types.ClientGame:
			log.Warn("game message before battle start ignored", zap.Uint64("peer", uint64(ev.Peer)))
		}
	}
	return false
}

// round is one battle with its participants' connections and mailboxes.
type round struct {
	s      *Server
	log    *zap.Logger
	id     string
	peers  []endpoint.Peer
	slots  map[endpoint.Peer]int
	boxes  *mailbox.Set[endpoint.Peer, types.Action]
	battle *battle.Battle
	// left holds participants whose Leave was queued as a forfeit. Only the
	// route goroutine touches it.
	left map[endpoint.Peer]bool

	running atomic.Bool
}

func (s *Server) newRound(filled []lobby.Slot, log *zap.Logger) (*round, error) {
	r := &round{
		s:     s,
		id:    uuid.NewString(),
		slots: make(map[endpoint.Peer]int, len(filled)),
		boxes: mailbox.NewSet[endpoint.Peer, types.Action](mailbox.DefaultLimit),
		left:  make(map[endpoint.Peer]bool),
	}
	r.log = log.With(zap.String("battle", r.id))

	participants := make([]battle.Participant, 0, len(filled))
	for i, slot := range filled {
		party, err := s.catalog.MaterializeParty(slot.Player.Party)
		if err != nil {
			return nil, fmt.Errorf("peer %d: %w", slot.Peer, err)
		}
		queue, _ := r.boxes.Open(slot.Peer)
		participants = append(participants, battle.Participant{
			ID:    types.NewPeerID(),
			Name:  slot.Player.Name,
			Party: party,
			Endpoint: &peerEndpoint{
				peer:   slot.Peer,
				sender: s.ep,
				queue:  queue,
				log:    r.log,
			},
		})
		r.peers = append(r.peers, slot.Peer)
		r.slots[slot.Peer] = i
	}

	b, err := battle.New(s.size, participants, s.rng, r.log.Named("battle"))
	if err != nil {
		return nil, err
	}
	r.battle = b
	return r, nil
}

// play runs the battle to its end and releases every participant.
func (r *round) play(ctx context.Context) battle.Result {
	for _, peer := range r.peers {
		send(r.s.ep, peer, types.Begin(), r.log)
	}
	r.battle.Begin()
	r.running.Store(true)
	r.s.publishBattle(r)

	netCtx, stopNet := context.WithCancel(ctx)
	g, netCtx := errgroup.WithContext(netCtx)
	g.Go(func() error {
		r.route(netCtx)
		return nil
	})

	turn := r.battle.Turn()
	for !r.battle.Finished() {
		if !r.running.Load() || ctx.Err() != nil {
			if ctx.Err() == nil {
				// actions queued before the disconnect still count
				r.battle.Update()
			}
			if !r.battle.Finished() {
				r.battle.End()
			}
			break
		}
		r.battle.Update()
		if t := r.battle.Turn(); t != turn {
			turn = t
			r.s.publishBattle(r)
		}
		select {
		case <-time.After(r.s.tick):
		case <-ctx.Done():
		}
	}

	stopNet()
	_ = g.Wait()

	for _, peer := range r.peers {
		send(r.s.ep, peer, types.End(), r.log)
		r.s.ep.Remove(peer)
		r.boxes.Close(peer)
	}
	res := r.battle.Result()
	r.log.Info("battle over", zap.String("outcome", string(res.Outcome)), zap.Int("turns", res.Turns))
	return res
}

// route moves Game actions from the network into the sender's mailbox
// until ctx is done.
func (r *round) route(ctx context.Context) {
	for ctx.Err() == nil {
		for _, ev := range r.s.ep.Poll(ctx, r.s.poll) {
			r.routeEvent(ev)
		}
	}
}

func (r *round) routeEvent(ev endpoint.Event) {
	_, participant := r.slots[ev.Peer]
	switch ev.Kind {
	case endpoint.Disconnected:
		if !participant {
			return
		}
		if r.left[ev.Peer] {
			r.log.Debug("participant closed after leaving", zap.Uint64("peer", uint64(ev.Peer)))
			return
		}
		r.log.Info("participant disconnected", zap.Uint64("peer", uint64(ev.Peer)))
		r.running.Store(false)

	case endpoint.Message:
		msg, err := types.DecodeClient(ev.Data)
		if err != nil {
			r.log.Warn("dropping undecodable message", zap.Uint64("peer", uint64(ev.Peer)), zap.Error(err))
			return
		}
		switch msg.Kind {
		case types.ClientGame:
			q := r.boxes.Get(ev.Peer)
			switch {
			case q == nil:
				r.log.Warn("action from unregistered peer dropped", zap.Uint64("peer", uint64(ev.Peer)))
			case !q.Push(*msg.Action):
				r.log.Warn("mailbox full, action dropped", zap.Uint64("peer", uint64(ev.Peer)), zap.Stringer("action", msg.Action.Kind))
			}
		case types.ClientLeave:
			if !participant || r.left[ev.Peer] {
				return
			}
			if !r.boxes.Push(ev.Peer, types.ForfeitAction()) {
				// its disconnect will abort the battle instead
				r.log.Error("forfeit not queued, mailbox full", zap.Uint64("peer", uint64(ev.Peer)))
				return
			}
			r.log.Info("participant left, forfeiting", zap.Uint64("peer", uint64(ev.Peer)))
			r.left[ev.Peer] = true
		case types.ClientRequestJoin, types.ClientJoin:
			send(r.s.ep, ev.Peer, types.Validate(types.Outcome(types.OutcomeInProgress)), r.log)
		}
	}
}

func (s *Server) record(ctx context.Context, r *round, res battle.Result) {
	s.publish(hub.Status{Phase: hub.PhaseIdle, Round: s.round, BattleSize: s.size, BattleID: r.id})
	if s.recorder == nil {
		return
	}
	rec := &store.BattleRecord{
		ID:        r.id,
		Round:     s.round,
		Outcome:   string(res.Outcome),
		Turns:     res.Turns,
		StartedAt: res.Started,
		EndedAt:   res.Finished,
	}
	if res.Winner != nil {
		rec.WinnerID = res.Winner.String()
	}
	for i, p := range r.battle.Participants() {
		species := make([]uint16, len(p.Party))
		for j, cr := range p.Party {
			species[j] = cr.Species.ID
		}
		rec.Participants = append(rec.Participants, store.ParticipantRecord{
			Seat:    i,
			PeerID:  p.ID.String(),
			Name:    p.Name,
			Species: species,
		})
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := s.recorder.Record(rctx, rec); err != nil {
		s.log.Warn("battle not recorded", zap.String("battle", r.id), zap.Error(err))
	}
}

func (s *Server) publish(st hub.Status) {
	if s.status != nil {
		s.status.Publish(st)
	}
}

func (s *Server) publishLobby(lb *lobby.Lobby) {
	filled := lb.Filled()
	names := make([]string, len(filled))
	for i, slot := range filled {
		names[i] = slot.Player.Name
	}
	s.publish(hub.Status{
		Phase:      hub.PhaseLobby,
		Round:      s.round,
		BattleSize: s.size,
		Filled:     names,
		Pending:    len(lb.Pending()),
	})
}

func (s *Server) publishBattle(r *round) {
	ps := r.battle.Participants()
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.Name
	}
	s.publish(hub.Status{
		Phase:        hub.PhaseBattle,
		Round:        s.round,
		BattleSize:   s.size,
		Filled:       names,
		BattleID:     r.id,
		Participants: names,
		Turn:         r.battle.Turn(),
	})
}
