// Command client is a headless battle client. It reads "address[:port]
// [name]" from BATTLE_SERVER or the first line of stdin, joins the server
// and lets the autopilot play one battle.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/DoyleJ11/monster-battle-net/internal/catalog"
	"github.com/DoyleJ11/monster-battle-net/internal/client"
	"github.com/DoyleJ11/monster-battle-net/internal/logging"
	"github.com/DoyleJ11/monster-battle-net/internal/types"
)

const (
	frame      = 16 * time.Millisecond
	thinkDelay = 250 * time.Millisecond
	dialWait   = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional for the client
	_ = godotenv.Load()

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	log, err := logging.New(level, false)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	line, err := serverLine()
	if err != nil {
		return err
	}
	cat, err := catalog.Load(os.Getenv("BATTLE_DEX"))
	if err != nil {
		return fmt.Errorf("load dex: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	m := client.New(client.Options{
		Catalog: cat,
		Dial:    client.WebSocketDialer(log.Named("endpoint")),
		NewSimulation: func(_ types.Player, party []*catalog.Creature) client.Simulation {
			return &narrated{Simulation: client.NewAutopilot(party, rng, thinkDelay), log: log.Named("battle")}
		},
		Rand: rng,
		Log:  log.Named("client"),
	})

	m.Type(line)
	dctx, cancel := context.WithTimeout(ctx, dialWait)
	m.Confirm(dctx)
	cancel()
	if m.State() != client.AwaitingConfirm {
		return errors.New(m.Warning())
	}

	ticker := time.NewTicker(frame)
	defer ticker.Stop()
	last := time.Now()
	prev := m.State()
	var rejected types.OutcomeKind
	for {
		select {
		case <-ctx.Done():
			m.Leave()
			return nil
		case now := <-ticker.C:
			m.Tick(now.Sub(last))
			last = now
		}

		state := m.State()
		if state == prev {
			continue
		}
		log.Info("state", zap.Stringer("from", prev), zap.Stringer("to", state))
		if state == client.RejectedVersion {
			rejected = m.Rejection()
		}
		if state == client.Connecting {
			if rejected != 0 {
				return fmt.Errorf("server refused to let us join: %v", rejected)
			}
			if w := m.Warning(); w != "" {
				log.Warn("session ended", zap.String("reason", w))
			}
			return nil
		}
		prev = state
	}
}

func serverLine() (string, error) {
	if line := os.Getenv("BATTLE_SERVER"); line != "" {
		return line, nil
	}
	fmt.Fprint(os.Stderr, "server address [name]: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read address: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// narrated logs the battle as it is fed to the simulation.
type narrated struct {
	client.Simulation
	log *zap.Logger
}

func (n *narrated) Handle(ev types.Event) {
	fields := []zap.Field{zap.Int("turn", ev.Turn)}
	switch ev.Kind {
	case types.EventBegin:
		fields = append(fields, zap.Int("self", ev.Self), zap.Int("sides", len(ev.Roster)))
	case types.EventMove, types.EventMiss:
		fields = append(fields, zap.Int("actor", ev.Actor), zap.Int("target", ev.Target), zap.Int("slot", ev.Index))
	case types.EventDamage:
		fields = append(fields, zap.Int("target", ev.Target), zap.Int("amount", ev.Amount), zap.Int("hp", ev.Remaining))
	case types.EventRejected:
		fields = append(fields, zap.String("reason", ev.Reason))
	case types.EventGameEnd:
		if ev.Winner != nil {
			fields = append(fields, zap.Stringer("winner", *ev.Winner))
		}
	default:
		fields = append(fields, zap.Int("actor", ev.Actor), zap.Int("index", ev.Index))
	}
	n.log.Info(ev.Kind.String(), fields...)
	n.Simulation.Handle(ev)
}
