package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/monster-battle-net/internal/catalog"
	"github.com/DoyleJ11/monster-battle-net/internal/config"
	"github.com/DoyleJ11/monster-battle-net/internal/endpoint"
	"github.com/DoyleJ11/monster-battle-net/internal/httpapi"
	"github.com/DoyleJ11/monster-battle-net/internal/hub"
	"github.com/DoyleJ11/monster-battle-net/internal/logging"
	"github.com/DoyleJ11/monster-battle-net/internal/server"
	"github.com/DoyleJ11/monster-battle-net/internal/store"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	boot, err := logging.New("info", false)
	if err != nil {
		return err
	}
	cfg, err := config.Load(config.Dir(), boot)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, false)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	cat, err := catalog.Load(cfg.Dex)
	if err != nil {
		return fmt.Errorf("load dex: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := hub.NewHub(ctx)

	var (
		recorder server.Recorder
		battles  httpapi.BattleLog
	)
	if cfg.DatabaseURL != "" {
		db, err := store.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(db); err != nil {
				log.Warn("closing store", zap.Error(err))
			}
		}()
		repo := store.NewRepository(db)
		recorder, battles = repo, repo
	}

	ws := endpoint.NewWebSocket(log.Named("endpoint"))
	srv, err := server.New(server.Options{
		Endpoint:    ws,
		Catalog:     cat,
		BattleSize:  int(cfg.BattleSize),
		PartyOrigin: cfg.PartyOrigin,
		Recorder:    recorder,
		Status:      h,
		Log:         log.Named("server"),
	})
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr: cfg.Addr(),
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Game:    ws,
			Hub:     h,
			Battles: battles,
			Log:     log.Named("http"),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("listening", zap.String("addr", httpSrv.Addr), zap.Uint8("battle_size", cfg.BattleSize), zap.String("party_origin", string(cfg.PartyOrigin)))
	return serve(ctx, httpSrv, srv, ws, log)
}

type runner interface {
	Run(ctx context.Context) error
}

// serve runs the HTTP listener and the battle server until ctx is done or
// either fails. The game endpoint is closed only after the battle server
// has returned, so its End broadcast still reaches every participant.
func serve(ctx context.Context, httpSrv *http.Server, srv runner, ep io.Closer, log *zap.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := srv.Run(gctx)
		if cerr := ep.Close(); cerr != nil {
			log.Debug("closing endpoint", zap.Error(cerr))
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(sctx)
	})
	return g.Wait()
}
