package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	_ "go.uber.org/automaxprocs"

	"github.com/kalgynirae/sudoku/internal/config"
	"github.com/kalgynirae/sudoku/internal/logging"
	"github.com/kalgynirae/sudoku/internal/metrics"
	"github.com/kalgynirae/sudoku/internal/state"
	"github.com/kalgynirae/sudoku/internal/store"
	"github.com/kalgynirae/sudoku/internal/transport"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() // nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	defer stop()

	m := metrics.NewRegistry()

	st, err := store.Open(ctx, cfg.Database.URI, logger, m)
	if err != nil {
		return err
	}
	defer st.Close()

	global := state.New(st, logger, m)

	srv := transport.NewServer(cfg, logger, global, m)
	if err := srv.Start(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(cfg.Database.WritebackInterval)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			writeback(ctx, global, st, logger)
		}
	}

	logger.Info("shutdown signal received")
	srv.Stop()

	// one last pass so edits made since the previous tick survive
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	writeback(shutdownCtx, global, st, logger)
	global.Close()
	return nil
}

func writeback(ctx context.Context, global *state.Global, st *store.Store, logger *zap.Logger) {
	snapshots := global.SnapshotDirty()
	if len(snapshots) == 0 {
		return
	}
	records := make([]store.RoomRecord, len(snapshots))
	for i, snapshot := range snapshots {
		records[i] = store.RoomRecord{ID: snapshot.ID, Board: snapshot.Board}
	}
	if err := st.WriteRooms(ctx, records); err != nil {
		logger.Error("writeback failed", zap.Int("rooms", len(records)), zap.Error(err))
		return
	}
	logger.Info("wrote dirty rooms to database", zap.Int("rooms", len(records)))
}
