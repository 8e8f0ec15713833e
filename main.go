package main

import (
	"context"
	"errors"
	"log/slog"
	oshttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"walkie/internal/auth"
	"walkie/internal/config"
	"walkie/internal/filestore"
	"walkie/internal/http"
	"walkie/internal/presence"
	"walkie/internal/push"
	"walkie/internal/relay"
	"walkie/internal/rooms"
	"walkie/internal/storage"
	"walkie/internal/ws"

	"golang.org/x/sync/errgroup"
)

// roomSweepInterval is how often idle ad-hoc rooms are swept.
const roomSweepInterval = 10 * time.Minute

func run(ctx context.Context) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	bbStorage, err := storage.NewBboltStorage(cfg.DBFile)
	if err != nil {
		return err
	}
	defer func() { _ = bbStorage.Close() }()

	authService, err := auth.NewAuthService(ctx, auth.Config{TokenExpiry: cfg.TokenExpiry}, bbStorage)
	if err != nil {
		return err
	}

	files, err := filestore.NewLocalFileStore(cfg.UploadsPath)
	if err != nil {
		return err
	}

	notifier := push.NewNotifier(push.Config{
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		Subscriber:      cfg.PushContact,
	}, bbStorage, logger)

	hub := ws.NewHub(logger)
	roomManager := rooms.NewManager()
	engine := relay.NewEngine(relay.Config{
		Store:    bbStorage,
		Presence: presence.NewRegistry(),
		Rooms:    roomManager,
		Notifier: notifier,
		Logger:   logger,
	}, hub)

	apiServer := http.NewAPIServer(authService, engine, hub, files, notifier, cfg.Addr, logger)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := apiServer.Start()
		if err != nil && err != oshttp.ErrServerClosed {
			return err
		}
		return nil
	})

	// Sweep empty ad-hoc rooms that saw no traffic for a while.
	g.Go(func() error {
		ticker := time.NewTicker(roomSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if evicted := roomManager.EvictIdle(cfg.RoomIdleTTL); len(evicted) > 0 {
					logger.Info("evicted idle rooms", "rooms", evicted)
				}
			case <-gCtx.Done():
				return nil
			}
		}
	})

	// Wait for context cancellation (signal)
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
		return nil
	})

	return g.Wait()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}
