package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aaronzipp/who-is-the-impostor/internal/game"
	"github.com/aaronzipp/who-is-the-impostor/internal/handlers"
	"github.com/aaronzipp/who-is-the-impostor/internal/live"
	"github.com/aaronzipp/who-is-the-impostor/internal/sse"
	"github.com/aaronzipp/who-is-the-impostor/internal/store"
)

const timeout = 10 * time.Second

// backend is the store stack every command runs against
type backend struct {
	store store.Store
	game  *game.Game
	close func()
}

func openBackend(ctx context.Context, cfg *Config, log *logrus.Entry) (*backend, error) {
	settings, err := cfg.settings()
	if err != nil {
		return nil, fmt.Errorf("game settings: %w", err)
	}

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var notifier store.Notifier
	switch cfg.notifier {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.redisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		closers = append(closers, func() { _ = client.Close() })
		notifier = store.NewRedisNotifier(client, log)
	default:
		notifier = store.NewMemoryNotifier()
	}
	closers = append(closers, func() { _ = notifier.Close() })

	var s store.Store
	switch cfg.store {
	case "postgres":
		if cfg.migrate {
			if err := store.Migrate(ctx, cfg.dsn); err != nil {
				closeAll()
				return nil, err
			}
		}
		pg, err := store.NewPostgresStore(ctx, cfg.dsn, notifier, log)
		if err != nil {
			closeAll()
			return nil, err
		}
		closers = append(closers, pg.Close)
		s = pg
	default:
		s = store.NewMemoryStore(notifier)
	}

	g, err := game.New(s, settings, game.WithLogger(log))
	if err != nil {
		closeAll()
		return nil, err
	}
	log.WithFields(logrus.Fields{"store": cfg.store, "notifier": cfg.notifier}).Debug("Backend ready")
	return &backend{store: s, game: g, close: closeAll}, nil
}

func newServeCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP, SSE and websocket API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Serve(cmd.Context(), cfg)
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: IMPOSTOR_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: IMPOSTOR_PORT)")
	fs.DurationVar(&cfg.shutdownTimeout, "shutdown-timeout", 5*time.Second, "time to drain requests on exit (env: IMPOSTOR_SHUTDOWN_TIMEOUT)")
	fs.BoolVar(&cfg.migrate, "migrate", false, "apply database migrations before serving (env: IMPOSTOR_MIGRATE)")
	return cmd
}

// Serve runs the API until ctx is cancelled
func Serve(ctx context.Context, cfg *Config) error {
	log := cfg.logger()
	log.Infof("START: impostor v%s", releaseVersion)

	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.close()

	projector := live.NewProjector(b.store, log)
	hub := sse.NewHub(projector, log)
	h := handlers.New(b.game, projector, hub, log)

	// no read or write timeout: event streams and websockets stay open
	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           h.Routes(),
		IdleTimeout:       10 * time.Minute,
		ReadHeaderTimeout: timeout,
	}

	errs := make(chan error, 1)
	go func() {
		log.Infof("SERVE: Listening on http://%s/", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		hub.Close()
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newMigrateCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations to --dsn",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.dsn == "" {
				return errors.New("--dsn is required")
			}
			log := cfg.logger()
			if err := store.Migrate(cmd.Context(), cfg.dsn); err != nil {
				return err
			}
			log.Info("Migrations applied")
			return nil
		},
	}
}
