package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fightarena/server/internal/config"
	servernet "fightarena/server/internal/net"
	"fightarena/server/internal/net/proto"
	"fightarena/server/internal/net/ws"
	"fightarena/server/internal/sim"
	"fightarena/server/internal/telemetry"
	"fightarena/server/internal/world"
	"fightarena/server/logging"
	loggingSinks "fightarena/server/logging/sinks"
)

const shutdownTimeout = 5 * time.Second

type Options struct {
	// ConfigPath names a YAML or TOML file. Empty runs on defaults plus
	// the environment.
	ConfigPath string
	// EnvFiles are loaded before the config; missing files are skipped.
	EnvFiles []string
	// Config bypasses file and environment loading when set.
	Config *config.Config
	// Logger replaces the zap logger built from the logging section.
	Logger *zap.Logger
	// Listener replaces listening on Server.Addr.
	Listener net.Listener
}

// Run serves the arena until ctx is cancelled or a component fails.
func Run(ctx context.Context, opts Options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	zapLogger := opts.Logger
	if zapLogger == nil {
		zapLogger, err = newZapLogger(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to construct logger: %w", err)
		}
		defer func() { _ = zapLogger.Sync() }()
	}
	telemetryLogger := telemetry.WrapZap(zapLogger)

	routerCfg := cfg.Logging.Router()
	sinks, err := buildSinks(routerCfg, zapLogger)
	if err != nil {
		return err
	}
	router, err := logging.NewRouter(routerCfg, logging.SystemClock{}, zapLogger, sinks)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	counters := telemetry.NewCounters()
	w, err := world.New(cfg.World, world.Options{Publisher: router, Metrics: counters})
	if err != nil {
		return fmt.Errorf("failed to construct world: %w", err)
	}
	defer func() { _ = w.Close() }()

	codec, err := proto.CodecFor(cfg.Server.Codec)
	if err != nil {
		return err
	}
	hub := ws.NewHub(w, ws.HubConfig{
		Codec:        codec,
		Logger:       telemetryLogger,
		Publisher:    router,
		Metrics:      counters,
		TickRate:     cfg.Loop.TickRate,
		WriteTimeout: cfg.Server.WriteTimeout,
	})
	defer hub.Close()

	loop := sim.NewLoop(w, cfg.Loop, sim.Deps{Logger: telemetryLogger, Metrics: counters}, sim.LoopHooks{
		AfterStep: hub.AfterStep,
		OnCommandDrop: func(reason string, cmd sim.Command) {
			zapLogger.Debug("command dropped",
				zap.String("reason", reason),
				zap.String("actor", cmd.ActorID),
				zap.String("type", string(cmd.Type)),
			)
		},
		OnQueueWarning: func(length int) {
			zapLogger.Warn("command queue filling", zap.Int("length", length))
		},
	})
	hub.AttachLoop(loop)

	handler := servernet.NewHTTPHandler(w, hub, servernet.HTTPHandlerConfig{
		Logger:        telemetryLogger,
		Observability: cfg.Observability,
		Counters:      counters,
		RouterStats:   router.Stats,
		TickRate:      cfg.Loop.TickRate,
	})

	ln := opts.Listener
	if ln == nil {
		ln, err = net.Listen("tcp", cfg.Server.Addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
		}
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})
	g.Go(func() error {
		zapLogger.Info("server listening",
			zap.String("addr", ln.Addr().String()),
			zap.String("codec", codec.Name()),
			zap.Int("tick_rate", cfg.Loop.TickRate),
		)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		hub.Close()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	zapLogger.Info("server stopped",
		zap.Uint64("tick", w.Tick()),
		zap.Int("players", w.PlayerCount()),
	)
	return err
}

func loadConfig(opts Options) (config.Config, error) {
	if opts.Config != nil {
		cfg := *opts.Config
		if err := cfg.Validate(); err != nil {
			return config.Config{}, err
		}
		return cfg, nil
	}
	if err := config.LoadDotEnv(opts.EnvFiles...); err != nil {
		return config.Config{}, err
	}
	return config.Load(opts.ConfigPath)
}

func newZapLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	if cfg.Development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// buildSinks opens every sink the router config enables, in a fixed order.
func buildSinks(cfg logging.Config, logger *zap.Logger) ([]logging.NamedSink, error) {
	var out []logging.NamedSink
	if cfg.HasSink(logging.SinkConsole) {
		out = append(out, logging.NamedSink{Name: logging.SinkConsole, Sink: loggingSinks.NewZap(logger.Named("events"))})
	}
	if cfg.HasSink(logging.SinkJSONL) {
		out = append(out, logging.NamedSink{Name: logging.SinkJSONL, Sink: loggingSinks.NewZstdJSONL(cfg.JSONL)})
	}
	if cfg.HasSink(logging.SinkSQLite) {
		db, err := loggingSinks.OpenSQLite(cfg.SQLite)
		if err != nil {
			return nil, fmt.Errorf("open sqlite sink: %w", err)
		}
		out = append(out, logging.NamedSink{Name: logging.SinkSQLite, Sink: db})
	}
	if cfg.HasSink(logging.SinkMemory) {
		out = append(out, logging.NamedSink{Name: logging.SinkMemory, Sink: loggingSinks.NewMemorySink()})
	}
	return out, nil
}
