// Command agentdir runs the agent registry and discovery service.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/vinayprograms/agentdir/auth"
	"github.com/vinayprograms/agentdir/bus"
	"github.com/vinayprograms/agentdir/config"
	"github.com/vinayprograms/agentdir/directory"
	"github.com/vinayprograms/agentdir/embedding"
	"github.com/vinayprograms/agentdir/lifecycle"
	"github.com/vinayprograms/agentdir/logging"
	"github.com/vinayprograms/agentdir/ranking"
	"github.com/vinayprograms/agentdir/ratelimit"
	"github.com/vinayprograms/agentdir/registry"
	"github.com/vinayprograms/agentdir/shutdown"
	"github.com/vinayprograms/agentdir/state"
	"github.com/vinayprograms/agentdir/telemetry"
	"github.com/vinayprograms/agentdir/transport"
)

func main() {
	configPath := flag.String("config", "", "path to agentdir.toml")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "agentdir:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := logging.New()
	log.SetLevel(logging.Level(cfg.Server.LogLevel))
	log = log.WithComponent("main")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coord := shutdown.NewCoordinator(30*time.Second, log)

	// Telemetry is optional; the facade falls back to a no-op tracer.
	if cfg.Telemetry.Enabled {
		provider, err := telemetry.InitProvider(ctx, telemetry.ProviderConfig{
			ServiceName: "agentdir",
			Endpoint:    cfg.Telemetry.Endpoint,
			Protocol:    cfg.Telemetry.Protocol,
			Insecure:    cfg.Telemetry.Insecure,
		})
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		coord.Register("telemetry", shutdown.PhaseState, provider.Shutdown)
	}

	// A NATS URL switches on cross-node mirroring and durable
	// checkpoints; without one everything runs in memory.
	var nc *nats.Conn
	if cfg.NATS.URL != "" {
		nc, err = nats.Connect(cfg.NATS.URL, nats.Name("agentdir"))
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		coord.Register("nats", shutdown.PhaseState, func(ctx context.Context) error {
			nc.Close()
			return nil
		})
	}

	store := registry.NewStore()

	kv, err := newStateStore(nc, cfg)
	if err != nil {
		return err
	}
	checkpointer := registry.NewCheckpointer(store, kv, log)
	restored, err := checkpointer.Restore(ctx,
		cfg.Lifecycle.StaleAfter.Duration, cfg.Lifecycle.ExpireAfter.Duration)
	if err != nil {
		return fmt.Errorf("restoring checkpoint: %w", err)
	}
	if restored > 0 {
		log.Info("checkpoint restored", map[string]interface{}{"records": restored})
	}
	go checkpointer.Run(ctx, cfg.Lifecycle.SweepInterval.Duration*6)
	coord.Register("checkpoint", shutdown.PhaseCheckpoint, checkpointer.Save)
	coord.Register("state", shutdown.PhaseState, func(ctx context.Context) error {
		return kv.Close()
	})

	node := nodeID(cfg)
	eventBus, err := newEventBus(nc, cfg, node)
	if err != nil {
		return err
	}
	coord.Register("bus", shutdown.PhaseBus, func(ctx context.Context) error {
		return eventBus.Close()
	})

	oracle := auth.NewStaticOracle(cfg.Auth.AdminPIN)
	for _, token := range cfg.Auth.AdminTokens {
		oracle.GrantAdmin(token)
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}

	limiter := ratelimit.NewMemoryLimiter(ratelimit.Config{
		Capacity: cfg.Limits.RegistrationsPerMinute,
		Window:   time.Minute,
	})
	coord.Register("limiter", shutdown.PhaseBus, func(ctx context.Context) error {
		return limiter.Close()
	})

	svc := directory.New(directory.Config{
		EmbedTimeout: cfg.Embedding.Timeout.Duration,
		Validation: registry.ValidationConfig{
			AllowedTypes:    cfg.Limits.AllowedAgentTypes,
			MinPublicKeyLen: cfg.Limits.MinPublicKeyLen,
		},
	}, directory.Deps{
		Store:    store,
		Ranker:   ranking.NewEngine(embedder, cfg.Ranking.Weights),
		Bus:      eventBus,
		Oracle:   oracle,
		Embedder: embedder,
		Limiter:  limiter,
		Log:      log,
	})

	supervisor := lifecycle.NewSupervisor(store, eventBus, lifecycle.Config{
		StaleAfter:  cfg.Lifecycle.StaleAfter.Duration,
		ExpireAfter: cfg.Lifecycle.ExpireAfter.Duration,
		RemoveAfter: cfg.Lifecycle.RemoveAfter.Duration,
		Interval:    cfg.Lifecycle.SweepInterval.Duration,
	}, log)
	supCtx, supCancel := context.WithCancel(ctx)
	go supervisor.Run(supCtx)
	coord.Register("supervisor", shutdown.PhaseSupervisor, func(ctx context.Context) error {
		supCancel()
		return nil
	})

	gateway := transport.NewGateway(svc, transport.DefaultWebSocketConfig(), log)
	mux := http.NewServeMux()
	mux.Handle("/v1/events", gateway)

	server := &http.Server{Addr: cfg.Server.Addr, Handler: mux}
	coord.Register("http", shutdown.PhaseTransport, server.Shutdown)

	coord.HandleSignals()

	log.Info("agentdir listening", map[string]interface{}{
		"addr": cfg.Server.Addr,
		"node": node,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		coord.Shutdown(context.Background())
		return err
	case <-coord.Done():
		return coord.Err()
	}
}

func newStateStore(nc *nats.Conn, cfg config.Config) (state.Store, error) {
	if nc == nil {
		return state.NewMemoryStore(), nil
	}
	kv, err := state.NewNATSStore(state.NATSStoreConfig{Conn: nc, Bucket: cfg.NATS.Bucket})
	if err != nil {
		return nil, fmt.Errorf("nats kv: %w", err)
	}
	return kv, nil
}

func newEventBus(nc *nats.Conn, cfg config.Config, node string) (bus.Bus, error) {
	base := bus.Config{BufferSize: cfg.Bus.BufferSize}
	if nc == nil {
		return bus.NewMemoryBus(base), nil
	}
	return bus.NewNATSBus(bus.NATSConfig{Config: base, Conn: nc, NodeID: node})
}

func newEmbedder(cfg config.Config) (embedding.Gateway, error) {
	if cfg.Embedding.Provider == "openai" {
		return embedding.NewOpenAIGateway(embedding.OpenAIConfig{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})
	}
	return embedding.NewStaticGateway(cfg.Embedding.Dimensions), nil
}

func nodeID(cfg config.Config) string {
	if cfg.NATS.NodeID != "" {
		return cfg.NATS.NodeID
	}
	return uuid.NewString()
}
