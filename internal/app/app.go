package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"vault-rebalancer/internal/alerting"
	"vault-rebalancer/internal/chain"
	"vault-rebalancer/internal/config"
	"vault-rebalancer/internal/engine"
	"vault-rebalancer/internal/route"
	"vault-rebalancer/internal/scheduler"
	"vault-rebalancer/internal/server"
	"vault-rebalancer/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, errors.New("database.dsn is required")
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}

	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newEngine(store *storage.Store) *engine.Engine {
	chains := []config.ChainConfig{a.Config.Chains.A, a.Config.Chains.B}
	reader := chain.NewVaultReader(chains, a.Logger)
	quoter := route.NewLiFi(route.LiFiOptions{
		BaseURL:     a.Config.LiFi.BaseURL,
		Integrator:  a.Config.LiFi.Integrator,
		SlippagePct: a.Config.LiFi.SlippagePct,
		Timeout:     a.Config.LiFi.RequestTimeout,
		UserAgent:   a.Config.LiFi.UserAgent,
	}, a.Logger)

	return engine.New(
		engine.Options{
			ChainA:    a.Config.Chains.A,
			ChainB:    a.Config.Chains.B,
			Rebalance: a.Config.Rebalance,
			LockKey:   a.Config.Scheduler.AdvisoryLockKey,
		},
		engine.Deps{
			Reader:      reader,
			Snapshots:   store,
			Events:      store,
			Obligations: engine.NewStoreObligations(store),
			Reasoning:   store,
			Actions:     store,
			Quoter:      quoter,
			Locker:      store,
		},
		a.Logger,
	)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Enabled && a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) newEmitter() alerting.Emitter {
	if a.Config.Alerting.Kafka.Enabled {
		cfg := a.Config.Alerting.Kafka
		return alerting.NewKafkaEmitter(cfg.Broker, cfg.Topic, a.Logger)
	}
	return nil
}

// Run executes the long-running rebalancing service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	eng := a.newEngine(store)
	notifier := a.newNotifier()
	emitter := a.newEmitter()
	if emitter != nil {
		defer emitter.Close()
	}

	var srv *server.Server
	serverErr := make(chan error, 1)
	if a.Config.Server.Enabled {
		srv = server.New(a.Config.Server, eng, store, store, store, a.Logger)
		go func() {
			serverErr <- srv.Start()
		}()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:        a.Config.Scheduler.Interval,
		AlignToInterval: a.Config.Scheduler.AlignToInterval,
		StartupDelay:    a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	schedErr := make(chan error, 1)
	go func() {
		schedErr <- sched.Run(ctx, func(ctx context.Context, at time.Time) error {
			return a.tick(ctx, eng, notifier, emitter, at)
		})
	}()

	a.Logger.Info().Msg("rebalancing service started")

	select {
	case err = <-serverErr:
		cancel()
		<-schedErr
	case err = <-schedErr:
	}

	if srv != nil {
		if shutdownErr := srv.Shutdown(context.Background()); shutdownErr != nil {
			a.Logger.Error().Err(shutdownErr).Msg("http server shutdown failed")
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("rebalancing service stopped")
	return nil
}

// tick runs one scheduled analysis and dispatches notifications for
// its outcome. A run already in flight is skipped, not retried.
func (a *App) tick(ctx context.Context, eng *engine.Engine, notifier alerting.Notifier, emitter alerting.Emitter, at time.Time) error {
	outcome, err := eng.Run(ctx)
	if err != nil {
		if errors.Is(err, engine.ErrRunInFlight) {
			a.Logger.Warn().Time("at", at).Msg("previous analysis still running; skipping tick")
			return nil
		}
		a.notify(ctx, notifier, alerting.Notification{
			Kind:      alerting.KindRunFailure,
			Timestamp: at,
			Message:   err.Error(),
		})
		return err
	}

	if outcome.Action == nil {
		return nil
	}

	a.notify(ctx, notifier, alerting.Notification{
		Kind:               alerting.KindSuggestion,
		Timestamp:          outcome.Action.ActionAt,
		SourceChainID:      outcome.Action.SourceChainID,
		DestinationChainID: outcome.Action.DestinationChainID,
		AmountMicro:        outcome.Action.AmountMicro,
		ConfidenceScore:    outcome.Record.ConfidenceScore,
	})

	if emitter != nil {
		if err := emitter.EmitSuggestion(ctx, *outcome.Action, outcome.Record.ConfidenceScore); err != nil {
			a.Logger.Error().Err(err).Int64("action_id", outcome.Action.ID).Msg("suggestion event publish failed")
		}
	}
	return nil
}

func (a *App) notify(ctx context.Context, notifier alerting.Notifier, note alerting.Notification) {
	if notifier == nil {
		return
	}
	if err := notifier.Notify(ctx, note); err != nil {
		a.Logger.Error().Err(err).Str("kind", note.Kind).Msg("notification delivery failed")
	}
}
