package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/medtechbot/internal/bot"
	"github.com/edgard/medtechbot/internal/bot/handlers"
	"github.com/edgard/medtechbot/internal/bot/tasks"
	"github.com/edgard/medtechbot/internal/config"
	"github.com/edgard/medtechbot/internal/conversation"
	"github.com/edgard/medtechbot/internal/database"
	"github.com/edgard/medtechbot/internal/liveness"
	"github.com/edgard/medtechbot/internal/logger"
	"github.com/edgard/medtechbot/internal/metrics"
	"github.com/edgard/medtechbot/internal/redisstore"
	"github.com/edgard/medtechbot/internal/resilience"
	"github.com/edgard/medtechbot/internal/router"
	"github.com/edgard/medtechbot/internal/telegram"
)

const startupTimeout = 10 * time.Second

// run initializes and starts all application components (config, logger,
// journal, state store, bot, scheduler, liveness server) and blocks until ctx
// is cancelled or a component fails.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.JSON)
	log.Info("Configuration loaded", "config", cfg)

	m := metrics.New()

	db, err := database.NewDB(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Error("Failed to connect to database", "driver", cfg.Database.Driver, "error", err)
		return err
	}
	defer database.CloseDB(db)
	journal := database.NewStore(db, log)

	checks := map[string]liveness.Check{"journal": journal.Ping}

	var store conversation.Store
	switch cfg.State.Backend {
	case "redis":
		rs := redisstore.New(cfg.State.Redis.Addr, cfg.State.Redis.Password, cfg.State.Redis.DB,
			redisstore.WithPrefix(cfg.State.Redis.Prefix))
		defer func() {
			if err := rs.Close(); err != nil {
				log.Error("Error closing redis client", "error", err)
			}
		}()
		pingCtx, cancel := context.WithTimeout(ctx, startupTimeout)
		err := rs.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Error("Failed to reach redis", "addr", cfg.State.Redis.Addr, "error", err)
			return err
		}
		checks["state"] = rs.Ping
		store = rs
	default:
		store = conversation.NewMemoryStore()
	}
	log.Info("Conversation state store ready", "backend", cfg.State.Backend)

	// The default handler needs the engine, which needs the router, which
	// sends through the bot; the closure breaks the cycle.
	var onMessage tgbot.HandlerFunc
	// Updates are dispatched synchronously in polling order into per-user
	// queues, so each user's messages are applied in arrival order.
	queue := handlers.NewUserQueue()
	botOpts := []tgbot.Option{
		tgbot.WithNotAsyncHandlers(),
		tgbot.WithWorkers(1),
		tgbot.WithMiddlewares(queue.Middleware, logger.Middleware(log)),
		tgbot.WithDefaultHandler(func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			onMessage(ctx, b, update)
		}),
		tgbot.WithErrorsHandler(func(err error) {
			log.Error("Telegram polling error", "error", err)
		}),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		return err
	}

	senderOpts := []telegram.SenderOption{telegram.WithSendTimeout(cfg.Delivery.SendTimeout)}
	if cfg.Delivery.BreakerMaxFailures > 0 {
		senderOpts = append(senderOpts, telegram.WithCircuitBreakers(resilience.CircuitBreakerConfig{
			MaxFailures:   cfg.Delivery.BreakerMaxFailures,
			Timeout:       cfg.Delivery.SendTimeout,
			ResetInterval: cfg.Delivery.BreakerResetInterval,
			Logger:        log.With("component", "channel_sender"),
		}))
	}
	rt, err := router.New(telegram.NewChannelSender(tg, senderOpts...), journal, cfg.Destinations.ByFlow(), log,
		router.WithMetrics(m),
		router.WithLocation(cfg.Delivery.Location()),
		router.WithRetryPolicy(cfg.Delivery.MaxAttempts, cfg.Delivery.RetryAfter),
	)
	if err != nil {
		log.Error("Failed to create request router", "error", err)
		return err
	}

	engine := conversation.NewEngine(store, conversation.MustDefaultFlowTable(), rt, cfg.Messages.Conversation(),
		conversation.WithLogger(log),
		conversation.WithMetrics(m),
	)

	hDeps := handlers.HandlerDeps{
		Logger:       log,
		Config:       cfg,
		Conversation: engine,
	}
	onMessage = handlers.NewMessageHandler(hDeps)
	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return err
	}

	setupCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	if err := telegram.SetCommands(setupCtx, tg, cfg.Telegram.Commands); err != nil {
		log.Warn("Failed to publish bot commands", "error", err)
	}
	if cfg.Telegram.DropPendingUpdates {
		if _, err := tg.DeleteWebhook(setupCtx, &tgbot.DeleteWebhookParams{DropPendingUpdates: true}); err != nil {
			log.Warn("Failed to drop pending updates", "error", err)
		}
	}
	cancel()

	tDeps := tasks.TaskDeps{
		Logger: log,
		Store:  journal,
		Router: rt,
		Config: cfg,
	}
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps),
		gocron.WithLogger(log.With("component", "gocron")),
		gocron.WithLocation(cfg.Delivery.Location()),
	)
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return err
	}

	var httpServer bot.Runner
	if cfg.HTTP.Enabled {
		handler := liveness.NewHandler(liveness.Options{Metrics: m.Handler(), Checks: checks})
		httpServer = liveness.NewServer(cfg.HTTP.Port, handler, cfg.HTTP.ShutdownTimeout, log)
	}

	app := bot.NewBot(log, tg, sched, httpServer)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	queue.Wait()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		return fmt.Errorf("bot stopped: %w", runErr)
	}

	log.Info("Bot stopped gracefully.")
	return nil
}
