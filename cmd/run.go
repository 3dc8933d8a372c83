package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gatekeeper/bot"
	"gatekeeper/config"
	"gatekeeper/database"
	"gatekeeper/events"
	"gatekeeper/httpapi"
	"gatekeeper/infrastructure"
	"gatekeeper/infrastructure/observability"
	"gatekeeper/repository"
	"gatekeeper/service"

	log "github.com/sirupsen/logrus"
)

// store is the opened settings database behind the unit of work factory
type store struct {
	uowFactory service.UnitOfWorkFactory
	health     httpapi.HealthChecker
	close      func()
}

// openStore connects to the configured driver and applies pending migrations
func openStore(ctx context.Context, cfg *config.Config, eventBus *events.Bus, metrics *observability.MetricsProvider) (*store, error) {
	if cfg.UseSQLite() {
		log.WithField("path", cfg.SQLitePath).Info("Opening SQLite database...")
		if err := database.RunSQLiteMigrations(cfg.SQLitePath); err != nil {
			return nil, fmt.Errorf("failed to migrate sqlite database: %w", err)
		}
		db, err := database.NewSQLiteConnection(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		return &store{
			uowFactory: repository.NewSQLiteUnitOfWorkFactory(db, eventBus, repository.WithQueryRecorder(metrics)),
			health:     db,
			close:      func() { db.Close() },
		}, nil
	}

	log.Info("Connecting to database...")
	databaseURL := cfg.GetDatabaseURL()
	if err := database.RunMigrationsWithURL(databaseURL); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	db, err := database.NewConnection(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &store{
		uowFactory: repository.NewUnitOfWorkFactory(db, eventBus, repository.WithQueryRecorder(metrics)),
		health:     db,
		close:      db.Close,
	}, nil
}

// startupCleanup undoes partially completed startup steps in reverse order
type startupCleanup []func()

func (c *startupCleanup) add(step func()) {
	*c = append(*c, step)
}

// fail runs every registered step, newest first, and returns err
func (c startupCleanup) fail(err error) error {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
	return err
}

// Run initializes and starts the application
func Run(ctx context.Context) error {
	cfg := config.Get()
	configureLogging(cfg.LogLevel, cfg.Environment)
	log.Info("Starting gatekeeper bot...")

	var cleanup startupCleanup

	metrics := observability.NewMetricsProvider(cfg)
	if err := metrics.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	cleanup.add(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metrics.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Failed to shut down metrics")
		}
	})

	eventBus := events.NewBus()
	metrics.RegisterEventHandlers(eventBus)
	log.Info("Event bus initialized successfully")

	var natsClient *infrastructure.NATSClient
	if cfg.NATSServers != "" {
		log.WithField("servers", cfg.NATSServers).Info("Connecting to NATS...")
		natsClient = infrastructure.NewNATSClient(cfg.NATSServers)
		if err := natsClient.Connect(ctx); err != nil {
			return cleanup.fail(fmt.Errorf("failed to connect to NATS: %w", err))
		}
		cleanup.add(func() { natsClient.Close() })
		if err := natsClient.EnsureEventStream(); err != nil {
			return cleanup.fail(fmt.Errorf("failed to ensure event stream: %w", err))
		}
		infrastructure.NewNATSEventForwarder(natsClient).Register(eventBus)
	}

	st, err := openStore(ctx, cfg, eventBus, metrics)
	if err != nil {
		return cleanup.fail(err)
	}
	cleanup.add(st.close)
	log.WithField("driver", cfg.DatabaseDriver).Info("Database ready")

	settingsService := service.NewVerifySettingsService(st.uowFactory)

	session, err := bot.NewSession(cfg.DiscordToken)
	if err != nil {
		return cleanup.fail(err)
	}
	actions := bot.NewDiscordActions(session)

	verificationService := service.NewVerificationService(st.uowFactory, actions, eventBus, service.VerificationOptions{
		NotifyTooSoon:           cfg.NotifyTooSoon,
		TooSoonMessage:          cfg.TooSoonMessage,
		NotifyMissingPermission: cfg.NotifyMissingPermission,
		SerializeMembers:        cfg.SerializeMembers,
		PurgeLimit:              cfg.PurgeLimit,
	})

	log.Info("Initializing Discord bot...")
	discordBot, err := bot.New(bot.Config{
		Token:          cfg.DiscordToken,
		CommandPrefix:  cfg.CommandPrefix,
		AdminRoleIDs:   cfg.AdminRoleIDs,
		HandlerTimeout: cfg.HandlerTimeout,
	}, session, actions, verificationService, settingsService, metrics)
	if err != nil {
		return cleanup.fail(fmt.Errorf("failed to initialize Discord bot: %w", err))
	}

	var api *httpapi.Server
	if cfg.HTTPAddr != "" {
		api = httpapi.NewServer(st.health, settingsService)
		go func() {
			if err := api.Start(cfg.HTTPAddr); err != nil {
				log.WithError(err).Error("HTTP API stopped")
			}
		}()
	}

	log.Infof("Bot is running in %s mode...", cfg.Environment)
	<-ctx.Done()

	log.Info("Shutting down bot...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if api != nil {
		if err := api.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http api: %w", err))
		}
	}
	if err := discordBot.Close(); err != nil {
		errs = append(errs, fmt.Errorf("discord: %w", err))
	}
	if natsClient != nil {
		if err := natsClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("nats: %w", err))
		}
	}
	if err := metrics.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("metrics: %w", err))
	}

	log.Info("Closing database connection...")
	st.close()

	if err := errors.Join(errs...); err != nil {
		log.WithError(err).Warn("Shutdown completed with errors")
		return nil
	}
	log.Info("Shutdown completed")
	return nil
}
