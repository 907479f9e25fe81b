package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/csoportal/internal/account"
	"github.com/jon4hz/csoportal/internal/api"
	"github.com/jon4hz/csoportal/internal/api/handler"
	"github.com/jon4hz/csoportal/internal/cache"
	"github.com/jon4hz/csoportal/internal/columnmap"
	"github.com/jon4hz/csoportal/internal/config"
	"github.com/jon4hz/csoportal/internal/database"
	"github.com/jon4hz/csoportal/internal/housekeeping"
	"github.com/jon4hz/csoportal/internal/notify/email"
	"github.com/jon4hz/csoportal/internal/notify/ntfy"
	"github.com/jon4hz/csoportal/internal/scheduler"
	"github.com/jon4hz/csoportal/internal/settings"
	"github.com/jon4hz/csoportal/internal/settlement"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the portal server",
	Long:  `Start the portal server with the JSON API and the housekeeping scheduler.`,
	Example: `csoportal serve --config config.yml
csoportal serve -c /path/to/config.yml --log-level debug
`,
	RunE: startServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func startServer(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	defer db.Close() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	deps, sched, err := buildDeps(cfg, db)
	if err != nil {
		log.Fatalf("failed to set up services: %v", err)
	}

	server, err := api.New(ctx, deps, log.GetLevel() == log.DebugLevel)
	if err != nil {
		log.Fatalf("failed to create API server: %v", err)
	}

	sched.Start()
	defer func() {
		if err := sched.Stop(); err != nil {
			log.Error("failed to stop scheduler", "error", err)
		}
	}()

	log.Info("csoportal started successfully")
	if err := server.Run(ctx); err != nil {
		log.Error("API server error", "error", err)
		return err
	}
	log.Info("shut down gracefully")
	return nil
}

// buildDeps wires the services behind the API.
func buildDeps(cfg *config.Config, db *database.Client) (handler.Deps, *scheduler.Scheduler, error) {
	settingsCache := cache.NewSettingsCache(cfg.Cache)
	settingsService := settings.New(db, settingsCache)

	mailOpts := email.Options{
		Interval:  cfg.Mail.Interval,
		PortalURL: cfg.ServerURL,
	}
	accountOpts := account.Options{
		ResetTTL:  cfg.Mail.ResetTokenTTL,
		PortalURL: cfg.ServerURL,
	}
	if notifier := ntfy.NewClient(cfg.Ntfy); notifier != nil {
		mailOpts.Notifier = notifier
		accountOpts.Notifier = notifier
	}

	mail := email.NewService(db, email.NewSender(cfg.Email, cfg.Mail.DryRun), settingsService, mailOpts)
	accountOpts.Mailer = mail
	accounts := account.NewService(db, account.NewTokens(cfg.JWT), accountOpts)

	sched, err := scheduler.New()
	if err != nil {
		return handler.Deps{}, nil, err
	}
	if cfg.HousekeepingSchedule != "" {
		if err := housekeeping.Register(sched, cfg.HousekeepingSchedule, db, cfg.Retention.EmailLogDays); err != nil {
			return handler.Deps{}, nil, err
		}
	}

	return handler.Deps{
		Config:      cfg,
		DB:          db,
		Accounts:    accounts,
		Settlements: settlement.New(db, settingsService, columnmap.New(cfg.Upload.MatchThreshold)),
		Settings:    settingsService,
		Mail:        mail,
		Cache:       settingsCache,
		Scheduler:   sched,
	}, sched, nil
}

// runWithDB loads the config and opens the database for the maintenance commands.
func runWithDB(ctx context.Context, fn func(context.Context, *config.Config, *database.Client) error) error {
	cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
	if err != nil {
		return err
	}
	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck
	return fn(ctx, cfg, db)
}
