// Command aquaflow is the booking client. Each invocation loads the store
// into a local mirror, runs one command against it and waits for its writes.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"aquaflow/internal/auth"
	"aquaflow/internal/config"
	"aquaflow/internal/database"
	"aquaflow/internal/domain"
	"aquaflow/internal/events"
	"aquaflow/internal/logging"
	"aquaflow/internal/models"
	"aquaflow/internal/notify"
	"aquaflow/internal/remote"
	"aquaflow/internal/repository"
	"aquaflow/internal/syncer"
	"aquaflow/internal/worker"

	"github.com/rs/zerolog"
)

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	if err := run(os.Args[1], os.Args[2:]); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

// app holds the wiring shared by all commands.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	out     io.Writer
	in      io.Reader
	mirror  *syncer.Mirror
	tokens  *auth.TokenManager
	journal *database.DB
	now     func() time.Time
}

func run(name string, args []string) error {
	cmd, ok := commands[name]
	if !ok {
		usage(os.Stderr)
		return fmt.Errorf("unknown command %q", name)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}
	logger := baseLogger.With().Str("component", "cli").Str("command", name).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{
		cfg:    cfg,
		logger: logger,
		out:    os.Stdout,
		in:     os.Stdin,
		tokens: auth.NewTokenManager(cfg.Session.Secret, cfg.Session.Issuer, cfg.Session.TTL),
		now:    time.Now,
	}

	if cfg.Client.JournalPath != "" {
		db, err := database.NewDB(cfg.Client.JournalPath, &logger)
		if err != nil {
			logger.Warn().Err(err).Str("path", cfg.Client.JournalPath).Msg("write journal unavailable")
		} else {
			a.journal = db
			defer db.Close()
		}
	}

	client := remote.NewClient(cfg.Client.BaseURL, cfg.Client.APIKey, cfg.Client.APIExtra, cfg.Client.Timeout, &logger)
	if cfg.Redis.Address != "" && cfg.Client.CacheTTL > 0 {
		redisClient := repository.NewRedisClient(cfg.Redis)
		if err := repository.Ping(ctx, redisClient); err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, fetching without cache")
			_ = redisClient.Close()
		} else {
			defer redisClient.Close()
			client.UseCache(repository.NewRedisSnapshotRepository(redisClient, remote.SnapshotCacheKey, cfg.Client.CacheTTL))
		}
	}

	var journal domain.Journal
	if a.journal != nil {
		journal = a.journal
	}
	disp := worker.NewDispatcher(client, journal, cfg.Client.Workers, cfg.Client.QueueSize, &logger)
	disp.SetTimeout(cfg.Client.Timeout)
	disp.Start(ctx)
	defer disp.Stop()

	bus := events.NewEventBus()
	if cfg.Events.Enabled {
		sink := events.NewKafkaSink(cfg.Events.Brokers, cfg.Events.Topic, 256, &logger)
		sink.Attach(bus)
		sink.Start(ctx)
		defer func() {
			sink.Close()
			sink.WaitClosed()
		}()
	}

	a.mirror = syncer.NewMirror(syncer.Options{
		Fetcher:    client,
		Dispatcher: disp,
		Events:     bus,
		Notifier:   initNotifier(cfg.Notify, &logger),
		Logger:     &logger,
	})
	defer a.mirror.Close()

	if err := a.mirror.Refresh(ctx); err != nil {
		return fmt.Errorf("load data: %w", err)
	}

	var actor *models.User
	if cmd.auth {
		u, err := a.currentUser()
		if err != nil {
			return err
		}
		actor = &u
	}
	return cmd.run(ctx, a, actor, args)
}

func initNotifier(cfg config.NotifyConfig, logger *zerolog.Logger) notify.Notifier {
	fallback := notify.NewLogNotifier(logger)
	if cfg.TelegramToken == "" || cfg.TelegramChatID == 0 {
		return fallback
	}
	bot, err := notify.NewTelegramBot(cfg.TelegramToken, cfg.Debug)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram unavailable, booking alerts go to the log")
		return fallback
	}
	return notify.NewTelegramNotifier(bot, cfg.TelegramChatID, fallback, logger)
}

// await reports the outcome of a write. A write that was applied locally but
// not confirmed is returned as an error so the exit status reflects it.
func (a *app) await(ctx context.Context, what string, p *syncer.Pending) error {
	if p == nil {
		return nil
	}
	waitCtx, cancel := context.WithTimeout(ctx, a.cfg.Client.Timeout+5*time.Second)
	defer cancel()

	err := p.Wait(waitCtx)
	switch {
	case err == nil:
		fmt.Fprintf(a.out, "%s saved.\n", what)
		return nil
	case errors.Is(err, syncer.ErrUnconfirmed):
		fmt.Fprintf(a.out, "%s was NOT saved: %v\n", what, err)
		return err
	default:
		fmt.Fprintf(a.out, "%s is still being saved: %v\n", what, err)
		return nil
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: aquaflow <command> [flags]")
	fmt.Fprintln(w)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-12s %s\n", name, commands[name].summary)
	}
}
