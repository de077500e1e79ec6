package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"voicecal/internal/calendar"
	"voicecal/internal/config"
	"voicecal/internal/database"
	"voicecal/internal/discord"
	"voicecal/internal/faction"
	"voicecal/internal/health"
	"voicecal/internal/jobs"
	"voicecal/internal/memstore"
	"voicecal/internal/mongostore"
	"voicecal/internal/tracker"
)

// store is the full persistence surface every backend implements
type store interface {
	discord.Store
	tracker.TimeStore
	tracker.SettingsStore
	calendar.Store
	jobs.FactionStore
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize storage
	st, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize %s store: %v", cfg.StoreDriver, err)
	}
	defer closeStore()

	var sessions tracker.SessionStore = tracker.NewMemorySessionStore()
	if cfg.RedisURL != "" {
		client, err := database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer client.Close()
		sessions = database.NewRedisSessionStore(client)
		log.Println("✅ Voice sessions are kept in Redis")
	}

	factions := faction.NewResolver(cfg.FactionRoles)

	// Initialize Discord bot
	session, err := discord.NewSession(cfg.DiscordToken)
	if err != nil {
		log.Fatalf("Failed to create Discord session: %v", err)
	}
	notifier := discord.NewNotifier(session, st, factions)
	rollover := jobs.NewFactionRollover(st, factions, notifier)

	bot := discord.New(session, discord.Options{
		GuildID:  cfg.GuildID,
		Store:    st,
		Tracker:  tracker.New(sessions, st, st, factions, notifier),
		Calendar: calendar.NewService(st),
		Rollover: rollover,
		Factions: factions,
		Notifier: notifier,
	})

	var healthServer *health.Server
	if cfg.HealthAddr != "" {
		healthServer = health.NewServer(cfg.HealthAddr)
		healthServer.Start()
	}

	// Start bot
	if err := bot.Start(); err != nil {
		log.Fatalf("Failed to start bot: %v", err)
	}
	defer bot.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := jobs.NewRunner()
	runner.Schedule("daily faction reset", func(now time.Time) time.Time {
		return jobs.NextDaily(now, cfg.DailyResetHourUTC)
	}, rollover.Run)
	runner.Schedule("weekly calendar refresh", func(now time.Time) time.Time {
		return jobs.NextWeekly(now, time.Monday, cfg.WeeklyRefreshHourUTC)
	}, jobs.CalendarRefresh(bot))
	runner.Start(ctx)

	// Wait for interrupt signal
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	log.Println("Shutting down bot...")
	cancel()
	runner.Stop()

	if healthServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := healthServer.Stop(shutdownCtx); err != nil {
			log.Printf("Health server shutdown error: %v", err)
		}
	}
}

func openStore(cfg *config.Config) (store, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			s.Close(ctx)
		}, nil
	case config.DriverMemory:
		log.Println("⚠️ Using in-memory storage, data is lost on restart")
		return memstore.New(), func() {}, nil
	default:
		db, err := database.New(cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		return database.NewRepository(db), func() { db.Close() }, nil
	}
}
