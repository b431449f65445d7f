package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"github.com/klcheng/PulseCoach/internal/bot"
	"github.com/klcheng/PulseCoach/internal/config"
	"github.com/klcheng/PulseCoach/internal/database"
	"github.com/klcheng/PulseCoach/internal/engine"
	"github.com/klcheng/PulseCoach/internal/logger"
	"github.com/klcheng/PulseCoach/internal/notify"
	"github.com/klcheng/PulseCoach/internal/repository"
)

func main() {
	log := logger.New("pulsecoach")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, cfg.DatabaseURI)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("connected to database")

	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	log.Info().Msg("database migrations completed")

	defRepo := repository.NewDefinitionRepository(db)
	instRepo := repository.NewInstanceRepository(db)
	compRepo := repository.NewCompletionRepository(db)
	streakRepo := repository.NewStreakRepository(db)
	adherenceRepo := repository.NewAdherenceRepository(db)
	settingsRepo := repository.NewUserSettingsRepository(db)

	engCfg := engine.Config{
		CheckInterval:     cfg.CheckInterval,
		GraceWindow:       cfg.GraceWindow,
		OnTimeTolerance:   cfg.OnTimeTolerance,
		DefaultFreezeDays: cfg.DefaultFreezeDays,
	}

	// Separate API client for outbound notifications, same as the bot's.
	tgAPI, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create telegram api")
	}
	sink := notify.NewTelegramNotifier(tgAPI, log)

	schedule := engine.NewScheduleEngine(defRepo, instRepo, sink, engCfg, log)
	streaks := engine.NewStreakEngine(streakRepo, sink, engCfg, log)
	completion := engine.NewCompletionStateMachine(defRepo, instRepo, compRepo, schedule, streaks, sink, engCfg, log)
	reporter := engine.NewReporter(adherenceRepo, streakRepo)

	b, err := bot.New(cfg, defRepo, compRepo, settingsRepo, schedule, completion, streaks, reporter, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create bot")
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("shutting down")
		cancel()
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return schedule.Run(gctx) })
	g.Go(func() error { return b.Start(gctx) })

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Fatal().Err(err).Msg("runtime error")
	}
}
