package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/klcheng/PulseCoach/internal/bot/handlers"
	"github.com/klcheng/PulseCoach/internal/config"
	"github.com/klcheng/PulseCoach/internal/engine"
	"github.com/klcheng/PulseCoach/internal/repository"
)

type Bot struct {
	api      *tgbotapi.BotAPI
	handlers *handlers.Handlers
	log      zerolog.Logger
}

func New(
	cfg *config.Config,
	defs *repository.DefinitionRepository,
	completions *repository.CompletionRepository,
	settings *repository.UserSettingsRepository,
	schedule *engine.ScheduleEngine,
	completion *engine.CompletionStateMachine,
	streaks *engine.StreakEngine,
	reporter *engine.Reporter,
	log zerolog.Logger,
) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{
		api:      api,
		handlers: handlers.New(api, cfg, defs, completions, settings, schedule, completion, streaks, reporter, log),
		log:      log.With().Str("component", "bot").Logger(),
	}, nil
}

func (b *Bot) Start(ctx context.Context) error {
	b.log.Info().Str("account", b.api.Self.UserName).Msg("bot authorized")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update := <-updates:
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handlers.HandleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message == nil {
		return
	}
	if update.Message.IsCommand() {
		b.handlers.HandleCommand(ctx, update.Message)
	}
}
