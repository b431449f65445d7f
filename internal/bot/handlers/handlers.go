package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/klcheng/PulseCoach/internal/config"
	"github.com/klcheng/PulseCoach/internal/engine"
	"github.com/klcheng/PulseCoach/internal/repository"
)

type Handlers struct {
	api         *tgbotapi.BotAPI
	cfg         *config.Config
	defs        *repository.DefinitionRepository
	completions *repository.CompletionRepository
	settings    *repository.UserSettingsRepository
	schedule    *engine.ScheduleEngine
	completion  *engine.CompletionStateMachine
	streaks     *engine.StreakEngine
	reporter    *engine.Reporter
	log         zerolog.Logger
}

func New(
	api *tgbotapi.BotAPI,
	cfg *config.Config,
	defs *repository.DefinitionRepository,
	completions *repository.CompletionRepository,
	settings *repository.UserSettingsRepository,
	schedule *engine.ScheduleEngine,
	completion *engine.CompletionStateMachine,
	streaks *engine.StreakEngine,
	reporter *engine.Reporter,
	log zerolog.Logger,
) *Handlers {
	return &Handlers{
		api:         api,
		cfg:         cfg,
		defs:        defs,
		completions: completions,
		settings:    settings,
		schedule:    schedule,
		completion:  completion,
		streaks:     streaks,
		reporter:    reporter,
		log:         log.With().Str("component", "handlers").Logger(),
	}
}

func (h *Handlers) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start", "help":
		h.handleHelp(msg)
	case "remind":
		h.handleRemind(ctx, msg)
	case "reminders":
		h.handleReminderList(ctx, msg)
	case "reschedule":
		h.handleReschedule(ctx, msg)
	case "cancel":
		h.handleCancel(ctx, msg)
	case "adherence":
		h.handleAdherence(ctx, msg)
	case "streak":
		h.handleStreak(ctx, msg)
	case "timezone":
		h.handleTimezone(ctx, msg)
	case "grantfreeze":
		h.handleGrantFreeze(ctx, msg)
	default:
		h.sendMessage(msg.Chat.ID, "Unknown command. Try /help.")
	}
}

func (h *Handlers) handleHelp(msg *tgbotapi.Message) {
	h.sendMessage(msg.Chat.ID, `PulseCoach reminders

/remind <domain> daily HH:MM <message>
/remind <domain> weekly mon,wed,fri HH:MM <message>
/remind <domain> once YYYY-MM-DD HH:MM <message>
/reminders — list active reminders
/reschedule <id> <rule> — change a reminder's schedule
/cancel <id> — stop a reminder
/adherence [domain] — last 30 days report
/streak <domain> — streak status
/timezone [zone] — show or set your timezone

Tap the buttons on a fired reminder to mark it done, skip it, or snooze it.`)
}

func (h *Handlers) sendMessage(chatID int64, text string) {
	if _, err := h.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send message")
	}
}
