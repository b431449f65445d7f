// Package notify is the delivery boundary: it renders engine events into
// Telegram messages. Failures here are delivery failures only; the engine
// state machine never depends on them.
package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/klcheng/PulseCoach/internal/engine"
	"github.com/klcheng/PulseCoach/internal/models"
	"github.com/klcheng/PulseCoach/internal/recurrence"
)

type TelegramNotifier struct {
	api *tgbotapi.BotAPI
	log zerolog.Logger
}

func NewTelegramNotifier(api *tgbotapi.BotAPI, log zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		api: api,
		log: log.With().Str("component", "notify").Logger(),
	}
}

// Deliver renders and transmits a fired reminder with its resolution
// buttons. Callback data is parsed by the bot's callback handler.
func (n *TelegramNotifier) Deliver(ctx context.Context, def *models.ReminderDefinition, inst *models.ReminderInstance) error {
	text := "⏰ Reminder\n\n" + def.Message
	if rule, err := recurrence.Parse(def.RuleSpec); err == nil && rule.Recurring() {
		text += "\n\n🔄 " + rule.Describe()
	}

	msg := tgbotapi.NewMessage(def.OwnerID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Done", fmt.Sprintf("resolve:%d:done", inst.InstanceID)),
			tgbotapi.NewInlineKeyboardButtonData("⏭ Skip", fmt.Sprintf("resolve:%d:skip", inst.InstanceID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💤 15m", fmt.Sprintf("resolve:%d:snooze:15", inst.InstanceID)),
			tgbotapi.NewInlineKeyboardButtonData("💤 30m", fmt.Sprintf("resolve:%d:snooze:30", inst.InstanceID)),
			tgbotapi.NewInlineKeyboardButtonData("💤 1h", fmt.Sprintf("resolve:%d:snooze:60", inst.InstanceID)),
		),
	)

	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send reminder: %w", err)
	}
	n.log.Info().
		Int64("instance_id", inst.InstanceID).
		Int64("owner_id", def.OwnerID).
		Msg("reminder delivered")
	return nil
}

func (n *TelegramNotifier) OnCompletion(ctx context.Context, ev engine.CompletionEvent) {
	if ev.Record.Kind != models.ResolutionDone {
		return
	}
	var text string
	switch ev.Timing {
	case models.TimingOnTime:
		text = fmt.Sprintf("✅ Done, right on time! +%d XP", ev.XP)
	case models.TimingEarly:
		text = fmt.Sprintf("✅ Done, %d minutes early. +%d XP", -ev.Record.DeltaMinutes, ev.XP)
	default:
		text = fmt.Sprintf("✅ Done. +%d XP", ev.XP)
	}
	n.send(ev.Record.OwnerID, text)
}

func (n *TelegramNotifier) OnStreakMilestone(ctx context.Context, ev engine.StreakEvent) {
	text := fmt.Sprintf("🔥 %d-day %s streak!", ev.Update.Current, ev.Domain)
	if ev.Update.IsNewBest {
		text += " A new personal best."
	}
	n.send(ev.OwnerID, text)
}

func (n *TelegramNotifier) OnAchievement(ctx context.Context, ev engine.AchievementEvent) {
	n.send(ev.OwnerID, fmt.Sprintf("🏆 Achievement unlocked: %s (+%d XP)", ev.Achievement.Title, ev.Achievement.XP))
}

func (n *TelegramNotifier) send(chatID int64, text string) {
	if _, err := n.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		n.log.Error().Err(err).Int64("owner_id", chatID).Msg("failed to send notification")
	}
}
