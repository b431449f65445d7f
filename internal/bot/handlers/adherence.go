package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (h *Handlers) handleAdherence(ctx context.Context, msg *tgbotapi.Message) {
	domain := strings.ToLower(strings.TrimSpace(msg.CommandArguments()))

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)
	rep, err := h.reporter.QueryAdherence(ctx, msg.From.ID, domain, from, to)
	if err != nil {
		h.log.Error().Err(err).Int64("owner_id", msg.From.ID).Msg("adherence query failed")
		h.sendMessage(msg.Chat.ID, "Failed to build the report, please try again.")
		return
	}

	title := "📊 Adherence, last 30 days"
	if domain != "" {
		title += " — " + domain
	}

	var sb strings.Builder
	sb.WriteString(title + "\n\n")
	sb.WriteString(fmt.Sprintf("Scheduled: %d\nCompleted: %d\nSkipped: %d\n", rep.Scheduled, rep.Completed, rep.Skipped))
	sb.WriteString(fmt.Sprintf("Completion rate: %.0f%%\n", rep.CompletionRate*100))
	sb.WriteString(fmt.Sprintf("Streak: %d (best %d)\n", rep.CurrentStreak, rep.BestStreak))
	if len(rep.MissedDates) > 0 {
		sb.WriteString("\nMissed:\n")
		for _, d := range rep.MissedDates {
			sb.WriteString("• " + d.Format("2006-01-02 15:04") + "\n")
		}
	}
	h.sendMessage(msg.Chat.ID, sb.String())
}

func (h *Handlers) handleStreak(ctx context.Context, msg *tgbotapi.Message) {
	domain := strings.ToLower(strings.TrimSpace(msg.CommandArguments()))
	if domain == "" {
		h.sendMessage(msg.Chat.ID, "Usage: /streak <domain>")
		return
	}

	s, err := h.streaks.Get(ctx, msg.From.ID, domain)
	if err != nil {
		h.log.Error().Err(err).Int64("owner_id", msg.From.ID).Msg("streak lookup failed")
		h.sendMessage(msg.Chat.ID, "Failed to fetch the streak, please try again.")
		return
	}

	h.sendMessage(msg.Chat.ID, fmt.Sprintf("🔥 %s streak: %d days (best %d)\nFreeze days left: %d",
		domain, s.Current, s.Best, s.FreezeRemaining))
}

// handleGrantFreeze is the operator entry point for the periodic
// freeze-day replenishment.
func (h *Handlers) handleGrantFreeze(ctx context.Context, msg *tgbotapi.Message) {
	if h.cfg.AdminID == 0 || msg.From.ID != h.cfg.AdminID {
		h.sendMessage(msg.Chat.ID, "Operator command.")
		return
	}

	args := strings.Fields(msg.CommandArguments())
	if len(args) != 3 {
		h.sendMessage(msg.Chat.ID, "Usage: /grantfreeze <owner_id> <domain> <days>")
		return
	}
	owner, err1 := strconv.ParseInt(args[0], 10, 64)
	days, err2 := strconv.Atoi(args[2])
	if err1 != nil || err2 != nil {
		h.sendMessage(msg.Chat.ID, "Owner id and days must be numbers.")
		return
	}

	s, err := h.streaks.GrantFreezeDays(ctx, owner, strings.ToLower(args[1]), days)
	if err != nil {
		h.log.Error().Err(err).Int64("owner_id", owner).Msg("freeze grant failed")
		h.sendMessage(msg.Chat.ID, "Grant failed: "+err.Error())
		return
	}
	h.sendMessage(msg.Chat.ID, fmt.Sprintf("Granted. %d freeze days remaining for %d/%s.",
		s.FreezeRemaining, owner, args[1]))
}
