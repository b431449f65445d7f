package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (h *Handlers) handleTimezone(ctx context.Context, msg *tgbotapi.Message) {
	arg := strings.TrimSpace(msg.CommandArguments())
	if arg == "" {
		s, err := h.settings.GetOrCreate(ctx, msg.From.ID, h.cfg.DefaultTimezone)
		if err != nil {
			h.log.Error().Err(err).Int64("owner_id", msg.From.ID).Msg("failed to load settings")
			h.sendMessage(msg.Chat.ID, "Failed to load your settings, please try again.")
			return
		}
		h.sendMessage(msg.Chat.ID, fmt.Sprintf(
			"🌍 Your timezone is %s.\nChange it with /timezone <IANA name>, e.g. /timezone Europe/Berlin", s.Timezone))
		return
	}

	tz, err := normalizeTimezone(arg)
	if err != nil {
		h.sendMessage(msg.Chat.ID, err.Error())
		return
	}

	if err := h.settings.SetTimezone(ctx, msg.From.ID, tz); err != nil {
		h.log.Error().Err(err).Int64("owner_id", msg.From.ID).Msg("failed to save timezone")
		h.sendMessage(msg.Chat.ID, "Failed to save your timezone, please try again.")
		return
	}
	h.sendMessage(msg.Chat.ID, fmt.Sprintf(
		"🌍 Timezone set to %s. New reminders will fire at local %s time; existing ones keep their zone.", tz, tz))
}

// normalizeTimezone validates an IANA zone name against the tz database.
// The server-relative names Local and the empty string are rejected: a
// stored zone must mean the same thing on every host.
func normalizeTimezone(name string) (string, error) {
	if name == "" || strings.EqualFold(name, "local") {
		return "", fmt.Errorf("please use an IANA timezone name like Europe/Berlin or Asia/Taipei")
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return "", fmt.Errorf("unknown timezone %q, use an IANA name like Europe/Berlin", name)
	}
	return loc.String(), nil
}
