package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/klcheng/PulseCoach/internal/models"
	"github.com/klcheng/PulseCoach/internal/recurrence"
)

const remindUsage = `Usage:
/remind <domain> daily HH:MM <message>
/remind <domain> weekly mon,wed,fri HH:MM <message>
/remind <domain> once YYYY-MM-DD HH:MM <message>`

func (h *Handlers) handleRemind(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 4 {
		h.sendMessage(msg.Chat.ID, remindUsage)
		return
	}

	domain := strings.ToLower(args[0])

	// The owner's configured zone decides both the rule's local
	// time-of-day and the zone stored on the definition.
	tz := h.cfg.DefaultTimezone
	if s, err := h.settings.GetOrCreate(ctx, msg.From.ID, h.cfg.DefaultTimezone); err == nil {
		tz = s.Timezone
	} else {
		h.log.Warn().Err(err).Int64("owner_id", msg.From.ID).Msg("failed to load settings, using default timezone")
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		h.sendMessage(msg.Chat.ID, "Your timezone setting is invalid, fix it with /timezone.")
		return
	}

	rule, rest, err := parseRuleArgs(args[1:], loc)
	if err != nil {
		h.sendMessage(msg.Chat.ID, err.Error()+"\n\n"+remindUsage)
		return
	}
	if len(rest) == 0 {
		h.sendMessage(msg.Chat.ID, "Please add a reminder message.\n\n"+remindUsage)
		return
	}

	def := &models.ReminderDefinition{
		OwnerID:  msg.From.ID,
		Domain:   domain,
		Message:  strings.Join(rest, " "),
		Timezone: tz,
		Tracked:  true,
	}

	inst, err := h.schedule.CreateReminder(ctx, def, rule)
	if err != nil {
		if errors.Is(err, models.ErrInvalidRecurrence) {
			h.sendMessage(msg.Chat.ID, "That schedule can never fire: "+err.Error())
			return
		}
		h.log.Error().Err(err).Int64("owner_id", msg.From.ID).Msg("failed to create reminder")
		h.sendMessage(msg.Chat.ID, "Failed to create the reminder, please try again.")
		return
	}

	h.sendMessage(msg.Chat.ID, fmt.Sprintf("⏰ Reminder #%d set: %s\nNext: %s",
		def.DefinitionID, rule.Describe(), inst.ScheduledAt.In(loc).Format("2006-01-02 15:04")))
}

func (h *Handlers) handleReminderList(ctx context.Context, msg *tgbotapi.Message) {
	defs, err := h.defs.GetByOwner(ctx, msg.From.ID)
	if err != nil {
		h.log.Error().Err(err).Int64("owner_id", msg.From.ID).Msg("failed to list reminders")
		h.sendMessage(msg.Chat.ID, "Failed to fetch reminders, please try again.")
		return
	}
	if len(defs) == 0 {
		h.sendMessage(msg.Chat.ID, "⏰ No active reminders.")
		return
	}

	var sb strings.Builder
	sb.WriteString("⏰ Active reminders\n\n")
	for _, def := range defs {
		desc := def.RuleSpec
		if rule, err := recurrence.Parse(def.RuleSpec); err == nil {
			desc = rule.Describe()
		}
		sb.WriteString(fmt.Sprintf("#%d [%s] %s — %s\n", def.DefinitionID, def.Domain, def.Message, desc))
		if def.LastError != "" {
			sb.WriteString("   ⚠ scheduling problem: " + def.LastError + "\n")
		}
	}
	h.sendMessage(msg.Chat.ID, sb.String())
}

func (h *Handlers) handleReschedule(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 3 {
		h.sendMessage(msg.Chat.ID, "Usage: /reschedule <id> <rule>, e.g. /reschedule 3 daily 09:00")
		return
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		h.sendMessage(msg.Chat.ID, "Reminder id must be a number.")
		return
	}

	def, err := h.defs.GetByID(ctx, id)
	if err != nil || def.OwnerID != msg.From.ID {
		h.sendMessage(msg.Chat.ID, "Reminder not found.")
		return
	}
	loc, err := time.LoadLocation(def.Timezone)
	if err != nil {
		h.sendMessage(msg.Chat.ID, "The reminder has an invalid timezone, contact the operator.")
		return
	}

	rule, _, err := parseRuleArgs(args[1:], loc)
	if err != nil {
		h.sendMessage(msg.Chat.ID, err.Error())
		return
	}

	inst, err := h.schedule.Reschedule(ctx, id, rule)
	if err != nil {
		if errors.Is(err, models.ErrInvalidRecurrence) {
			h.sendMessage(msg.Chat.ID, "That schedule can never fire: "+err.Error())
			return
		}
		h.log.Error().Err(err).Int64("definition_id", id).Msg("failed to reschedule")
		h.sendMessage(msg.Chat.ID, "Failed to reschedule, please try again.")
		return
	}

	h.sendMessage(msg.Chat.ID, fmt.Sprintf("⏰ Reminder #%d now %s\nNext: %s",
		id, rule.Describe(), inst.ScheduledAt.In(loc).Format("2006-01-02 15:04")))
}

func (h *Handlers) handleCancel(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 1 {
		h.sendMessage(msg.Chat.ID, "Usage: /cancel <id>")
		return
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		h.sendMessage(msg.Chat.ID, "Reminder id must be a number.")
		return
	}

	def, err := h.defs.GetByID(ctx, id)
	if err != nil || def.OwnerID != msg.From.ID {
		h.sendMessage(msg.Chat.ID, "Reminder not found.")
		return
	}

	if err := h.schedule.Cancel(ctx, id); err != nil {
		h.log.Error().Err(err).Int64("definition_id", id).Msg("failed to cancel")
		h.sendMessage(msg.Chat.ID, "Failed to cancel, please try again.")
		return
	}
	h.sendMessage(msg.Chat.ID, fmt.Sprintf("Reminder #%d cancelled. Its history is kept.", id))
}

var weekdayNames = map[string]time.Weekday{
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
	"sun": time.Sunday,
}

// parseRuleArgs consumes the rule tokens from the front of args and
// returns the remaining tokens (the message). Once instants are parsed
// in loc, the owner's timezone.
func parseRuleArgs(args []string, loc *time.Location) (recurrence.Rule, []string, error) {
	if len(args) == 0 {
		return recurrence.Rule{}, nil, fmt.Errorf("missing schedule")
	}

	switch strings.ToLower(args[0]) {
	case "daily":
		if len(args) < 2 {
			return recurrence.Rule{}, nil, fmt.Errorf("daily needs a time, e.g. daily 08:00")
		}
		hh, mm, err := parseClock(args[1])
		if err != nil {
			return recurrence.Rule{}, nil, err
		}
		return recurrence.Rule{Kind: recurrence.KindDaily, Hour: hh, Minute: mm}, args[2:], nil

	case "weekly":
		if len(args) < 3 {
			return recurrence.Rule{}, nil, fmt.Errorf("weekly needs days and a time, e.g. weekly mon,thu 08:00")
		}
		var days []time.Weekday
		for _, name := range strings.Split(strings.ToLower(args[1]), ",") {
			wd, ok := weekdayNames[strings.TrimSpace(name)]
			if !ok {
				return recurrence.Rule{}, nil, fmt.Errorf("unknown weekday %q", name)
			}
			days = append(days, wd)
		}
		hh, mm, err := parseClock(args[2])
		if err != nil {
			return recurrence.Rule{}, nil, err
		}
		return recurrence.Rule{Kind: recurrence.KindWeekly, Weekdays: days, Hour: hh, Minute: mm}, args[3:], nil

	case "once":
		if len(args) < 3 {
			return recurrence.Rule{}, nil, fmt.Errorf("once needs a date and time, e.g. once 2025-03-01 08:00")
		}
		at, err := time.ParseInLocation("2006-01-02 15:04", args[1]+" "+args[2], loc)
		if err != nil {
			return recurrence.Rule{}, nil, fmt.Errorf("bad date/time %q %q", args[1], args[2])
		}
		return recurrence.Rule{Kind: recurrence.KindOnce, At: at.UTC()}, args[3:], nil
	}

	return recurrence.Rule{}, nil, fmt.Errorf("unknown schedule %q", args[0])
}

func parseClock(s string) (int, int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("bad time %q, use HH:MM", s)
	}
	return t.Hour(), t.Minute(), nil
}
