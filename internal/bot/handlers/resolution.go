package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/klcheng/PulseCoach/internal/engine"
	"github.com/klcheng/PulseCoach/internal/models"
)

// HandleCallback routes reminder button presses into the completion
// state machine. Callback data format: resolve:<instance>:<action>[:min]
func (h *Handlers) HandleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	parts := strings.Split(cb.Data, ":")
	if len(parts) < 3 || parts[0] != "resolve" {
		h.answerCallback(cb.ID, "")
		return
	}

	instanceID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		h.answerCallback(cb.ID, "Bad reminder reference.")
		return
	}

	res := engine.Resolution{At: time.Now().UTC()}
	switch parts[2] {
	case "done":
		res.Kind = models.ResolutionDone
	case "skip":
		res.Kind = models.ResolutionSkipped
	case "snooze":
		if len(parts) != 4 {
			h.answerCallback(cb.ID, "Bad snooze request.")
			return
		}
		min, err := strconv.Atoi(parts[3])
		if err != nil {
			h.answerCallback(cb.ID, "Bad snooze request.")
			return
		}
		res.Kind = models.ResolutionSnoozed
		res.SnoozeMinutes = min
	default:
		h.answerCallback(cb.ID, "Unknown action.")
		return
	}

	rec, err := h.completion.Resolve(ctx, instanceID, res)
	if err != nil {
		// A failed resolution must surface as a failure, never as a
		// silent success followed by inconsistent state.
		switch {
		case errors.Is(err, models.ErrAlreadyResolved):
			h.answerCallback(cb.ID, h.alreadyHandledText(ctx, instanceID))
		case errors.Is(err, models.ErrInstanceNotDeliverable):
			h.answerCallback(cb.ID, "That reminder has not fired yet.")
		case errors.Is(err, models.ErrNotFound):
			h.answerCallback(cb.ID, "Reminder not found.")
		default:
			h.log.Error().Err(err).Int64("instance_id", instanceID).Msg("resolution failed")
			h.answerCallback(cb.ID, "Something went wrong, please try again.")
		}
		return
	}

	switch rec.Kind {
	case models.ResolutionSnoozed:
		h.answerCallback(cb.ID, "Snoozed for "+strconv.Itoa(res.SnoozeMinutes)+" minutes.")
	case models.ResolutionSkipped:
		h.answerCallback(cb.ID, "Skipped.")
	default:
		h.answerCallback(cb.ID, "Done!")
	}

	// Drop the buttons so the message stops inviting further taps.
	if cb.Message != nil {
		edit := tgbotapi.NewEditMessageReplyMarkup(cb.Message.Chat.ID, cb.Message.MessageID,
			tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
		if _, err := h.api.Request(edit); err != nil {
			h.log.Debug().Err(err).Msg("failed to clear reminder buttons")
		}
	}
}

// alreadyHandledText tells a double-tapping user how the reminder was
// settled the first time.
func (h *Handlers) alreadyHandledText(ctx context.Context, instanceID int64) string {
	rec, err := h.completions.GetByInstance(ctx, instanceID)
	if err != nil {
		// Expired without a record, or the lookup failed.
		return "Already handled."
	}
	switch rec.Kind {
	case models.ResolutionSkipped:
		return "Already skipped."
	case models.ResolutionSnoozed:
		return "Already snoozed."
	default:
		return "Already marked done."
	}
}

func (h *Handlers) answerCallback(id, text string) {
	if _, err := h.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		h.log.Error().Err(err).Msg("failed to answer callback")
	}
}
