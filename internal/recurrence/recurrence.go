package recurrence

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/klcheng/PulseCoach/internal/models"
)

// Kind enumerates the supported rule shapes.
type Kind string

const (
	KindOnce   Kind = "once"
	KindDaily  Kind = "daily"
	KindWeekly Kind = "weekly"
)

// Rule is a reminder's recurrence. Once rules carry an absolute UTC
// instant; daily and weekly rules carry a local time-of-day that is
// resolved through the owner's timezone at computation time.
type Rule struct {
	Kind     Kind
	At       time.Time // once only, UTC
	Hour     int
	Minute   int
	Weekdays []time.Weekday // weekly only
}

// Recurring reports whether the rule produces more than one occurrence.
func (r Rule) Recurring() bool {
	return r.Kind == KindDaily || r.Kind == KindWeekly
}

// Validate rejects rules that can never produce a fire instant.
func (r Rule) Validate() error {
	switch r.Kind {
	case KindOnce:
		if r.At.IsZero() {
			return fmt.Errorf("%w: once rule without an instant", models.ErrInvalidRecurrence)
		}
	case KindDaily, KindWeekly:
		if r.Hour < 0 || r.Hour > 23 || r.Minute < 0 || r.Minute > 59 {
			return fmt.Errorf("%w: time of day %02d:%02d out of range", models.ErrInvalidRecurrence, r.Hour, r.Minute)
		}
		if r.Kind == KindWeekly && len(r.Weekdays) == 0 {
			return fmt.Errorf("%w: weekly rule with empty weekday set", models.ErrInvalidRecurrence)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", models.ErrInvalidRecurrence, r.Kind)
	}
	return nil
}

// Next returns the next fire instant strictly after the given time,
// converted to UTC. ok is false when the rule has no further occurrence
// (a once rule whose instant has passed).
//
// The walk runs on wall-clock dates in loc, so a daily 08:00 stays at
// local 08:00 across DST transitions even though the UTC offset shifts.
// A local time skipped entirely by a forward transition normalizes to
// the next valid instant that calendar day.
func (r Rule) Next(after time.Time, loc *time.Location) (time.Time, bool, error) {
	if err := r.Validate(); err != nil {
		return time.Time{}, false, err
	}

	if r.Kind == KindOnce {
		if !r.At.After(after) {
			return time.Time{}, false, nil
		}
		return r.At.UTC(), true, nil
	}

	local := after.In(loc)
	year, month, day := local.Date()

	// Eight days covers a weekly rule whose only weekday is today with
	// today's occurrence already past.
	for i := 0; i <= 8; i++ {
		date := time.Date(year, month, day+i, 12, 0, 0, 0, loc)
		if r.Kind == KindWeekly && !r.onWeekday(date.Weekday()) {
			continue
		}
		cand := time.Date(date.Year(), date.Month(), date.Day(), r.Hour, r.Minute, 0, 0, loc)
		if cand.After(after) {
			return cand.UTC(), true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("%w: no occurrence within horizon", models.ErrInvalidRecurrence)
}

func (r Rule) onWeekday(wd time.Weekday) bool {
	for _, d := range r.Weekdays {
		if d == wd {
			return true
		}
	}
	return false
}

var dayCodes = map[time.Weekday]string{
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
	time.Sunday:    "SU",
}

// rruleWeekdays maps rrule-go day numbers (Monday = 0) back to time.Weekday.
var rruleWeekdays = map[int]time.Weekday{
	rrule.MO.Day(): time.Monday,
	rrule.TU.Day(): time.Tuesday,
	rrule.WE.Day(): time.Wednesday,
	rrule.TH.Day(): time.Thursday,
	rrule.FR.Day(): time.Friday,
	rrule.SA.Day(): time.Saturday,
	rrule.SU.Day(): time.Sunday,
}

// Encode renders the rule for storage. Daily and weekly rules keep the
// RFC 5545 shape the reminder schema has always stored; once rules
// store the absolute instant.
func (r Rule) Encode() string {
	switch r.Kind {
	case KindOnce:
		return "ONCE:" + r.At.UTC().Format(time.RFC3339)
	case KindDaily:
		return fmt.Sprintf("FREQ=DAILY;BYHOUR=%d;BYMINUTE=%d", r.Hour, r.Minute)
	case KindWeekly:
		days := append([]time.Weekday(nil), r.Weekdays...)
		sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
		codes := make([]string, len(days))
		for i, wd := range days {
			codes[i] = dayCodes[wd]
		}
		return fmt.Sprintf("FREQ=WEEKLY;BYDAY=%s;BYHOUR=%d;BYMINUTE=%d", strings.Join(codes, ","), r.Hour, r.Minute)
	}
	return ""
}

// Parse decodes a stored rule spec and validates it. Recurring specs go
// through the RFC 5545 parser so anything the previous schema stored
// still round-trips.
func Parse(spec string) (Rule, error) {
	spec = strings.TrimSpace(spec)
	if rest, ok := strings.CutPrefix(spec, "ONCE:"); ok {
		at, err := time.Parse(time.RFC3339, rest)
		if err != nil {
			return Rule{}, fmt.Errorf("%w: bad once instant %q", models.ErrInvalidRecurrence, rest)
		}
		return Rule{Kind: KindOnce, At: at.UTC()}, nil
	}

	spec = strings.TrimPrefix(spec, "RRULE:")
	opt, err := rrule.StrToROption(spec)
	if err != nil {
		return Rule{}, fmt.Errorf("%w: %v", models.ErrInvalidRecurrence, err)
	}

	r := Rule{}
	switch opt.Freq {
	case rrule.DAILY:
		r.Kind = KindDaily
	case rrule.WEEKLY:
		r.Kind = KindWeekly
		for _, wd := range opt.Byweekday {
			day, ok := rruleWeekdays[wd.Day()]
			if !ok {
				return Rule{}, fmt.Errorf("%w: bad weekday in %q", models.ErrInvalidRecurrence, spec)
			}
			r.Weekdays = append(r.Weekdays, day)
		}
	default:
		return Rule{}, fmt.Errorf("%w: unsupported frequency in %q", models.ErrInvalidRecurrence, spec)
	}

	if len(opt.Byhour) != 1 || len(opt.Byminute) != 1 {
		return Rule{}, fmt.Errorf("%w: exactly one time of day required in %q", models.ErrInvalidRecurrence, spec)
	}
	r.Hour = opt.Byhour[0]
	r.Minute = opt.Byminute[0]

	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	return r, nil
}

// Describe renders the rule for user-facing messages.
func (r Rule) Describe() string {
	switch r.Kind {
	case KindOnce:
		return "once at " + r.At.UTC().Format("2006-01-02 15:04 MST")
	case KindDaily:
		return fmt.Sprintf("daily at %02d:%02d", r.Hour, r.Minute)
	case KindWeekly:
		days := append([]time.Weekday(nil), r.Weekdays...)
		sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
		names := make([]string, len(days))
		for i, d := range days {
			names[i] = d.String()[:3]
		}
		return fmt.Sprintf("weekly on %s at %02d:%02d", strings.Join(names, ", "), r.Hour, r.Minute)
	}
	return "unknown"
}
