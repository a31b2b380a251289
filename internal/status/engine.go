// Package status resolves a center's operating state at an instant from its
// weekly hour rules and holiday exceptions.
package status

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // operating timezone must resolve without system zoneinfo

	"github.com/rotisserie/eris"

	"github.com/sells-group/centerrank/internal/config"
	"github.com/sells-group/centerrank/internal/model"
)

// Scores per resolved status.
const (
	scoreOpen        = 100
	scoreClosingSoon = 80
	scoreClosed      = 60
	scoreNoInfo      = 50
	scoreUnavailable = 0
)

const minutesPerDay = 24 * 60

// Defaults used when the config leaves a field unset.
const (
	DefaultClosingSoonMinutes = 60
	DefaultLookaheadDays      = 14
)

// Result is the resolved status of one center.
type Result struct {
	Score  int
	Detail model.OperatingDetail
}

// Engine evaluates operating status in a fixed timezone. It is safe for
// concurrent use.
type Engine struct {
	loc         *time.Location
	closingSoon int
	lookahead   int
}

// NewEngine builds an Engine from the operating config.
func NewEngine(cfg config.OperatingConfig) (*Engine, error) {
	tz := cfg.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, eris.Wrapf(err, "status: load timezone %q", tz)
	}

	e := &Engine{
		loc:         loc,
		closingSoon: cfg.ClosingSoonMinutes,
		lookahead:   cfg.LookaheadDays,
	}
	if e.closingSoon <= 0 {
		e.closingSoon = DefaultClosingSoonMinutes
	}
	if e.lookahead <= 0 {
		e.lookahead = DefaultLookaheadDays
	}
	return e, nil
}

// Location returns the engine's operating timezone.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// Evaluate resolves the center's status at the given instant. The first
// matching rule wins: no hours, holiday exception, closed weekday, missing
// times, inside hours, otherwise closed.
func (e *Engine) Evaluate(c *model.Center, at time.Time) Result {
	now := at.In(e.loc)

	if len(c.Hours) == 0 {
		return noInfo("no operating hours on record")
	}

	holidays := holidayIndex(c.Holidays)

	if h, ok := holidays[now.Format(model.DateLayout)]; ok {
		next := e.nextOpen(c.Hours, holidays, now)
		if !h.Regular {
			return Result{
				Score: scoreUnavailable,
				Detail: model.OperatingDetail{
					Status:   model.StatusTempClosed,
					Message:  withReopen(labelled("temporarily closed", h.Name), next, now),
					NextOpen: next,
				},
			}
		}
		return Result{
			Score: scoreUnavailable,
			Detail: model.OperatingDetail{
				Status:   model.StatusHoliday,
				Message:  withReopen(labelled("closed for holiday", h.Name), next, now),
				NextOpen: next,
			},
		}
	}

	rule := ruleFor(c.Hours, now.Weekday())
	if rule == nil || !rule.IsOpen {
		next := e.nextOpen(c.Hours, holidays, now)
		return Result{
			Score: scoreUnavailable,
			Detail: model.OperatingDetail{
				Status:   model.StatusHoliday,
				Message:  withReopen("closed today", next, now),
				NextOpen: next,
			},
		}
	}

	if !rule.HasTimes() {
		return noInfo("hours not recorded for today")
	}
	open, err := parseClock(rule.OpenTime)
	if err != nil {
		return noInfo("hours not recorded for today")
	}
	closeAt, err := parseClock(rule.CloseTime)
	if err != nil {
		return noInfo("hours not recorded for today")
	}

	if remaining, inside := minutesUntilClose(open, closeAt, now.Hour()*60+now.Minute()); inside {
		if remaining <= e.closingSoon {
			return Result{
				Score: scoreClosingSoon,
				Detail: model.OperatingDetail{
					Status:  model.StatusClosingSoon,
					Message: fmt.Sprintf("closing soon at %s (%d min left)", formatClock(closeAt), remaining),
				},
			}
		}
		msg := "open until " + formatClock(closeAt)
		if open == closeAt {
			msg = "open 24 hours"
		}
		return Result{
			Score: scoreOpen,
			Detail: model.OperatingDetail{
				Status:  model.StatusOpen,
				Message: msg,
			},
		}
	}

	next := e.nextOpen(c.Hours, holidays, now)
	return Result{
		Score: scoreClosed,
		Detail: model.OperatingDetail{
			Status:   model.StatusClosed,
			Message:  withReopen("closed", next, now),
			NextOpen: next,
		},
	}
}

// nextOpen scans today (only if opening is still ahead) and up to lookahead
// following days for the first day with an open rule, recorded open time and
// no holiday.
func (e *Engine) nextOpen(hours []model.OperatingHourRule, holidays map[string]model.HolidayException, now time.Time) *model.NextOpen {
	nowMin := now.Hour()*60 + now.Minute()
	for offset := 0; offset <= e.lookahead; offset++ {
		day := now.AddDate(0, 0, offset)
		date := day.Format(model.DateLayout)
		if _, closed := holidays[date]; closed {
			continue
		}
		rule := ruleFor(hours, day.Weekday())
		if rule == nil || !rule.IsOpen || rule.OpenTime == "" {
			continue
		}
		open, err := parseClock(rule.OpenTime)
		if err != nil {
			continue
		}
		if offset == 0 && nowMin >= open {
			continue
		}
		return &model.NextOpen{
			Date:     date,
			Weekday:  day.Weekday().String(),
			OpenTime: formatClock(open),
		}
	}
	return nil
}

func noInfo(msg string) Result {
	return Result{
		Score: scoreNoInfo,
		Detail: model.OperatingDetail{
			Status:  model.StatusNoInfo,
			Message: msg,
		},
	}
}

// minutesUntilClose reports whether now lies in [open, close) and, if so, the
// minutes left. A close earlier than open wraps past midnight; equal open and
// close means round-the-clock.
func minutesUntilClose(open, closeAt, now int) (int, bool) {
	switch {
	case open == closeAt:
		return minutesPerDay, true
	case open < closeAt:
		if now >= open && now < closeAt {
			return closeAt - now, true
		}
	default:
		if now >= open {
			return closeAt + minutesPerDay - now, true
		}
		if now < closeAt {
			return closeAt - now, true
		}
	}
	return 0, false
}

// ruleFor returns the first open rule for the weekday, falling back to the
// first rule of any kind. DayOfWeek is 1-7, Monday first.
func ruleFor(hours []model.OperatingHourRule, wd time.Weekday) *model.OperatingHourRule {
	dow := isoWeekday(wd)
	var fallback *model.OperatingHourRule
	for i := range hours {
		if hours[i].DayOfWeek != dow {
			continue
		}
		if hours[i].IsOpen {
			return &hours[i]
		}
		if fallback == nil {
			fallback = &hours[i]
		}
	}
	return fallback
}

func isoWeekday(wd time.Weekday) int {
	return (int(wd)+6)%7 + 1
}

func holidayIndex(hs []model.HolidayException) map[string]model.HolidayException {
	idx := make(map[string]model.HolidayException, len(hs))
	for _, h := range hs {
		date := strings.TrimSpace(h.Date)
		if len(date) > len(model.DateLayout) {
			date = date[:len(model.DateLayout)]
		}
		// An ad-hoc closure outranks a scheduled holiday on the same date.
		if prev, ok := idx[date]; ok && !prev.Regular {
			continue
		}
		idx[date] = h
	}
	return idx
}

// parseClock converts "HH:MM" (or "HH:MM:SS") to minutes past midnight.
// "24:00" is accepted as end of day.
func parseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "24:00" || s == "24:00:00" {
		return minutesPerDay, nil
	}
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour()*60 + t.Minute(), nil
		}
	}
	return 0, eris.Errorf("status: invalid clock time %q", s)
}

func formatClock(m int) string {
	if m >= minutesPerDay {
		return "24:00"
	}
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

func labelled(prefix, name string) string {
	if name == "" {
		return prefix
	}
	return fmt.Sprintf("%s (%s)", prefix, name)
}

func withReopen(msg string, next *model.NextOpen, now time.Time) string {
	if next == nil {
		return msg
	}
	day := next.Weekday
	switch next.Date {
	case now.Format(model.DateLayout):
		day = "today"
	case now.AddDate(0, 0, 1).Format(model.DateLayout):
		day = "tomorrow"
	}
	return fmt.Sprintf("%s, reopens %s %s", msg, day, next.OpenTime)
}
