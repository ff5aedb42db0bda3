package policy

import (
	"fmt"
	"golang-alerting/internal/model"
	"golang-alerting/pkg/utils"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	reHHMM     = regexp.MustCompile(`^(\d{2}):(\d{2})$`)
	locations  sync.Map // timezone name -> *time.Location
)

// LoadLocation resolves an IANA timezone, treating "" as UTC. Results are
// memoized.
func LoadLocation(tz string) (*time.Location, error) {
	if tz == "" || tz == "UTC" {
		return time.UTC, nil
	}
	if loc, ok := locations.Load(tz); ok {
		return loc.(*time.Location), nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	locations.Store(tz, loc)
	return loc, nil
}

// ParseCron parses a standard 5-field expression or a descriptor such as
// "@hourly". "@every" is rejected; fixed spacing is an interval schedule.
func ParseCron(expr string) (cron.Schedule, error) {
	if expr == "" {
		return nil, fmt.Errorf("cron expression required")
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	if _, ok := sched.(cron.ConstantDelaySchedule); ok {
		return nil, fmt.Errorf("invalid cron expression %q: @every is not supported, use an interval schedule", expr)
	}
	return sched, nil
}

// ParseHHMM parses a 24h "HH:MM" clock time.
func ParseHHMM(v string) (int, int, error) {
	m := reHHMM.FindStringSubmatch(v)
	if len(m) != 3 {
		return 0, 0, fmt.Errorf("invalid time %q (want HH:MM)", v)
	}
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	if hh > 23 || mm > 59 {
		return 0, 0, fmt.Errorf("invalid time %q (want HH:MM)", v)
	}
	return hh, mm, nil
}

type calendarResult struct {
	open   bool
	detail string
}

func closed(format string, args ...interface{}) calendarResult {
	return calendarResult{detail: fmt.Sprintf(format, args...)}
}

// checkCalendar answers whether now falls inside the schedule's occurrence
// and policy windows. A non-nil error means the definition itself is broken.
func checkCalendar(def model.ScheduleDefinition, pol model.SchedulePolicy, now time.Time) (calendarResult, error) {
	loc, err := LoadLocation(def.Timezone)
	if err != nil {
		return calendarResult{}, err
	}
	local := now.In(loc)

	if def.Config.StartAt != nil && now.Before(*def.Config.StartAt) {
		return closed("schedule starts at %s", FormatInstant(*def.Config.StartAt)), nil
	}
	if def.Config.EndAt != nil && now.After(*def.Config.EndAt) {
		return closed("schedule ended at %s", FormatInstant(*def.Config.EndAt)), nil
	}

	date := local.Format("2006-01-02")
	for _, excluded := range pol.ExcludedDates {
		if excluded == date {
			return closed("%s is an excluded date", date), nil
		}
	}
	weekday := int(local.Weekday())
	if utils.Contains(pol.ExcludedDays, weekday) {
		return closed("%s is an excluded day", local.Weekday()), nil
	}

	if len(pol.AllowedTimeWindows) > 0 {
		inside := false
		for _, w := range pol.AllowedTimeWindows {
			ok, err := windowContains(w, local)
			if err != nil {
				return calendarResult{}, err
			}
			if ok {
				inside = true
				break
			}
		}
		if !inside {
			return closed("%s is outside the allowed time windows", local.Format("15:04 MST")), nil
		}
	}

	switch def.Type {
	case model.ScheduleTypeInterval:
		if def.Config.IntervalMs <= 0 {
			return calendarResult{}, fmt.Errorf("interval schedule requires intervalMs > 0")
		}
		return calendarResult{open: true}, nil
	case model.ScheduleTypeCron:
		return cronOccurrence(def, local)
	case model.ScheduleTypeDaily:
		return dailyOccurrence(def, local)
	default:
		return calendarResult{}, fmt.Errorf("unknown schedule type %q", def.Type)
	}
}

// cronOccurrence is open when an occurrence lies in (now - tolerance, now].
func cronOccurrence(def model.ScheduleDefinition, local time.Time) (calendarResult, error) {
	sched, err := ParseCron(def.Config.Expression)
	if err != nil {
		return calendarResult{}, err
	}
	next := sched.Next(local.Add(-def.Tolerance()))
	if next.IsZero() || next.After(local) {
		return closed("no occurrence of %q within %s", def.Config.Expression, def.Tolerance()), nil
	}
	return calendarResult{open: true}, nil
}

// dailyOccurrence is open during [HH:MM, HH:MM + tolerance) on an allowed
// weekday. Yesterday's times are checked so tolerances may cross midnight.
func dailyOccurrence(def model.ScheduleDefinition, local time.Time) (calendarResult, error) {
	if len(def.Config.Times) == 0 {
		return calendarResult{}, fmt.Errorf("daily schedule requires at least one time")
	}
	tol := def.Tolerance()
	y, m, d := local.Date()
	for _, raw := range def.Config.Times {
		hh, mm, err := ParseHHMM(raw)
		if err != nil {
			return calendarResult{}, err
		}
		for _, offset := range []int{0, -1} {
			occ := time.Date(y, m, d+offset, hh, mm, 0, 0, local.Location())
			if len(def.Config.DaysOfWeek) > 0 && !utils.Contains(def.Config.DaysOfWeek, int(occ.Weekday())) {
				continue
			}
			if !local.Before(occ) && local.Before(occ.Add(tol)) {
				return calendarResult{open: true}, nil
			}
		}
	}
	return closed("no daily occurrence at %s", local.Format("15:04 MST")), nil
}

// windowContains checks minute of day against [start, end). end before start
// wraps past midnight and start == end covers the whole day.
func windowContains(w model.TimeWindow, local time.Time) (bool, error) {
	sh, sm, err := ParseHHMM(w.Start)
	if err != nil {
		return false, err
	}
	eh, em, err := ParseHHMM(w.End)
	if err != nil {
		return false, err
	}
	if len(w.Days) > 0 && !utils.Contains(w.Days, int(local.Weekday())) {
		return false, nil
	}
	start, end := sh*60+sm, eh*60+em
	minute := local.Hour()*60 + local.Minute()
	switch {
	case start == end:
		return true, nil
	case start < end:
		return minute >= start && minute < end, nil
	default:
		return minute >= start || minute < end, nil
	}
}
