package strategy

import "time"

// Session clock helpers. All computations are done on UTC wall time with
// explicit daylight-saving rules, so no tzdata is needed at runtime.

// nthWeekday returns the n-th occurrence of weekday in the given month, UTC.
func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	d := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(weekday) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset+(n-1)*7)
}

// lastWeekday returns the final occurrence of weekday in the given month, UTC.
func lastWeekday(year int, month time.Month, weekday time.Weekday) time.Time {
	d := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	offset := (int(d.Weekday()) - int(weekday) + 7) % 7
	return d.AddDate(0, 0, -offset)
}

// usDaylightSaving reports whether US DST is in effect on t's UTC date:
// second Sunday in March through the first Sunday in November.
func usDaylightSaving(t time.Time) bool {
	t = t.UTC()
	start := nthWeekday(t.Year(), time.March, time.Sunday, 2)
	end := nthWeekday(t.Year(), time.November, time.Sunday, 1)
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return !day.Before(start) && day.Before(end)
}

// NewYorkOpenUTC returns the NYSE cash open (09:30 New York) for t's UTC
// date: 13:30 UTC during US daylight saving, 14:30 UTC otherwise.
func NewYorkOpenUTC(t time.Time) time.Time {
	t = t.UTC()
	hour, minute := 14, 30
	if usDaylightSaving(t) {
		hour, minute = 13, 30
	}
	return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, time.UTC)
}

// ukDaylightSaving reports whether UK summer time is in effect: last
// Sunday in March through the last Sunday in October.
func ukDaylightSaving(t time.Time) bool {
	t = t.UTC()
	start := lastWeekday(t.Year(), time.March, time.Sunday)
	end := lastWeekday(t.Year(), time.October, time.Sunday)
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return !day.Before(start) && day.Before(end)
}

// LondonTime shifts t to London wall-clock time.
func LondonTime(t time.Time) time.Time {
	t = t.UTC()
	if ukDaylightSaving(t) {
		return t.Add(time.Hour)
	}
	return t
}

// LondonDateKey returns the London-local calendar date of t, the key
// used for per-day strategy state.
func LondonDateKey(t time.Time) string {
	return LondonTime(t).Format("2006-01-02")
}

// londonMinute returns minutes past London-local midnight.
func londonMinute(t time.Time) int {
	lt := LondonTime(t)
	return lt.Hour()*60 + lt.Minute()
}

func isWeekday(t time.Time) bool {
	wd := t.UTC().Weekday()
	return wd != time.Saturday && wd != time.Sunday
}
