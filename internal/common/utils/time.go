package utils

import "time"

// DayUTC returns midnight UTC of the calendar day t falls on in its own
// location. A 2024-01-15 23:30 EST timestamp maps to 2024-01-15, not the
// UTC date of the same instant.
func DayUTC(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Window is an inclusive range of calendar days
type Window struct {
	Start time.Time
	End   time.Time
}

// Days returns the number of calendar days the window covers
func (w Window) Days() int {
	return int(w.End.Sub(w.Start)/(24*time.Hour)) + 1
}

// DayWindows splits the days from start to end inclusive into consecutive
// windows of at most size days. Both bounds are reduced to DayUTC first.
// It returns nil when end falls before start; size below one is treated
// as one.
func DayWindows(start, end time.Time, size int) []Window {
	if size < 1 {
		size = 1
	}
	start, end = DayUTC(start), DayUTC(end)

	var windows []Window
	for from := start; !from.After(end); from = from.AddDate(0, 0, size) {
		to := from.AddDate(0, 0, size-1)
		if to.After(end) {
			to = end
		}
		windows = append(windows, Window{Start: from, End: to})
	}
	return windows
}
