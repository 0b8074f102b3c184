package counter

import "routined/internal/calendar"

// RolloverResult is what a rollover wants persisted.
type RolloverResult struct {
	// Due is false when the last reset already happened today; nothing
	// else is set then.
	Due bool
	// Entries are yesterday's values of daily counters that had none.
	Entries []Entry
	// Reset are the daily counters set back to zero (only changed ones).
	Reset []Counter
	// LastReset is the new lastCounterReset marker.
	LastReset calendar.Date
}

// Rollover computes the day change for daily counters.
//
// If lastReset == today it is a no-op. A zero lastReset (first run) only
// records today. Otherwise every daily counter active yesterday without an
// entry for yesterday gets one holding its current value, and every active
// daily counter is reset to zero.
func Rollover(counters []Counter, yesterdayEntries []Entry, lastReset, today calendar.Date) RolloverResult {
	if lastReset == today {
		return RolloverResult{}
	}
	res := RolloverResult{Due: true, LastReset: today}
	if lastReset.IsZero() {
		return res
	}
	yesterday := today.AddDays(-1)
	have := make(map[string]bool, len(yesterdayEntries))
	for _, e := range yesterdayEntries {
		if e.Date == yesterday {
			have[e.CounterID] = true
		}
	}
	for _, c := range counters {
		if c.Type != Daily {
			continue
		}
		if c.ActiveOn(yesterday) && !have[c.ID] {
			res.Entries = append(res.Entries, Entry{
				ID:        NewID(),
				CounterID: c.ID,
				Date:      yesterday,
				Value:     c.Value,
				Name:      c.Name,
			})
		}
		if c.ActiveOn(today) && c.Value != 0 {
			c.Value = 0
			res.Reset = append(res.Reset, c)
		}
	}
	return res
}
