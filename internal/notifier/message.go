package notifier

import (
	"fmt"
	"hash/fnv"
	"time"
)

// ReminderText renders "In N minutes: <title>" (or hours when advance is a
// whole number of hours). A zero advance reads "In 10 minutes".
func ReminderText(title string, advance time.Duration) string {
	if advance <= 0 {
		advance = 10 * time.Minute
	}
	if advance >= time.Hour && advance%time.Hour == 0 {
		return fmt.Sprintf("In %s: %s", plural(int(advance/time.Hour), "hour"), title)
	}
	mins := int(advance / time.Minute)
	if mins < 1 {
		mins = 1
	}
	return fmt.Sprintf("In %s: %s", plural(mins, "minute"), title)
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// ReminderKey is the dedup key of a task occurrence.
func ReminderKey(taskID, occurrence string) string {
	return "task-" + taskID + "-" + occurrence
}

func dedupKey(m Message) string {
	if m.Key != "" {
		return m.Key
	}
	if m.Text == "" {
		return ""
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(m.TaskID))
	_, _ = h.Write([]byte("|"))
	_, _ = h.Write([]byte(m.Text))
	return fmt.Sprintf("%x", h.Sum64())
}
