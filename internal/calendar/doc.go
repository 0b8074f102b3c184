// Package calendar provides naive calendar-date arithmetic.
//
// Dates carry no zone and no time of day. They are combined with a Clock
// and a *time.Location only at the edge, when an instant is needed for a
// timer.
package calendar
