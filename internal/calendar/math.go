package calendar

import "time"

// Weekday returns the day of the week of d.
func (d Date) Weekday() time.Weekday {
	// 1970-01-01 was a Thursday.
	return time.Weekday(floorMod(d.dayNumber()+4, 7))
}

// IsLastDayOfMonth reports whether d is the final day of its month.
func (d Date) IsLastDayOfMonth() bool {
	return d.d == DaysIn(d.y, d.m)
}

// AddDays returns d shifted by n days (n may be negative).
func (d Date) AddDays(n int) Date {
	return fromDayNumber(d.dayNumber() + n)
}

// AddMonths returns d shifted by n calendar months. The day is clamped to the
// last valid day of the target month instead of overflowing into the next
// one: Jan 31 + 1 month is Feb 28 (or 29).
func (d Date) AddMonths(n int) Date {
	idx := d.y*12 + int(d.m) - 1 + n
	y := floorDiv(idx, 12)
	m := time.Month(floorMod(idx, 12) + 1)
	day := d.d
	if last := DaysIn(y, m); day > last {
		day = last
	}
	return Date{y: y, m: m, d: day}
}

// LastOfMonth returns the last day of d's month.
func (d Date) LastOfMonth() Date {
	return Date{y: d.y, m: d.m, d: DaysIn(d.y, d.m)}
}

// FirstOfMonth returns the first day of d's month.
func (d Date) FirstOfMonth() Date {
	return Date{y: d.y, m: d.m, d: 1}
}

// DaysBetween returns b - a in whole days.
func DaysBetween(a, b Date) int {
	return b.dayNumber() - a.dayNumber()
}

// MonthsBetween returns the calendar month count from a to b, ignoring the
// day of month: 2024-01-31 -> 2024-02-01 is one month.
func MonthsBetween(a, b Date) int {
	return (b.y-a.y)*12 + int(b.m) - int(a.m)
}

// DaysIn returns the number of days in month m of year y.
func DaysIn(y int, m time.Month) int {
	switch m {
	case time.February:
		if isLeap(y) {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	default:
		return 31
	}
}

func isLeap(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}

// dayNumber returns days since 1970-01-01 (civil-from-days inverse).
func (d Date) dayNumber() int {
	y := d.y
	m := int(d.m)
	if m <= 2 {
		y--
	}
	era := floorDiv(y, 400)
	yoe := y - era*400
	mp := (m + 9) % 12
	doy := (153*mp+2)/5 + d.d - 1
	doe := yoe*365 + yoe/4 - yoe/100 + doy
	return era*146097 + doe - 719468
}

func fromDayNumber(z int) Date {
	z += 719468
	era := floorDiv(z, 146097)
	doe := z - era*146097
	yoe := (doe - doe/1460 + doe/36524 - doe/146096) / 365
	y := yoe + era*400
	doy := doe - (365*yoe + yoe/4 - yoe/100)
	mp := (5*doy + 2) / 153
	day := doy - (153*mp+2)/5 + 1
	m := mp + 3
	if m > 12 {
		m -= 12
	}
	if m <= 2 {
		y++
	}
	return Date{y: y, m: time.Month(m), d: day}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}

// FloorDiv is integer division rounding toward negative infinity.
func FloorDiv(a, b int) int { return floorDiv(a, b) }

// FloorMod is the non-negative remainder matching FloorDiv.
func FloorMod(a, b int) int { return floorMod(a, b) }
