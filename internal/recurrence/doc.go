// Package recurrence evaluates routine recurrence patterns.
//
// Membership (IsScheduledOn) and forward search (NextOccurrenceAfter,
// Occurrences) are both thin wrappers over one rule table in rules.go, so
// the two can never disagree about a date.
package recurrence
