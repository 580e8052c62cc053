// Package cycle predicts menstrual cycle dates and derives insights and
// wellness hints from a user's cycle and symptom history. Everything here
// is a pure function of its inputs and the supplied clock reading.
package cycle

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Defaults used when a user has no recorded history
const (
	DefaultCycleLength  = 28
	DefaultPeriodLength = 5
)

// Flow levels. A cycle records one of light, medium or heavy; a daily
// symptom log may also record spotting or none.
const (
	FlowLight    = "light"
	FlowMedium   = "medium"
	FlowHeavy    = "heavy"
	FlowSpotting = "spotting"
	FlowNone     = "none"
)

// Moods a symptom log may record
const (
	MoodHappy     = "happy"
	MoodSad       = "sad"
	MoodAngry     = "angry"
	MoodAnxious   = "anxious"
	MoodNeutral   = "neutral"
	MoodIrritable = "irritable"
)

const day = 24 * time.Hour

// ErrInvalidEntry reports a cycle or symptom log that fails validation
var ErrInvalidEntry = errors.New("invalid cycle entry")

var (
	cycleFlows = []string{FlowLight, FlowMedium, FlowHeavy}
	logFlows   = []string{FlowLight, FlowMedium, FlowHeavy, FlowSpotting, FlowNone}
	moods      = []string{MoodHappy, MoodSad, MoodAngry, MoodAnxious, MoodNeutral, MoodIrritable}
	cramps     = []string{"none", "mild", "severe"}
)

// Cycle is one recorded period start and the lengths attributed to it
type Cycle struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	StartDate    time.Time  `json:"startDate"`
	EndDate      *time.Time `json:"endDate,omitempty"`
	CycleLength  int        `json:"cycleLength"`
	PeriodLength int        `json:"periodLength"`
	FlowLevel    string     `json:"flowLevel"`
	Symptoms     []string   `json:"symptoms"`
	Notes        string     `json:"notes,omitempty"`
}

// NewCycle starts a cycle with the default lengths and no symptoms
func NewCycle(userID string, start time.Time, flow string) Cycle {
	return Cycle{
		UserID:       userID,
		StartDate:    start,
		CycleLength:  DefaultCycleLength,
		PeriodLength: DefaultPeriodLength,
		FlowLevel:    flow,
		Symptoms:     []string{},
	}
}

// Validate checks the fields a caller supplies when logging a cycle
func (c Cycle) Validate() error {
	switch {
	case c.UserID == "":
		return fmt.Errorf("userId is required: %w", ErrInvalidEntry)
	case c.StartDate.IsZero():
		return fmt.Errorf("startDate is required: %w", ErrInvalidEntry)
	case !slices.Contains(cycleFlows, c.FlowLevel):
		return fmt.Errorf("flowLevel %q is not one of %v: %w", c.FlowLevel, cycleFlows, ErrInvalidEntry)
	case c.CycleLength <= 0 || c.PeriodLength <= 0:
		return fmt.Errorf("cycle and period lengths must be positive: %w", ErrInvalidEntry)
	case c.EndDate != nil && c.EndDate.Before(c.StartDate):
		return fmt.Errorf("endDate precedes startDate: %w", ErrInvalidEntry)
	}
	return nil
}

// SymptomLog is one day's symptom entry
type SymptomLog struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Date      time.Time `json:"date"`
	Cramps    string    `json:"cramps"`
	Fatigue   int       `json:"fatigue"`
	Mood      string    `json:"mood"`
	Moods     []string  `json:"moods,omitempty"`
	Symptoms  []string  `json:"symptoms"`
	FlowLevel string    `json:"flowLevel"`
	Notes     string    `json:"notes,omitempty"`
}

// Validate checks the enumerated fields and the fatigue scale
func (l SymptomLog) Validate() error {
	switch {
	case l.UserID == "":
		return fmt.Errorf("userId is required: %w", ErrInvalidEntry)
	case l.Date.IsZero():
		return fmt.Errorf("date is required: %w", ErrInvalidEntry)
	case !slices.Contains(cramps, l.Cramps):
		return fmt.Errorf("cramps %q is not one of %v: %w", l.Cramps, cramps, ErrInvalidEntry)
	case l.Fatigue < 1 || l.Fatigue > 10:
		return fmt.Errorf("fatigue must be between 1 and 10: %w", ErrInvalidEntry)
	case !slices.Contains(moods, l.Mood):
		return fmt.Errorf("mood %q is not one of %v: %w", l.Mood, moods, ErrInvalidEntry)
	case len(l.Moods) > 2:
		return fmt.Errorf("at most two moods may be logged: %w", ErrInvalidEntry)
	case !slices.Contains(logFlows, l.FlowLevel):
		return fmt.Errorf("flowLevel %q is not one of %v: %w", l.FlowLevel, logFlows, ErrInvalidEntry)
	}
	for _, m := range l.Moods {
		if !slices.Contains(moods, m) {
			return fmt.Errorf("mood %q is not one of %v: %w", m, moods, ErrInvalidEntry)
		}
	}
	return nil
}

// Window is an inclusive date range
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// averageCycleLength is the mean recorded cycle length, or the default
// when there is no history
func averageCycleLength(cycles []Cycle) float64 {
	if len(cycles) == 0 {
		return DefaultCycleLength
	}
	sum := 0
	for _, c := range cycles {
		sum += c.CycleLength
	}
	return float64(sum) / float64(len(cycles))
}

// latest returns the cycle with the most recent start date
func latest(cycles []Cycle) Cycle {
	last := cycles[0]
	for _, c := range cycles[1:] {
		if c.StartDate.After(last.StartDate) {
			last = c
		}
	}
	return last
}

// addDays shifts t by the whole part of days, keeping wall-clock time
// across DST changes
func addDays(t time.Time, days float64) time.Time {
	return t.AddDate(0, 0, int(days))
}

// NextPeriod predicts the next period start: the latest cycle's start
// plus the mean cycle length, or now plus the default length without
// history
func NextPeriod(cycles []Cycle, now time.Time) time.Time {
	if len(cycles) == 0 {
		return now.Add(DefaultCycleLength * day)
	}
	return addDays(latest(cycles).StartDate, averageCycleLength(cycles))
}

// FertileWindow estimates the fertile window counted from today.
// Ovulation falls fourteen days before the cycle ends; the window opens
// five days before it and closes one day after.
func FertileWindow(cycles []Cycle, now time.Time) Window {
	ovulation := averageCycleLength(cycles) - 14
	return Window{
		Start: addDays(now, ovulation-5),
		End:   addDays(now, ovulation+1),
	}
}
