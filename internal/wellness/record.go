package wellness

import (
	"fmt"
	"time"
)

const (
	TypeMeal     = "meal"
	TypeActivity = "activity"
	TypeSleep    = "sleep"
)

// Record is one observed wellness event. Records are never updated in
// place, only inserted and deleted.
type Record struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	Category  string    `json:"category,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Metrics   Metrics   `json:"metrics,omitempty"`
	Metadata  Metadata  `json:"metadata,omitempty"`
}

// Metrics is an open mapping of numeric fields. Only a few keys are
// conventional (calories, xpEarned, duration, quantity), the rest are
// carried through untouched.
type Metrics map[string]float64

// Metadata is advisory only and never used in aggregation.
type Metadata map[string]any

func (m Metrics) Calories() float64 { return m["calories"] }
func (m Metrics) XPEarned() float64 { return m["xpEarned"] }
func (m Metrics) Duration() float64 { return m["duration"] }
func (m Metrics) Quantity() float64 { return m["quantity"] }

// DayOf truncates t to the start of its UTC calendar day. All day
// bucketing (aggregation and the migration fingerprint) uses UTC.
func DayOf(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// Fingerprint is the heuristic duplicate key used by the migration
// engine: same user, same type, same UTC day, same calorie total. Two
// genuinely distinct same-day same-calorie events of the same type
// collapse into one, accepted false positive.
type Fingerprint struct {
	UserID   string
	Type     string
	Day      time.Time
	Calories float64
}

func (r *Record) Fingerprint() Fingerprint {
	return Fingerprint{
		UserID:   r.UserID,
		Type:     r.Type,
		Day:      DayOf(r.Timestamp),
		Calories: r.Metrics.Calories(),
	}
}

func (f Fingerprint) String() string {
	return fmt.Sprintf(
		"%s|%s|%s|%g",
		f.UserID, f.Type, f.Day.Format(time.DateOnly), f.Calories,
	)
}

// SummaryTotals are the accumulated numeric totals of one calendar day.
type SummaryTotals struct {
	Steps       float64 `json:"steps"`
	CaloriesIn  float64 `json:"caloriesIn"`
	CaloriesOut float64 `json:"caloriesOut"`
	NetCalories float64 `json:"netCalories"`
	SleepHours  float64 `json:"sleepHours"`
	XP          float64 `json:"xp"`
}

// DailySummary is derived on request, never stored as the source of
// truth. Records are ordered by timestamp descending.
type DailySummary struct {
	Date string `json:"date"`
	SummaryTotals
	Records []Record `json:"records"`
}

// DailyTotals is one row of the precomputed daily nutrition snapshot.
type DailyTotals struct {
	Date   time.Time     `json:"date"`
	UserID string        `json:"userId"`
	Totals SummaryTotals `json:"totals"`
}

// MigrationOutcome is the result envelope of one bulk ingestion call.
// The batch itself never fails, even when every record did.
type MigrationOutcome struct {
	TotalProcessed    int      `json:"totalProcessed"`
	TotalInserted     int      `json:"totalInserted"`
	DuplicatesSkipped int      `json:"duplicatesSkipped"`
	IDCollisions      int      `json:"idCollisions"`
	Errors            []string `json:"errors"`
}
