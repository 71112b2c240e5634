// Package stats computes workout statistics for a single user.
package stats

import (
	"slices"
	"time"
)

// TrailingDays is the length of the per-day series in Result.Last7Days.
const TrailingDays = 7

// Record is the part of a workout the aggregator reads.
type Record struct {
	ExerciseType    string
	DurationMinutes int
	CaloriesBurned  int
	Date            time.Time
}

// DayBucket aggregates the workouts of one calendar day.
type DayBucket struct {
	Date     Date `json:"date"`
	Calories int  `json:"calories"`
	Duration int  `json:"duration"`
	Count    int  `json:"count"`
}

// Result is the statistics snapshot returned by Compute.
type Result struct {
	TotalWorkouts  int            `json:"totalWorkouts"`
	TotalCalories  int            `json:"totalCalories"`
	TotalDuration  int            `json:"totalDuration"`
	Streak         int            `json:"streak"`
	WorkoutsByType map[string]int `json:"workoutsByType"`
	Last7Days      []DayBucket    `json:"last7Days"`
}

// Aggregator maps workout timestamps to calendar days in a fixed location.
// It holds no mutable state and is safe for concurrent use.
type Aggregator struct {
	loc *time.Location
}

// NewAggregator returns an Aggregator for loc. A nil loc means UTC.
func NewAggregator(loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{loc: loc}
}

// Location returns the location used for calendar-day normalization.
func (a *Aggregator) Location() *time.Location {
	return a.loc
}

// Today returns the calendar day of now in the aggregator's location.
func (a *Aggregator) Today(now time.Time) Date {
	return DateOf(now, a.loc)
}

// Compute aggregates records, all owned by one user, relative to today.
func Compute(records []Record, today Date) Result {
	return NewAggregator(time.UTC).Compute(records, today)
}

// Compute aggregates records, all owned by one user, relative to today.
func (a *Aggregator) Compute(records []Record, today Date) Result {
	res := Result{
		WorkoutsByType: make(map[string]int),
		Last7Days:      make([]DayBucket, TrailingDays),
	}
	for i := range res.Last7Days {
		res.Last7Days[i].Date = today.AddDays(i - (TrailingDays - 1))
	}

	active := make(map[Date]struct{}, len(records))
	for _, r := range records {
		res.TotalWorkouts++
		res.TotalCalories += r.CaloriesBurned
		res.TotalDuration += r.DurationMinutes
		res.WorkoutsByType[r.ExerciseType]++

		day := DateOf(r.Date, a.loc)
		active[day] = struct{}{}
		for i := range res.Last7Days {
			if res.Last7Days[i].Date == day {
				res.Last7Days[i].Calories += r.CaloriesBurned
				res.Last7Days[i].Duration += r.DurationMinutes
				res.Last7Days[i].Count++
				break
			}
		}
	}

	res.Streak = streak(active, today)
	return res
}

// streak walks the distinct active days newest first, matching the i-th day
// against today-i. A day after today occupies index 0 and so ends the run.
func streak(active map[Date]struct{}, today Date) int {
	days := make([]Date, 0, len(active))
	for d := range active {
		days = append(days, d)
	}
	slices.SortFunc(days, func(a, b Date) int { return b.Compare(a) })

	n := 0
	for i, d := range days {
		if d != today.AddDays(-i) {
			break
		}
		n++
	}
	return n
}
