// Package calories turns the flat calorie-entry list returned by the coach
// backend into per-day totals for the dashboard.
package calories

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Entry is one recorded meal analysis as returned by the coach backend.
// estimated_calories arrives as a number, a numeric string, or nested under
// food_analysis depending on the analysis version, so both fields are kept
// raw and resolved lazily.
type Entry struct {
	ID                string          `json:"id"`
	CreatedAt         string          `json:"created_at"`
	EstimatedCalories json.RawMessage `json:"estimated_calories,omitempty"`
	FoodAnalysis      *FoodAnalysis   `json:"food_analysis,omitempty"`
}

type FoodAnalysis struct {
	EstimatedCalories json.RawMessage `json:"estimated_calories,omitempty"`
}

// Bucket is the per-calendar-day rollup of entries.
type Bucket struct {
	Date     string  `json:"date"`
	Calories float64 `json:"calories"`
	Entries  int     `json:"entries"`
}

// Summary is the aggregation result. Total covers every entry with a
// resolvable calorie value, including entries that never land in a bucket
// because their created_at is missing or unparseable. That mirrors the
// dashboard the backend serves and is deliberate.
type Summary struct {
	Buckets []Bucket `json:"buckets"`
	Total   float64  `json:"total"`
}

// createdAtLayouts covers the timestamp shapes the coach backend has been
// observed to emit.
var createdAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Aggregate groups entries into day buckets keyed by the date portion of
// created_at in loc, sorted most recent day first. Output is deterministic
// regardless of input order. Values are not rounded here; rounding is a
// presentation concern.
func Aggregate(entries []Entry, loc *time.Location) Summary {
	if loc == nil {
		loc = time.Local
	}

	byDay := make(map[string]*Bucket)
	var total float64

	for _, e := range entries {
		cal := e.resolveCalories()
		total += cal

		if cal <= 0 {
			continue
		}
		ts, ok := parseCreatedAt(e.CreatedAt)
		if !ok {
			continue
		}
		key := ts.In(loc).Format("2006-01-02")
		b, exists := byDay[key]
		if !exists {
			b = &Bucket{Date: key}
			byDay[key] = b
		}
		b.Calories += cal
		b.Entries++
	}

	buckets := make([]Bucket, 0, len(byDay))
	for _, b := range byDay {
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Date > buckets[j].Date
	})

	return Summary{Buckets: buckets, Total: total}
}

// Round is the presentation-time rounding applied to calorie sums.
func Round(v float64) int {
	return int(math.Round(v))
}

// resolveCalories mirrors the fallback chain the dashboard uses: the
// top-level value first, then the nested food_analysis value, with numeric
// strings accepted and anything else coerced to 0.
func (e Entry) resolveCalories() float64 {
	if v, ok := numericValue(e.EstimatedCalories); ok && v != 0 {
		return v
	}
	if e.FoodAnalysis != nil {
		if v, ok := numericValue(e.FoodAnalysis.EstimatedCalories); ok {
			return v
		}
	}
	return 0
}

func numericValue(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

func parseCreatedAt(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
