package service

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"alcyxob/routine-coach/internal/domain"
)

const (
	DefaultExerciseNotes = "Focus on proper form and controlled movement"
	DefaultRestSeconds   = 60

	// Reps used when the model answers with "to failure" or similar.
	failureRepsFallback = 15
	// Reps used for any other text without a number.
	textRepsFallback = 10
	// Summary reps of a routine exercise whose first set has none.
	summaryRepsFallback = 10

	maxReps = math.MaxInt32
)

var (
	firstIntegerRun = regexp.MustCompile(`\d+`)
	leadingNumber   = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	failurePhrases  = []string{"failure", "max", "as many as possible"}
)

// FlexNumber decodes a JSON number, a numeric string such as "20kg", or null.
// Anything else decodes to an invalid value instead of failing the document.
type FlexNumber struct {
	Value float64
	Valid bool
}

func (n *FlexNumber) UnmarshalJSON(b []byte) error {
	*n = FlexNumber{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}

	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*n = FlexNumber{Value: f, Valid: true}
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if m := leadingNumber.FindString(s); m != "" {
			if f, err := strconv.ParseFloat(m, 64); err == nil {
				*n = FlexNumber{Value: f, Valid: true}
			}
		}
	}
	return nil
}

// Ptr returns the value as a pointer, nil when invalid.
func (n FlexNumber) Ptr() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// FlexString decodes a JSON string or number into a string. Other JSON types decode to "".
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	*s = ""
	b = bytes.TrimSpace(b)

	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = FlexString(strings.TrimSpace(str))
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(b, &num); err == nil {
		*s = FlexString(num.String())
	}
	return nil
}

// SetDraft is a set as emitted by the model or posted by a client, before normalization.
type SetDraft struct {
	Reps            any        `json:"reps"`
	Weight          FlexNumber `json:"weight"`
	DurationMinutes FlexNumber `json:"duration_minutes"`
}

// ExerciseDraft is an exercise before normalization.
type ExerciseDraft struct {
	ExerciseID   FlexString `json:"exercise_id"`
	ExerciseName FlexString `json:"exercise_name"`
	OrderIndex   FlexNumber `json:"order_index"`
	RestSeconds  FlexNumber `json:"rest_seconds"`
	Notes        FlexString `json:"notes"`
	Sets         []SetDraft `json:"sets"`
}

// RoutineDraft is a routine before normalization.
type RoutineDraft struct {
	Name        FlexString      `json:"name"`
	Description FlexString      `json:"description"`
	Exercises   []ExerciseDraft `json:"exercises"`
	Explanation FlexString      `json:"explanation"`
}

// SanitizeReps turns whatever the model put in a reps field into a positive
// integer, or nil for a duration-based set.
func SanitizeReps(reps any) *int {
	switch v := reps.(type) {
	case nil:
		return nil
	case float64:
		return intPtr(clampReps(v))
	case float32:
		return intPtr(clampReps(float64(v)))
	case int:
		return intPtr(clampReps(float64(v)))
	case int64:
		return intPtr(clampReps(float64(v)))
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return intPtr(textRepsFallback)
		}
		return intPtr(clampReps(f))
	case string:
		lower := strings.ToLower(v)
		for _, phrase := range failurePhrases {
			if strings.Contains(lower, phrase) {
				return intPtr(failureRepsFallback)
			}
		}
		if m := firstIntegerRun.FindString(v); m != "" {
			n, err := strconv.Atoi(m)
			if err != nil {
				n = maxReps // only fails on overflow
			}
			return intPtr(clampReps(float64(n)))
		}
		return intPtr(textRepsFallback)
	default:
		return intPtr(textRepsFallback)
	}
}

// clampReps rounds half up and clamps to [1, maxReps].
func clampReps(f float64) int {
	r := math.Floor(f + 0.5)
	if r < 1 {
		return 1
	}
	if r > maxReps {
		return maxReps
	}
	return int(r)
}

// SanitizeSet normalizes one set. A set that ends up with neither reps nor a
// duration gets the text fallback reps so it stays meaningful.
func SanitizeSet(d SetDraft) domain.GeneratedSet {
	set := domain.GeneratedSet{
		Reps:            SanitizeReps(d.Reps),
		Weight:          d.Weight.Ptr(),
		DurationMinutes: d.DurationMinutes.Ptr(),
	}
	if set.Reps == nil && set.DurationMinutes == nil {
		set.Reps = intPtr(textRepsFallback)
	}
	return set
}

// SanitizeExercise fills notes and rest defaults and normalizes every set.
// position is used as order_index when the draft has none.
func SanitizeExercise(d ExerciseDraft, position int) domain.GeneratedExercise {
	ex := domain.GeneratedExercise{
		ExerciseID:   string(d.ExerciseID),
		ExerciseName: string(d.ExerciseName),
		OrderIndex:   position,
		RestSeconds:  DefaultRestSeconds,
		Notes:        strings.TrimSpace(string(d.Notes)),
		Sets:         make([]domain.GeneratedSet, 0, len(d.Sets)),
	}
	if d.OrderIndex.Valid && d.OrderIndex.Value >= 0 {
		ex.OrderIndex = int(math.Round(d.OrderIndex.Value))
	}
	if d.RestSeconds.Valid && d.RestSeconds.Value > 0 {
		ex.RestSeconds = int(math.Round(d.RestSeconds.Value))
	}
	if ex.Notes == "" {
		ex.Notes = DefaultExerciseNotes
	}
	for _, s := range d.Sets {
		ex.Sets = append(ex.Sets, SanitizeSet(s))
	}
	return ex
}

// SanitizeRoutines normalizes parsed routines. explanation is copied onto
// routines that carry none of their own.
func SanitizeRoutines(drafts []RoutineDraft, explanation string) []domain.GeneratedRoutine {
	routines := make([]domain.GeneratedRoutine, 0, len(drafts))
	for _, d := range drafts {
		r := domain.GeneratedRoutine{
			Name:        string(d.Name),
			Description: string(d.Description),
			Exercises:   make([]domain.GeneratedExercise, 0, len(d.Exercises)),
			Explanation: string(d.Explanation),
		}
		if r.Explanation == "" {
			r.Explanation = explanation
		}
		for i, ex := range d.Exercises {
			r.Exercises = append(r.Exercises, SanitizeExercise(ex, i))
		}
		routines = append(routines, r)
	}
	return routines
}

func intPtr(v int) *int {
	return &v
}
