package service

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeReps(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want *int
	}{
		{"nil stays nil", nil, nil},
		{"integer", float64(12), intPtr(12)},
		{"rounds half up", 7.5, intPtr(8)},
		{"rounds down", 7.4, intPtr(7)},
		{"zero clamps to one", float64(0), intPtr(1)},
		{"negative clamps to one", float64(-4), intPtr(1)},
		{"huge clamps to max", 1e12, intPtr(math.MaxInt32)},
		{"to failure", "to failure", intPtr(15)},
		{"max reps", "Max reps", intPtr(15)},
		{"amrap phrase", "As many as possible", intPtr(15)},
		{"range takes first number", "8-12", intPtr(8)},
		{"number in text", "about 20 reps", intPtr(20)},
		{"text without number", "a few", intPtr(10)},
		{"boolean", true, intPtr(10)},
		{"object", map[string]any{"min": 5}, intPtr(10)},
		{"json number", json.Number("6"), intPtr(6)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeReps(tt.in))
		})
	}
}

func TestSanitizeSet_DurationOnly(t *testing.T) {
	var d SetDraft
	require.NoError(t, json.Unmarshal([]byte(`{"reps": null, "duration_minutes": 2.5}`), &d))

	set := SanitizeSet(d)
	assert.Nil(t, set.Reps)
	require.NotNil(t, set.DurationMinutes)
	assert.Equal(t, 2.5, *set.DurationMinutes)
}

func TestSanitizeSet_EmptyGetsDefaultReps(t *testing.T) {
	set := SanitizeSet(SetDraft{})
	require.NotNil(t, set.Reps)
	assert.Equal(t, 10, *set.Reps)
}

func TestSanitizeExercise_Defaults(t *testing.T) {
	var d ExerciseDraft
	require.NoError(t, json.Unmarshal([]byte(`{
		"exercise_id": "ex-1",
		"exercise_name": "Push-up",
		"rest_seconds": 0,
		"notes": "   ",
		"sets": [{"reps": "to failure", "weight": "20kg"}]
	}`), &d))

	ex := SanitizeExercise(d, 3)
	assert.Equal(t, "ex-1", ex.ExerciseID)
	assert.Equal(t, 3, ex.OrderIndex)
	assert.Equal(t, DefaultRestSeconds, ex.RestSeconds)
	assert.Equal(t, DefaultExerciseNotes, ex.Notes)
	require.Len(t, ex.Sets, 1)
	assert.Equal(t, 15, *ex.Sets[0].Reps)
	require.NotNil(t, ex.Sets[0].Weight)
	assert.Equal(t, 20.0, *ex.Sets[0].Weight)
}

func TestSanitizeExercise_KeepsProvidedValues(t *testing.T) {
	var d ExerciseDraft
	require.NoError(t, json.Unmarshal([]byte(`{
		"exercise_id": 42,
		"order_index": 1,
		"rest_seconds": "90",
		"notes": "Keep elbows tucked",
		"sets": []
	}`), &d))

	ex := SanitizeExercise(d, 5)
	assert.Equal(t, "42", ex.ExerciseID)
	assert.Equal(t, 1, ex.OrderIndex)
	assert.Equal(t, 90, ex.RestSeconds)
	assert.Equal(t, "Keep elbows tucked", ex.Notes)
	assert.Empty(t, ex.Sets)
}

func TestSanitizeRoutines_CopiesExplanation(t *testing.T) {
	drafts := []RoutineDraft{
		{Name: "A", Exercises: []ExerciseDraft{{ExerciseID: "x", Sets: []SetDraft{{Reps: float64(5)}}}}},
		{Name: "B", Explanation: "own"},
	}

	routines := SanitizeRoutines(drafts, "shared")
	require.Len(t, routines, 2)
	assert.Equal(t, "shared", routines[0].Explanation)
	assert.Equal(t, "own", routines[1].Explanation)
	assert.Equal(t, 0, routines[0].Exercises[0].OrderIndex)
	assert.Empty(t, routines[1].Exercises)
}

func TestFlexNumber_Unmarshal(t *testing.T) {
	tests := []struct {
		raw   string
		valid bool
		value float64
	}{
		{`12.5`, true, 12.5},
		{`"20kg"`, true, 20},
		{`"-3"`, true, -3},
		{`null`, false, 0},
		{`"bodyweight"`, false, 0},
		{`[1]`, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var n FlexNumber
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &n))
			assert.Equal(t, tt.valid, n.Valid)
			assert.Equal(t, tt.value, n.Value)
		})
	}
}
