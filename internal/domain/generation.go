package domain

// GeneratedRoutine is a routine proposed by the model after sanitization.
// It lives only between parsing and the response; saving goes through the
// routine endpoint.
type GeneratedRoutine struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Exercises   []GeneratedExercise `json:"exercises"`
	Explanation string              `json:"explanation,omitempty"`
}

type GeneratedExercise struct {
	ExerciseID   string         `json:"exercise_id"`
	ExerciseName string         `json:"exercise_name,omitempty"`
	OrderIndex   int            `json:"order_index"`
	RestSeconds  int            `json:"rest_seconds"`
	Notes        string         `json:"notes"`
	Sets         []GeneratedSet `json:"sets"`
}

// GeneratedSet carries either a rep count or a duration; Reps is nil for timed sets.
type GeneratedSet struct {
	Reps            *int     `json:"reps"`
	Weight          *float64 `json:"weight"`
	DurationMinutes *float64 `json:"duration_minutes"`
}
