package domain

import "time"

// Routine is the persisted header of a reusable workout template.
// Complete is false until every child row has been written; incomplete
// routines are invisible to reads and removed by the sweeper.
type Routine struct {
	ID          string    `bson:"_id" json:"id"`
	UserID      string    `bson:"userId" json:"userId"`
	Name        string    `bson:"name" json:"name"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	Complete    bool      `bson:"complete" json:"-"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt" json:"updatedAt"`
}

// RoutineExercise links a routine to one catalog exercise. Reps, Weight and
// DurationMinutes summarize the first set; Sets is the number of set rows.
type RoutineExercise struct {
	ID              string    `bson:"_id" json:"id"`
	RoutineID       string    `bson:"routineId" json:"routineId"`
	UserID          string    `bson:"userId" json:"-"` // Denormalized owner for scoped queries
	ExerciseID      string    `bson:"exerciseId" json:"exerciseId"`
	Sets            int       `bson:"sets" json:"sets"`
	Reps            int       `bson:"reps" json:"reps"`
	Weight          *float64  `bson:"weight,omitempty" json:"weight"`
	DurationMinutes *float64  `bson:"durationMinutes,omitempty" json:"durationMinutes"`
	OrderIndex      int       `bson:"orderIndex" json:"orderIndex"`
	RestSeconds     int       `bson:"restSeconds" json:"restSeconds"`
	Notes           string    `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt       time.Time `bson:"createdAt" json:"createdAt"`
}

// ExerciseSet is one set of a RoutineExercise. SetNumber runs 1..N per parent.
type ExerciseSet struct {
	ID                string    `bson:"_id" json:"id"`
	RoutineExerciseID string    `bson:"routineExerciseId" json:"routineExerciseId"`
	UserID            string    `bson:"userId" json:"-"`
	SetNumber         int       `bson:"setNumber" json:"setNumber"`
	Reps              *int      `bson:"reps,omitempty" json:"reps"`
	Weight            *float64  `bson:"weight,omitempty" json:"weight"`
	DurationMinutes   *float64  `bson:"durationMinutes,omitempty" json:"durationMinutes"`
	CreatedAt         time.Time `bson:"createdAt" json:"createdAt"`
}

// RoutineDetail is a routine with its exercises and set rows, as returned by reads.
type RoutineDetail struct {
	Routine
	Exercises []RoutineExerciseDetail `json:"exercises"`
}

type RoutineExerciseDetail struct {
	RoutineExercise
	Exercise *Exercise     `json:"exercise,omitempty"` // nil if the catalog entry was removed
	SetRows  []ExerciseSet `json:"setDetails"`
}
