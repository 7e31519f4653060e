package model

import "time"

// ResolvedWorkout is a ProvisionalWorkout whose every mention has been bound
// to a catalog exercise. This is the pipeline's terminal output; storage-level
// persistence happens outside the core.
type ResolvedWorkout struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Notes  string          `json:"notes,omitempty"`
	Date   time.Time       `json:"date"`
	Blocks []ResolvedBlock `json:"blocks"`
}

type ResolvedBlock struct {
	Label     string             `json:"label"`
	Notes     string             `json:"notes,omitempty"`
	Exercises []ResolvedExercise `json:"exercises"`
}

// ResolvedExercise is a mention bound to a catalog identifier. The original
// free-text name is kept for audit and display.
type ResolvedExercise struct {
	InstanceID   string           `json:"instance_id"`
	ExerciseID   string           `json:"exercise_id"`
	FreeTextName string           `json:"original_name"`
	OrderInBlock int              `json:"order_in_block"`
	Prescription string           `json:"prescription,omitempty"`
	Notes        string           `json:"notes,omitempty"`
	Sets         []ProvisionalSet `json:"sets"`
}
