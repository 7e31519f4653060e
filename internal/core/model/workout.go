package model

import "time"

// Verdict is the validator's judgement of whether a piece of text is a
// workout at all. It is produced once per pipeline run and never revised.
type Verdict struct {
	IsWorkout  bool    `json:"is_workout"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

// ProvisionalWorkout is the structure extracted from raw text before any
// exercise name has been resolved against the catalog.
type ProvisionalWorkout struct {
	Name   string             `json:"name"`
	Notes  string             `json:"notes,omitempty"`
	Date   time.Time          `json:"date"`
	Blocks []ProvisionalBlock `json:"blocks"`
}

type ProvisionalBlock struct {
	Label     string               `json:"label"`
	Notes     string               `json:"notes,omitempty"`
	Exercises []ProvisionalMention `json:"exercises"`
}

// ProvisionalMention is a free-text occurrence of an exercise name inside
// the parsed text, prior to resolution.
type ProvisionalMention struct {
	FreeTextName string           `json:"name"`
	OrderInBlock int              `json:"order_in_block"`
	Prescription string           `json:"prescription,omitempty"`
	Notes        string           `json:"notes,omitempty"`
	Sets         []ProvisionalSet `json:"sets"`
}

// ProvisionalSet carries only what can be derived from text. Reps, weight
// and duration are filled in by the user later, so they are absent here.
type ProvisionalSet struct {
	SetNumber  int     `json:"set_number"`
	WeightUnit string  `json:"weight_unit,omitempty"`
	RPE        float64 `json:"rpe,omitempty"`
	Notes      string  `json:"notes,omitempty"`
}

// CountMentions returns the number of exercise mentions across all blocks.
func (w ProvisionalWorkout) CountMentions() int {
	n := 0
	for _, b := range w.Blocks {
		n += len(b.Exercises)
	}
	return n
}

// MentionNames returns every free-text exercise name in document order.
func (w ProvisionalWorkout) MentionNames() []string {
	names := make([]string, 0, w.CountMentions())
	for _, b := range w.Blocks {
		for _, ex := range b.Exercises {
			names = append(names, ex.FreeTextName)
		}
	}
	return names
}
