// Package repair runs a second look over the extracted structure. The
// extractor works from text alone and occasionally drops a set or mangles a
// quantity; the repairer shows the reasoning service both the original text
// and the structure and asks for corrections.
package repair

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/repset/repset/internal/core/common"
	"github.com/repset/repset/internal/core/model"
	"github.com/repset/repset/internal/llm"
)

const systemPrompt = `You review structured workout data against the original text it was extracted from.
Fix only real inconsistencies: wrong set counts (e.g. "3 rounds" but one exercise has 2 sets),
garbled prescription strings, or quantities that contradict the text. Do not rename exercises,
reorder anything, or invent detail the text does not contain.
Respond with JSON only: {"changed": bool, "workout": <the full corrected workout object>}.
When nothing needs fixing, return {"changed": false, "workout": <the workout unchanged>}.`

type wireResult struct {
	Changed bool                     `json:"changed"`
	Workout model.ProvisionalWorkout `json:"workout"`
}

// Repairer makes exactly one reasoning call per workout. It never loops.
type Repairer struct {
	llm llm.Client
}

func New(client llm.Client) *Repairer {
	return &Repairer{llm: client}
}

// Repair returns the corrected workout and whether anything changed. The
// input is returned untouched when the model reports no corrections or
// returns an empty workout.
func (r *Repairer) Repair(ctx context.Context, raw string, workout model.ProvisionalWorkout) (model.ProvisionalWorkout, bool, error) {
	encoded, err := json.Marshal(workout)
	if err != nil {
		return workout, false, fmt.Errorf("encoding workout for repair: %w", err)
	}

	resp, err := r.llm.Generate(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      fmt.Sprintf("Original text:\n\n%s\n\nExtracted structure:\n\n%s", raw, encoded),
		Tier:        llm.TierDeep,
		Temperature: 0,
		JSONMode:    true,
	})
	if err != nil {
		return workout, false, fmt.Errorf("repair call: %w", err)
	}

	result, err := common.ParseJSON[wireResult](resp)
	if err != nil {
		return workout, false, fmt.Errorf("repair result: %w", err)
	}
	if !result.Changed || len(result.Workout.Blocks) == 0 {
		return workout, false, nil
	}

	// The model never sees the date; keep the caller's.
	result.Workout.Date = workout.Date
	return result.Workout, true, nil
}
