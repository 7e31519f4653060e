// Package validate gates the pipeline: only text the reasoning service is
// confident describes a workout proceeds to extraction.
package validate

import (
	"context"
	"fmt"

	"github.com/repset/repset/internal/core/common"
	"github.com/repset/repset/internal/core/model"
	"github.com/repset/repset/internal/llm"
)

const defaultMinConfidence = 0.7

const systemPrompt = `You decide whether a piece of free text describes a strength or fitness workout
that someone performed or plans to perform. Workout text typically names exercises with sets, reps,
weights, distances or durations. Shopping lists, journal entries, recipes and random prose are not
workouts. Respond with JSON only:
{"is_workout": bool, "confidence": float between 0 and 1, "reason": "one short sentence"}`

// Validator asks the fast model tier for a verdict on raw text.
type Validator struct {
	llm           llm.Client
	minConfidence float64
}

func New(client llm.Client, minConfidence float64) *Validator {
	if minConfidence <= 0 {
		minConfidence = defaultMinConfidence
	}
	return &Validator{llm: client, minConfidence: minConfidence}
}

// Validate returns the model's verdict. accepted is true only when the model
// both calls the text a workout and clears the confidence floor, so an
// ambiguous "probably a workout" still gets rejected rather than guessed at.
func (v *Validator) Validate(ctx context.Context, raw string) (model.Verdict, bool, error) {
	resp, err := v.llm.Generate(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      fmt.Sprintf("Text to judge:\n\n%s", raw),
		Tier:        llm.TierFast,
		Temperature: 0,
		JSONMode:    true,
	})
	if err != nil {
		return model.Verdict{}, false, fmt.Errorf("validation call: %w", err)
	}

	verdict, err := common.ParseJSON[model.Verdict](resp)
	if err != nil {
		return model.Verdict{}, false, fmt.Errorf("validation verdict: %w", err)
	}

	accepted := verdict.IsWorkout && verdict.Confidence >= v.minConfidence
	return verdict, accepted, nil
}
