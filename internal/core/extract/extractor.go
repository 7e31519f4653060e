// Package extract turns validated workout text into a provisional structure
// of blocks, exercise mentions and sets. Names stay free text here; the
// resolver deals with the catalog.
package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/repset/repset/internal/core/common"
	"github.com/repset/repset/internal/core/model"
	"github.com/repset/repset/internal/llm"
)

const systemPrompt = `You convert workout text into structured JSON. Preserve exercise names exactly as
written. Keep every prescription (sets, reps, weights, tempo, rest) as the original string in the
"prescription" field; do not compute or normalize numbers.

Rules for ambiguous text:
- "A or B": keep only the first option.
- Unilateral work like "10/leg" or "8 each side": one set entry per side, prescription unchanged.
- Supersets: every exercise in the superset gets the shared set count unless the text overrides it
  for a specific exercise.
- Rest periods in a multi-exercise block belong to the final exercise only, unless the text states
  rest per exercise.
- Unlabeled groupings become one block with an empty label.

Respond with JSON only:
{
  "name": "short workout title, empty if none given",
  "notes": "workout-level notes, empty if none",
  "blocks": [{
    "label": "A",
    "notes": "",
    "exercises": [{
      "name": "exercise name as written",
      "prescription": "original prescription text",
      "notes": "",
      "set_count": 3,
      "sets": [{"rpe": 8, "notes": ""}]
    }]
  }]
}
"sets" is optional; use it only when individual sets differ. Otherwise "set_count" alone is enough.`

type wireWorkout struct {
	Name   string      `json:"name"`
	Notes  string      `json:"notes"`
	Blocks []wireBlock `json:"blocks"`
}

type wireBlock struct {
	Label     string         `json:"label"`
	Notes     string         `json:"notes"`
	Exercises []wireExercise `json:"exercises"`
}

type wireExercise struct {
	Name         string    `json:"name"`
	Prescription string    `json:"prescription"`
	Notes        string    `json:"notes"`
	SetCount     int       `json:"set_count"`
	Sets         []wireSet `json:"sets"`
}

type wireSet struct {
	RPE   float64 `json:"rpe"`
	Notes string  `json:"notes"`
}

// Extractor asks the deep model tier for the workout structure and converts
// the wire form into the provisional model.
type Extractor struct {
	llm llm.Client
}

func New(client llm.Client) *Extractor {
	return &Extractor{llm: client}
}

// Extract parses raw into a provisional workout. date and weightUnit come
// from the caller, not the text: the text rarely states either and the model
// is not asked to guess.
func (e *Extractor) Extract(ctx context.Context, raw string, date time.Time, weightUnit string) (model.ProvisionalWorkout, error) {
	resp, err := e.llm.Generate(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      fmt.Sprintf("Workout text:\n\n%s", raw),
		Tier:        llm.TierDeep,
		Temperature: 0,
		JSONMode:    true,
	})
	if err != nil {
		return model.ProvisionalWorkout{}, fmt.Errorf("extraction call: %w", err)
	}

	wire, err := common.ParseJSON[wireWorkout](resp)
	if err != nil {
		return model.ProvisionalWorkout{}, fmt.Errorf("extraction structure: %w", err)
	}
	if len(wire.Blocks) == 0 {
		return model.ProvisionalWorkout{}, fmt.Errorf("extraction produced no blocks")
	}

	return fromWire(wire, date, weightUnit), nil
}

func fromWire(wire wireWorkout, date time.Time, weightUnit string) model.ProvisionalWorkout {
	out := model.ProvisionalWorkout{
		Name:   wire.Name,
		Notes:  wire.Notes,
		Date:   date,
		Blocks: make([]model.ProvisionalBlock, 0, len(wire.Blocks)),
	}
	for _, wb := range wire.Blocks {
		block := model.ProvisionalBlock{
			Label:     wb.Label,
			Notes:     wb.Notes,
			Exercises: make([]model.ProvisionalMention, 0, len(wb.Exercises)),
		}
		for i, we := range wb.Exercises {
			mention := model.ProvisionalMention{
				FreeTextName: we.Name,
				// Position in the block is assigned here, never
				// trusted from the model.
				OrderInBlock: i + 1,
				Prescription: we.Prescription,
				Notes:        we.Notes,
				Sets:         buildSets(we, weightUnit),
			}
			block.Exercises = append(block.Exercises, mention)
		}
		out.Blocks = append(out.Blocks, block)
	}
	return out
}

func buildSets(we wireExercise, weightUnit string) []model.ProvisionalSet {
	count := we.SetCount
	if len(we.Sets) > count {
		count = len(we.Sets)
	}
	if count == 0 {
		count = 1
	}
	sets := make([]model.ProvisionalSet, count)
	for i := range sets {
		sets[i] = model.ProvisionalSet{
			SetNumber:  i + 1,
			WeightUnit: weightUnit,
		}
		if i < len(we.Sets) {
			sets[i].RPE = we.Sets[i].RPE
			sets[i].Notes = we.Sets[i].Notes
		}
	}
	return sets
}
