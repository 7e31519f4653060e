// Package core wires the parsing stages into one pipeline: validate the raw
// text, extract a provisional structure, resolve every exercise name against
// the catalog, repair inconsistencies, then finalize identifiers.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/repset/repset/internal/core/extract"
	"github.com/repset/repset/internal/core/model"
	"github.com/repset/repset/internal/core/repair"
	"github.com/repset/repset/internal/core/resolve"
	"github.com/repset/repset/internal/core/validate"
	"github.com/repset/repset/internal/observability"
)

// Options are per-request knobs the text itself cannot supply.
type Options struct {
	// Date stamps the workout; zero means "now".
	Date time.Time
	// WeightUnit is the default unit for sets, "kg" unless overridden.
	WeightUnit string
	// UserID enables audit records for ambiguous resolutions. Empty
	// disables auditing for the run.
	UserID string
}

// Pipeline runs one workout text through every stage. Stages execute
// strictly in order and never retry; a failure at any stage ends the run.
// The caller's context carries the overall deadline.
type Pipeline struct {
	validator *validate.Validator
	extractor *extract.Extractor
	resolver  *resolve.Resolver
	repairer  *repair.Repairer
	logger    *slog.Logger
}

func NewPipeline(v *validate.Validator, e *extract.Extractor, r *resolve.Resolver, rep *repair.Repairer, logger *slog.Logger) *Pipeline {
	return &Pipeline{validator: v, extractor: e, resolver: r, repairer: rep, logger: logger}
}

// Parse converts raw workout text into a fully resolved workout.
func (p *Pipeline) Parse(ctx context.Context, raw string, opts Options) (*model.ResolvedWorkout, error) {
	if opts.Date.IsZero() {
		opts.Date = time.Now().UTC()
	}
	if opts.WeightUnit == "" {
		opts.WeightUnit = "kg"
	}

	resolved, err := p.run(ctx, raw, opts)
	if err != nil {
		switch err.(type) {
		case *ValidationRejectionError:
			observability.RecordRun("rejected")
		default:
			observability.RecordRun("failed")
		}
		return nil, err
	}
	observability.RecordRun("ok")
	return resolved, nil
}

func (p *Pipeline) run(ctx context.Context, raw string, opts Options) (*model.ResolvedWorkout, error) {
	start := time.Now()
	verdict, accepted, err := p.validator.Validate(ctx, raw)
	observability.ObserveStage("validate", time.Since(start))
	if err != nil {
		return nil, &UpstreamError{Stage: "validate", Err: err}
	}
	if !accepted {
		observability.RecordValidationRejection()
		p.logger.Info("input rejected", "is_workout", verdict.IsWorkout, "confidence", verdict.Confidence)
		return nil, &ValidationRejectionError{Verdict: verdict}
	}

	start = time.Now()
	provisional, err := p.extractor.Extract(ctx, raw, opts.Date, opts.WeightUnit)
	observability.ObserveStage("extract", time.Since(start))
	if err != nil {
		return nil, &UpstreamError{Stage: "extract", Err: err}
	}

	workoutID := uuid.NewString()
	start = time.Now()
	resolutions, err := p.resolver.ResolveAll(ctx, provisional.MentionNames(), resolve.ResolveOptions{
		UserID:    opts.UserID,
		WorkoutID: workoutID,
	})
	observability.ObserveStage("resolve", time.Since(start))
	if err != nil {
		return nil, classifyResolveError(err)
	}

	start = time.Now()
	repaired, changed, err := p.repairer.Repair(ctx, raw, provisional)
	observability.ObserveStage("repair", time.Since(start))
	if err != nil {
		return nil, &UpstreamError{Stage: "repair", Err: err}
	}
	if changed {
		p.logger.Info("structure repaired", "mentions", repaired.CountMentions())
		// Repair can reword a name; any new spelling must still resolve.
		resolutions, err = p.reresolveNew(ctx, repaired, resolutions, opts, workoutID)
		if err != nil {
			return nil, err
		}
	}

	start = time.Now()
	resolved, err := finalize(workoutID, repaired, resolutions)
	observability.ObserveStage("finalize", time.Since(start))
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

// reresolveNew resolves names the repair step introduced that the first
// resolution pass never saw. Known names reuse their existing result.
func (p *Pipeline) reresolveNew(ctx context.Context, workout model.ProvisionalWorkout, resolutions map[string]resolve.Resolution, opts Options, workoutID string) (map[string]resolve.Resolution, error) {
	var missing []string
	for _, name := range workout.MentionNames() {
		if _, ok := resolutions[resolve.NormalizeKey(name)]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return resolutions, nil
	}

	extra, err := p.resolver.ResolveAll(ctx, missing, resolve.ResolveOptions{
		UserID:    opts.UserID,
		WorkoutID: workoutID,
	})
	if err != nil {
		return nil, classifyResolveError(err)
	}
	for key, res := range extra {
		resolutions[key] = res
	}
	return resolutions, nil
}

// classifyResolveError lifts embedding-provider and reasoning-transport
// failures out of the resolve stage into the upstream taxonomy; genuine
// resolution failures pass through with the offending name intact.
func classifyResolveError(err error) error {
	var up *resolve.UpstreamError
	if errors.As(err, &up) {
		return &UpstreamError{Stage: "resolve", Err: err}
	}
	return err
}

// finalize binds every mention to its catalog identifier and assigns
// instance UUIDs. A mention whose name has no resolution is a hard failure;
// placeholders are never substituted.
func finalize(workoutID string, workout model.ProvisionalWorkout, resolutions map[string]resolve.Resolution) (*model.ResolvedWorkout, error) {
	out := &model.ResolvedWorkout{
		ID:     workoutID,
		Name:   workout.Name,
		Notes:  workout.Notes,
		Date:   workout.Date,
		Blocks: make([]model.ResolvedBlock, 0, len(workout.Blocks)),
	}
	for _, block := range workout.Blocks {
		rb := model.ResolvedBlock{
			Label:     block.Label,
			Notes:     block.Notes,
			Exercises: make([]model.ResolvedExercise, 0, len(block.Exercises)),
		}
		for _, mention := range block.Exercises {
			res, ok := resolutions[resolve.NormalizeKey(mention.FreeTextName)]
			if !ok || res.Entry.ID == "" {
				return nil, &resolve.ResolutionError{
					Name: mention.FreeTextName,
					Err:  fmt.Errorf("no catalog identifier after resolution"),
				}
			}
			rb.Exercises = append(rb.Exercises, model.ResolvedExercise{
				InstanceID:   uuid.NewString(),
				ExerciseID:   res.Entry.ID,
				FreeTextName: mention.FreeTextName,
				OrderInBlock: mention.OrderInBlock,
				Prescription: mention.Prescription,
				Notes:        mention.Notes,
				Sets:         mention.Sets,
			})
		}
		out.Blocks = append(out.Blocks, rb)
	}
	return out, nil
}
