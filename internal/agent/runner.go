package agent

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"comicshelf/internal/events"
	"comicshelf/pkg/models"
)

// Reconciler maps a fuzzy title/number pair to a canonical issue
// (implemented by reconcile.Engine). nil means the comic could not be
// identified.
type Reconciler interface {
	Reconcile(ctx context.Context, seriesTitle, issueNumber string) *models.Issue
}

// Pricer ingests pricing for a reconciled issue (implemented by
// pricing.Engine).
type Pricer interface {
	IngestPricing(ctx context.Context, issue *models.Issue, grade float64)
}

// Runner executes the pipeline for comics, one at a time. A failure in
// one comic never halts the rest of a batch.
type Runner struct {
	Vision     Vision
	Grader     Grader
	Reconciler Reconciler
	Pricer     Pricer
	Events     *events.Hub // optional

	log zerolog.Logger
}

func NewRunner(vision Vision, grader Grader, rec Reconciler, pricer Pricer, hub *events.Hub, log zerolog.Logger) *Runner {
	return &Runner{
		Vision:     vision,
		Grader:     grader,
		Reconciler: rec,
		Pricer:     pricer,
		Events:     hub,
		log:        log,
	}
}

// Process drives one comic image to a terminal phase and returns the
// final state.
func (r *Runner) Process(ctx context.Context, imagePath string) State {
	s := NewState(uuid.NewString(), imagePath)
	r.log.Info().Str("run_id", s.RunID).Str("image", imagePath).Msg("pipeline run started")

	var issue *models.Issue

	for !s.Phase.Terminal() {
		switch s.Phase {
		case PhaseAwaitingVision:
			res, err := r.Vision.AnalyzeCover(ctx, s.ImagePath)
			if err != nil {
				r.log.Error().Err(err).Str("image", s.ImagePath).Msg("vision tool failed")
				res = nil
			}
			s = Next(s, VisionDone{Vision: res})

		case PhaseAwaitingCatalogMatch:
			issue = r.Reconciler.Reconcile(ctx, s.Vision.SeriesTitle, s.Vision.IssueNumber)
			s = Next(s, CatalogMatched{Issue: issue})

		case PhaseAwaitingGrade:
			s = Next(s, Graded{Grade: r.Grader.Grade(s.Vision.Defects)})

		case PhaseAwaitingPricing:
			r.Pricer.IngestPricing(ctx, issue, s.Grade)
			s = Next(s, Priced{})
		}

		r.publish(s)
	}

	if s.Phase == PhaseFailed {
		r.log.Warn().Str("run_id", s.RunID).Str("image", imagePath).Str("reason", s.Reason).Msg("pipeline run failed")
	} else {
		r.log.Info().Str("run_id", s.RunID).Int64("issue_id", s.IssueID).Float64("grade", s.Grade).Msg("pipeline run complete")
	}
	return s
}

// ProcessBatch runs every image in order. Failed items are reported in
// the returned states, not raised.
func (r *Runner) ProcessBatch(ctx context.Context, imagePaths []string) []State {
	out := make([]State, 0, len(imagePaths))
	for _, p := range imagePaths {
		out = append(out, r.Process(ctx, p))
	}
	return out
}

func (r *Runner) publish(s State) {
	if r.Events == nil {
		return
	}
	r.Events.Broadcast(events.Event{
		Type:    "pipeline.phase",
		RunID:   s.RunID,
		Image:   s.ImagePath,
		Phase:   s.Phase.String(),
		IssueID: s.IssueID,
		Reason:  s.Reason,
		At:      time.Now().UTC(),
	})
}
