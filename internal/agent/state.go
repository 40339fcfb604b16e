// Package agent drives one comic image through the processing
// pipeline: vision identification, catalog reconciliation, grading,
// pricing. Progress is an explicit tagged state record; each phase's
// fields are only populated once that phase has completed.
package agent

import "comicshelf/pkg/models"

type Phase int

const (
	PhaseAwaitingVision Phase = iota
	PhaseAwaitingCatalogMatch
	PhaseAwaitingGrade
	PhaseAwaitingPricing
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingVision:
		return "awaiting_vision"
	case PhaseAwaitingCatalogMatch:
		return "awaiting_catalog_match"
	case PhaseAwaitingGrade:
		return "awaiting_grade"
	case PhaseAwaitingPricing:
		return "awaiting_pricing"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the pipeline has stopped in this phase.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// VisionResult is the fixed schema the black-box cover classifier
// returns.
type VisionResult struct {
	SeriesTitle string  `json:"series_title"`
	IssueNumber string  `json:"issue_number"`
	Defects     string  `json:"defects"`
	Confidence  float64 `json:"condition_confidence"`
}

// State is the full pipeline state for one comic.
type State struct {
	RunID     string
	ImagePath string
	Phase     Phase

	Vision  *VisionResult // set after PhaseAwaitingVision
	IssueID int64         // set after PhaseAwaitingCatalogMatch
	Grade   float64       // set after PhaseAwaitingGrade

	Reason string // failure reason when Phase == PhaseFailed
}

func NewState(runID, imagePath string) State {
	return State{
		RunID:     runID,
		ImagePath: imagePath,
		Phase:     PhaseAwaitingVision,
	}
}

// Result is the outcome of one phase's external step.
type Result interface{ isResult() }

// VisionDone carries the classifier output; nil means the classifier
// could not identify the cover.
type VisionDone struct{ Vision *VisionResult }

// CatalogMatched carries the reconciled issue; nil means reconciliation
// failed for this comic.
type CatalogMatched struct{ Issue *models.Issue }

// Graded carries the calculated grade.
type Graded struct{ Grade float64 }

// Priced marks pricing ingestion as finished.
type Priced struct{}

func (VisionDone) isResult()     {}
func (CatalogMatched) isResult() {}
func (Graded) isResult()         {}
func (Priced) isResult()         {}

// Next is the pure transition function: current state plus one phase
// result yields the next state. A result that does not belong to the
// current phase fails the run rather than corrupting it.
func Next(s State, r Result) State {
	switch res := r.(type) {
	case VisionDone:
		if s.Phase != PhaseAwaitingVision {
			return fail(s, "vision result out of phase")
		}
		if res.Vision == nil || res.Vision.SeriesTitle == "" {
			return fail(s, "cover could not be identified")
		}
		s.Vision = res.Vision
		s.Phase = PhaseAwaitingCatalogMatch
		return s

	case CatalogMatched:
		if s.Phase != PhaseAwaitingCatalogMatch {
			return fail(s, "catalog result out of phase")
		}
		if res.Issue == nil {
			return fail(s, "no canonical issue match")
		}
		s.IssueID = res.Issue.ID
		s.Phase = PhaseAwaitingGrade
		return s

	case Graded:
		if s.Phase != PhaseAwaitingGrade {
			return fail(s, "grade result out of phase")
		}
		s.Grade = res.Grade
		s.Phase = PhaseAwaitingPricing
		return s

	case Priced:
		if s.Phase != PhaseAwaitingPricing {
			return fail(s, "pricing result out of phase")
		}
		s.Phase = PhaseDone
		return s

	default:
		return fail(s, "unknown result type")
	}
}

func fail(s State, reason string) State {
	s.Phase = PhaseFailed
	s.Reason = reason
	return s
}
