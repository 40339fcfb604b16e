package agent

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Vision is the black-box cover classifier. Implementations return the
// fixed VisionResult schema; a nil result means the cover could not be
// identified.
type Vision interface {
	AnalyzeCover(ctx context.Context, imagePath string) (*VisionResult, error)
}

// Grader turns a defect list into a numeric grade.
type Grader interface {
	Grade(defects string) float64
}

// StubVision is a deterministic stand-in for the real vision model,
// used by the batch driver until one is wired in. It keys off the image
// filename.
type StubVision struct {
	log zerolog.Logger
}

func NewStubVision(log zerolog.Logger) *StubVision {
	return &StubVision{log: log}
}

func (v *StubVision) AnalyzeCover(_ context.Context, imagePath string) (*VisionResult, error) {
	v.log.Info().Str("image", imagePath).Msg("analyzing cover (stub)")

	res := &VisionResult{
		SeriesTitle: "Amazing Spider-Man",
		IssueNumber: "101",
		Defects:     "spine_tick",
		Confidence:  0.85,
	}
	if strings.Contains(filepath.Base(imagePath), "Batman") {
		res.SeriesTitle = "Batman"
		res.IssueNumber = "555"
		res.Defects = "spine_tick, corner_blunt"
	}
	return res, nil
}
