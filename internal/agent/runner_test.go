package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"comicshelf/pkg/models"
)

type scriptedVision struct {
	results map[string]*VisionResult
	err     error
}

func (v *scriptedVision) AnalyzeCover(_ context.Context, imagePath string) (*VisionResult, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.results[imagePath], nil
}

type fakeReconciler struct {
	issues map[string]*models.Issue
	calls  int
}

func (f *fakeReconciler) Reconcile(_ context.Context, title, number string) *models.Issue {
	f.calls++
	return f.issues[title+"#"+number]
}

type fakePricer struct {
	grades []float64
	issues []*models.Issue
}

func (f *fakePricer) IngestPricing(_ context.Context, issue *models.Issue, grade float64) {
	f.issues = append(f.issues, issue)
	f.grades = append(f.grades, grade)
}

func TestRunnerDrivesComicToDone(t *testing.T) {
	vision := &scriptedVision{results: map[string]*VisionResult{
		"asm_101.jpg": {SeriesTitle: "Amazing Spider-Man", IssueNumber: "101", Defects: "spine_tick"},
	}}
	rec := &fakeReconciler{issues: map[string]*models.Issue{
		"Amazing Spider-Man#101": {ID: 11, IssueNumber: "101"},
	}}
	pricer := &fakePricer{}

	r := NewRunner(vision, DefectGrader{}, rec, pricer, nil, zerolog.Nop())
	s := r.Process(context.Background(), "asm_101.jpg")

	require.Equal(t, PhaseDone, s.Phase)
	require.EqualValues(t, 11, s.IssueID)
	require.Equal(t, 9.5, s.Grade)
	require.NotEmpty(t, s.RunID)

	require.Equal(t, []float64{9.5}, pricer.grades)
	require.EqualValues(t, 11, pricer.issues[0].ID)
}

func TestRunnerVisionErrorFailsRun(t *testing.T) {
	vision := &scriptedVision{err: errors.New("model unavailable")}
	rec := &fakeReconciler{}
	pricer := &fakePricer{}

	r := NewRunner(vision, DefectGrader{}, rec, pricer, nil, zerolog.Nop())
	s := r.Process(context.Background(), "any.jpg")

	require.Equal(t, PhaseFailed, s.Phase)
	require.Zero(t, rec.calls)
	require.Empty(t, pricer.grades)
}

func TestRunnerBatchIsolatesFailures(t *testing.T) {
	vision := &scriptedVision{results: map[string]*VisionResult{
		"good.jpg": {SeriesTitle: "Amazing Spider-Man", IssueNumber: "101", Defects: "no_defects"},
		"bad.jpg":  {SeriesTitle: "Totally Fake Comic", IssueNumber: "1"},
	}}
	rec := &fakeReconciler{issues: map[string]*models.Issue{
		"Amazing Spider-Man#101": {ID: 11, IssueNumber: "101"},
	}}
	pricer := &fakePricer{}

	r := NewRunner(vision, DefectGrader{}, rec, pricer, nil, zerolog.Nop())
	states := r.ProcessBatch(context.Background(), []string{"bad.jpg", "good.jpg"})

	require.Len(t, states, 2)
	require.Equal(t, PhaseFailed, states[0].Phase)
	require.Equal(t, PhaseDone, states[1].Phase)
	require.Len(t, pricer.grades, 1)
}
