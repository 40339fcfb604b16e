package agent

import "strings"

// defectDeductions maps a defect code from the vision schema to its
// grade deduction.
var defectDeductions = map[string]float64{
	"spine_tick":    -0.5,
	"rubbing_light": -0.5,
	"crease_light":  -1.0,
	"corner_blunt":  -0.5,
	"no_defects":    0.0,
}

const baseGrade = 10.0

// GradeFromDefects applies the deduction table to a comma-separated
// defect list. Unknown defect codes deduct nothing; the grade never
// goes below 0.
func GradeFromDefects(defects string) float64 {
	grade := baseGrade
	for _, d := range strings.Split(defects, ",") {
		grade += defectDeductions[strings.TrimSpace(d)]
	}
	if grade < 0 {
		return 0
	}
	return grade
}

// DefectGrader is the default Grader backed by the deduction table.
type DefectGrader struct{}

func (DefectGrader) Grade(defects string) float64 {
	return GradeFromDefects(defects)
}
