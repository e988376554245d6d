package agent

// QualityGrade scores a produced output against acceptance thresholds.
// Grading is advisory: a failing grade never fails the run.
type QualityGrade struct {
	Score   float64  `json:"score"`
	Pass    bool     `json:"pass"`
	Reasons []string `json:"reasons,omitempty"`
}

// Grader scores the raw final text of a run.
type Grader interface {
	Grade(finalText string) QualityGrade
}

// ThresholdGrader passes output whose score meets a minimum.
type ThresholdGrader struct {
	Min   float64
	Score func(text string) (float64, []string)
}

// Grade implements Grader.
func (g ThresholdGrader) Grade(text string) QualityGrade {
	score, reasons := g.Score(text)
	return QualityGrade{Score: score, Pass: score >= g.Min, Reasons: reasons}
}
