package tracker

// Evaluation is the final pass/fail verdict plus enough detail to
// explain it.
type Evaluation struct {
	Passed           bool
	ExecutionCompleted bool
	FailingSteps     []string
	WarningCount     int
	XSDErrorCount    int
}

// Evaluate derives the final pass/fail verdict: the run must have
// completed without an uncaught exception, every registered step must
// have a non-null final result that IsPassed, and there must be zero
// warnings and zero XSD errors logged anywhere.
func Evaluate(executionCompleted bool, progress *ProgressTracker, warnings *WarningTracker, responses *ResponseTracker) Evaluation {
	eval := Evaluation{
		ExecutionCompleted: executionCompleted,
		WarningCount:       warnings.Count(),
		XSDErrorCount:      responses.TotalXSDErrors(),
	}

	for _, p := range progress.AllProgress() {
		if !p.Result.IsPassed() {
			eval.FailingSteps = append(eval.FailingSteps, p.Step.ID)
		}
	}

	eval.Passed = executionCompleted &&
		len(eval.FailingSteps) == 0 &&
		eval.WarningCount == 0 &&
		eval.XSDErrorCount == 0
	return eval
}
