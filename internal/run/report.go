package run

import (
	"fmt"
	"html/template"
	"os"

	"github.com/cactuslab/cactus-client-go/internal/tracker"
)

// reportTemplate renders a minimal pass/fail summary. html/template is
// stdlib rather than a third-party renderer because nothing in this
// report needs more than escaped text substitution into a static
// shell, and html/template is the one library in the ecosystem built
// specifically to make that escaping impossible to get wrong.
var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head><title>Run {{.RunID}} - {{.TestProcedureID}}</title></head>
<body>
<h1 style="color:{{if .Passed}}green{{else}}red{{end}}">Run {{.RunID}}: {{.TestProcedureID}} — {{if .Passed}}PASS{{else}}FAIL{{end}}</h1>
<ul>
<li>Execution completed: {{.Evaluation.ExecutionCompleted}}</li>
<li>Warnings: {{.Evaluation.WarningCount}}</li>
<li>XSD errors: {{.Evaluation.XSDErrorCount}}</li>
</ul>
<h2>Steps</h2>
<table border="1" cellpadding="4">
<tr><th>Step</th><th>Result</th><th>Description</th></tr>
{{range .Steps}}<tr style="background-color:{{if .Passed}}#dfd{{else}}#fdd{{end}}"><td>{{.ID}}</td><td>{{if .Passed}}PASS{{else}}FAIL{{end}}</td><td>{{.Description}}</td></tr>
{{end}}</table>
</body>
</html>
`))

type reportStep struct {
	ID          string
	Passed      bool
	Description string
}

type reportData struct {
	RunID           int
	TestProcedureID string
	Passed          bool
	Evaluation      tracker.Evaluation
	Steps           []reportStep
}

// WriteReport renders report.html summarising the run's evaluation and
// per-step results.
func (m *Manager) WriteReport(testProcedureID string, eval tracker.Evaluation, progress *tracker.ProgressTracker) error {
	data := reportData{RunID: m.RunID, TestProcedureID: testProcedureID, Passed: eval.Passed, Evaluation: eval}
	for _, p := range progress.AllProgress() {
		step := reportStep{ID: p.Step.ID}
		if p.Result != nil {
			step.Passed = p.Result.IsPassed()
			step.Description = p.Result.Description
		} else {
			step.Description = "not executed"
		}
		data.Steps = append(data.Steps, step)
	}

	f, err := os.Create(m.FilePath(FileReport))
	if err != nil {
		return fmt.Errorf("run: creating report: %w", err)
	}
	defer f.Close()

	if err := reportTemplate.Execute(f, data); err != nil {
		return fmt.Errorf("run: rendering report: %w", err)
	}
	return nil
}
