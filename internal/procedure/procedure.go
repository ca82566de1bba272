// Package procedure loads an already-authored test procedure document
// from disk into the step vocabulary the scheduler runs. Per the
// execution entry point's scope, a procedure is always given by path —
// this package never searches for or selects one on the caller's
// behalf.
package procedure

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cactuslab/cactus-client-go/internal/cerrors"
	"github.com/cactuslab/cactus-client-go/internal/step"
)

// Document is the on-disk shape of a test procedure: an id, a
// human-readable description, and its ordered steps.
type Document struct {
	ID          string       `yaml:"id"`
	Description string       `yaml:"description"`
	Steps       []stepYAML   `yaml:"steps"`
}

type stepYAML struct {
	ID              string         `yaml:"id"`
	OwningClient    string         `yaml:"owning_client"`
	ResourceClient  string         `yaml:"resource_client"`
	Primacy         int            `yaml:"primacy"`
	Action          specYAML       `yaml:"action"`
	Checks          []specYAML     `yaml:"checks"`
	RepeatUntilPass bool           `yaml:"repeat_until_pass"`
}

type specYAML struct {
	Type   string         `yaml:"type"`
	Params map[string]any `yaml:"params"`
}

// Load parses the procedure document at path into its id and ordered
// steps.
func Load(path string) (string, []*step.Step, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, cerrors.New(cerrors.TestDefinitionKind, "procedure.Load", err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", nil, cerrors.New(cerrors.TestDefinitionKind, "procedure.Load", err)
	}
	if doc.ID == "" {
		return "", nil, cerrors.Newf(cerrors.TestDefinitionKind, "procedure.Load", "procedure at %s has no id", path)
	}

	steps := make([]*step.Step, 0, len(doc.Steps))
	seen := map[string]bool{}
	for _, sy := range doc.Steps {
		if sy.ID == "" {
			return "", nil, cerrors.Newf(cerrors.TestDefinitionKind, "procedure.Load", "step with empty id")
		}
		if seen[sy.ID] {
			return "", nil, cerrors.Newf(cerrors.TestDefinitionKind, "procedure.Load", "duplicate step id %q", sy.ID)
		}
		seen[sy.ID] = true

		checks := make([]step.Spec, len(sy.Checks))
		for i, c := range sy.Checks {
			checks[i] = step.Spec{Type: c.Type, Params: c.Params}
		}

		steps = append(steps, &step.Step{
			ID:              sy.ID,
			OwningClient:    sy.OwningClient,
			ResourceClient:  sy.ResourceClient,
			Primacy:         sy.Primacy,
			Action:          step.Spec{Type: sy.Action.Type, Params: sy.Action.Params},
			Checks:          checks,
			RepeatUntilPass: sy.RepeatUntilPass,
		})
	}
	if len(steps) == 0 {
		return "", nil, cerrors.Newf(cerrors.TestDefinitionKind, "procedure.Load", "procedure %s defines no steps", doc.ID)
	}

	return doc.ID, steps, nil
}
