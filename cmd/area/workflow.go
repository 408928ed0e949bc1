package main

import (
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Workflow is the declarative form of an area used by `area apply`.
type Workflow struct {
	Name        string     `yaml:"name"        validate:"required,min=1,max=255"`
	Description string     `yaml:"description"`
	Activate    bool       `yaml:"activate"`
	Trigger     *StepSpec  `yaml:"trigger"     validate:"required"`
	Actions     []StepSpec `yaml:"actions"     validate:"required,min=1,dive"`
}

type StepSpec struct {
	Service string         `yaml:"service" validate:"required"`
	Event   string         `yaml:"event"   validate:"required"`
	Config  map[string]any `yaml:"config"`
}

// Steps returns the trigger followed by the actions.
func (w *Workflow) Steps() []StepSpec {
	steps := make([]StepSpec, 0, 1+len(w.Actions))
	steps = append(steps, *w.Trigger)

	return append(steps, w.Actions...)
}

func LoadWorkflow(path string) (*Workflow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workflow file: %w", err)
	}
	defer file.Close()

	return ParseWorkflow(file)
}

// ParseWorkflow decodes and validates a workflow document. Unknown keys are
// rejected.
func ParseWorkflow(r io.Reader) (*Workflow, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var workflow Workflow
	if err := decoder.Decode(&workflow); err != nil {
		return nil, fmt.Errorf("failed to decode workflow: %w", err)
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(&workflow); err != nil {
		return nil, fmt.Errorf("invalid workflow: %w", err)
	}

	return &workflow, nil
}
