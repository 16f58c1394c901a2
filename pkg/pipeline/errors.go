package pipeline

import (
	"errors"
	"fmt"

	"github.com/dtnitsch/wiki-ngrams/pkg/spill"
)

// Stages of a counting run.
const (
	StagePrepare   = "prepare"
	StageAggregate = "aggregate"
	StageMerge     = "merge"
	StageOutput    = "output"
)

// StageError names the stage and component a run failed in.
type StageError struct {
	Stage     string
	Component string
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed in %s: %v", e.Stage, e.Component, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// stageError wraps err, naming the spill file as the component when the
// failure came from one.
func stageError(stage, component string, err error) error {
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	var spillErr *spill.Error
	if errors.As(err, &spillErr) {
		component = "spill " + spillErr.ID.String()
	}
	return &StageError{Stage: stage, Component: component, Err: err}
}
