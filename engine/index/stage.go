package index

import (
	"errors"
	"fmt"
)

// Pipeline stage names, reported with failures.
const (
	StageNormalize = "normalize"
	StageChunk     = "chunk"
	StageEmbed     = "embed"
	StageUpsert    = "upsert"
)

// stageError tags an error with the pipeline stage it occurred in.
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string {
	return fmt.Sprintf("%s: %v", e.stage, e.err)
}

func (e *stageError) Unwrap() error { return e.err }

func atStage(stage string, err error) error {
	return &stageError{stage: stage, err: err}
}

// failedStage returns the stage name carried by err, or "unknown".
func failedStage(err error) string {
	var se *stageError
	if errors.As(err, &se) {
		return se.stage
	}
	return "unknown"
}
