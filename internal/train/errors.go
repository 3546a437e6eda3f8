package train

import (
	"errors"
	"fmt"
)

var (
	// ErrDegenerateBatch means a batch had no labelled positions.
	ErrDegenerateBatch = errors.New("batch has no labelled positions")
	// ErrEmptyValidation means evaluation was requested without validation data.
	ErrEmptyValidation = errors.New("validation set is empty")
	// ErrNoTrainingData means the training set is empty.
	ErrNoTrainingData = errors.New("training set is empty")
)

// TrainingError is a fatal training failure. Epoch and Batch are 1-based
// and 0-based respectively; zero Epoch means the run failed before training.
type TrainingError struct {
	Epoch int
	Batch int
	Err   error
}

func (e *TrainingError) Error() string {
	if e.Epoch == 0 {
		return fmt.Sprintf("training failed: %v", e.Err)
	}
	return fmt.Sprintf("training failed at epoch %d, batch %d: %v", e.Epoch, e.Batch, e.Err)
}

func (e *TrainingError) Unwrap() error { return e.Err }
