package ingestion

import (
	"errors"
	"fmt"

	"github.com/Usman209/data-collection/pkg/common/models"
)

var (
	errEmptyBatch   = errors.New("empty batch payload")
	errEmptyType    = errors.New("missing type")
	errEmptyRecords = errors.New("no records")
)

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// ValidateBatch gates the intake path: the batch must carry at least one type
// group. Group contents are checked later, per group, by the processor.
func ValidateBatch(batch models.Batch) error {
	if len(batch.Data) == 0 {
		return ValidationError{reason: errEmptyBatch}
	}
	return nil
}

// ValidateGroup decides whether one type group is eligible for processing: a
// non-empty type and at least one record. An invalid group is skipped, never
// fatal to its batch.
func ValidateGroup(group models.TypeGroup) error {
	if group.Type == "" {
		return ValidationError{reason: errEmptyType}
	}
	if len(group.Records) == 0 {
		return ValidationError{reason: fmt.Errorf("type %s: %w", group.Type, errEmptyRecords)}
	}
	return nil
}
