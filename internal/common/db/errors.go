package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/AlibekovAA/userstore/internal/observability/metrics"
)

// HandleQueryError records the query duration and maps errNoRows onto
// notFoundErr. Any other failure is counted and wrapped with the operation name.
func HandleQueryError(err, errNoRows, notFoundErr error, backend, operation string, startTime time.Time) error {
	MeasureQueryDuration(backend, operation, startTime)

	if err == nil {
		return nil
	}
	if errNoRows != nil && errors.Is(err, errNoRows) {
		return notFoundErr
	}
	countError(backend, operation, err)
	return fmt.Errorf("failed to %s: %w", operation, err)
}

func HandleExecError(err error, backend, operation string, startTime time.Time) error {
	MeasureQueryDuration(backend, operation, startTime)

	if err == nil {
		return nil
	}
	countError(backend, operation, err)
	return fmt.Errorf("failed to %s: %w", operation, err)
}

func MeasureQueryDuration(backend, operation string, startTime time.Time) {
	metrics.DBQueryDurationSeconds.WithLabelValues(backend, operation).Observe(time.Since(startTime).Seconds())
}

func countError(backend, operation string, err error) {
	errorType := fmt.Sprintf("%T", err)
	metrics.DBQueryErrors.WithLabelValues(backend, operation, errorType).Inc()
}
