package repository

import (
	"context"
	"time"

	commonerrors "github.com/AlibekovAA/userstore/internal/common/errors"
	"github.com/AlibekovAA/userstore/internal/common/logger"
	"github.com/AlibekovAA/userstore/internal/observability/metrics"
)

type instrumented[T any] struct {
	next    UserStore[T]
	backend string
	log     *logger.Logger
}

// Instrument wraps next so every call is timed and counted per backend,
// operation and result kind. Storage and conversion failures are logged.
func Instrument[T any](next UserStore[T], backend string, log *logger.Logger) UserStore[T] {
	return &instrumented[T]{next: next, backend: backend, log: log}
}

func (s *instrumented[T]) Add(ctx context.Context, record T) error {
	start := time.Now()
	err := s.next.Add(ctx, record)
	s.observe(ctx, "add", start, err, "")
	return err
}

func (s *instrumented[T]) Update(ctx context.Context, record T) error {
	start := time.Now()
	err := s.next.Update(ctx, record)
	s.observe(ctx, "update", start, err, "")
	return err
}

func (s *instrumented[T]) Remove(ctx context.Context, id string) (T, error) {
	start := time.Now()
	record, err := s.next.Remove(ctx, id)
	s.observe(ctx, "remove", start, err, id)
	return record, err
}

func (s *instrumented[T]) Fetch(ctx context.Context, id string) (T, error) {
	start := time.Now()
	record, err := s.next.Fetch(ctx, id)
	s.observe(ctx, "fetch", start, err, id)
	return record, err
}

func (s *instrumented[T]) List(ctx context.Context, scopeID string) ([]T, error) {
	start := time.Now()
	records, err := s.next.List(ctx, scopeID)
	s.observe(ctx, "list", start, err, "")
	return records, err
}

func (s *instrumented[T]) Exists(ctx context.Context, id string) (bool, error) {
	start := time.Now()
	ok, err := s.next.Exists(ctx, id)
	s.observe(ctx, "exists", start, err, id)
	return ok, err
}

func (s *instrumented[T]) observe(ctx context.Context, operation string, start time.Time, err error, id string) {
	metrics.UserStoreOperationDurationSeconds.WithLabelValues(s.backend, operation).Observe(time.Since(start).Seconds())

	result := "ok"
	if err != nil {
		result = KindOf(err).String()
	}
	metrics.UserStoreOperationsTotal.WithLabelValues(s.backend, operation, result).Inc()

	if err == nil {
		return
	}
	if de, ok := commonerrors.AsDomainError(err); ok {
		metrics.DomainErrorsTotal.WithLabelValues(string(de.Category()), de.Code()).Inc()
	}

	switch KindOf(err) {
	case KindStorage, KindConversion, KindUnknown:
		fields := logger.Fields{"backend": s.backend, "operation": operation}
		if id != "" {
			fields["user_id"] = id
		}
		s.log.WithFields(ctx, fields).Errorf("user store operation failed: %v", err)
	}
}
