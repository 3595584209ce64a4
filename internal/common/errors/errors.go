package commonerrors

type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "VALIDATION"
	CategoryNotFound   ErrorCategory = "NOT_FOUND"
	CategoryConflict   ErrorCategory = "CONFLICT"
	CategoryInternal   ErrorCategory = "INTERNAL"
	CategoryExternal   ErrorCategory = "EXTERNAL"
)

var (
	ErrMissingRequiredConfig = NewDomainError(
		"MISSING_REQUIRED_CONFIG",
		CategoryValidation,
		"missing required configuration value",
	)

	ErrUnknownBackend = NewDomainError(
		"UNKNOWN_BACKEND",
		CategoryValidation,
		"unknown storage backend",
	)

	ErrCircuitOpen = NewDomainError(
		"CIRCUIT_OPEN",
		CategoryExternal,
		"circuit breaker is open",
	)

	ErrEmptyUUID = NewDomainError(
		"EMPTY_UUID",
		CategoryValidation,
		"uuid cannot be empty",
	)
)
