package storage

import "errors"

var (
	// ErrNoDatabaseConnection is returned when a store is constructed with a nil connection.
	ErrNoDatabaseConnection = errors.New("no database connection provided")
	// ErrInvalidCleanupInterval is returned when a non-positive cleanup interval is given.
	ErrInvalidCleanupInterval = errors.New("cleanup interval must be greater than zero")
	// ErrTracingStoreFailed wraps unexpected tracing-store failures.
	ErrTracingStoreFailed = errors.New("tracing store operation failed")
	// ErrJobNotFound is returned when an import job ID has no matching row.
	ErrJobNotFound = errors.New("import job not found")
	// ErrForeignKeyViolation wraps a Postgres foreign-key constraint violation.
	ErrForeignKeyViolation = errors.New("foreign key violation")
)
