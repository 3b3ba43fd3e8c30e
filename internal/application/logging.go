package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/scan-attendance/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// ErrorKind maps sentinel and validation errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrPersonNotFound):
		return "person_not_found"
	case errors.Is(err, ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, ErrNotEnrolled):
		return "not_enrolled"
	case errors.Is(err, ErrNoMatchingSession):
		return "no_matching_session"
	case errors.Is(err, ErrInvalidTimestamp):
		return "invalid_timestamp"
	case errors.Is(err, ErrInvalidRecurrenceRule):
		return "invalid_recurrence_rule"
	case errors.Is(err, ErrDuplicateBiometricToken):
		return "duplicate_biometric_token"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrRepositoryUnavailable):
		return "repository_unavailable"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}

	return "unexpected"
}

// logLevelFor picks the level an operation failure is logged at. An unmatched
// scan is an expected outcome, caller mistakes are warnings and collaborator
// failures are errors.
func logLevelFor(err error) slog.Level {
	switch ErrorKind(err) {
	case "":
		return slog.LevelInfo
	case "no_matching_session":
		return slog.LevelInfo
	case "repository_unavailable", "unexpected":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func logFailure(ctx context.Context, logger *slog.Logger, msg string, err error) {
	logger.Log(ctx, logLevelFor(err), msg, "error", err, "error_kind", ErrorKind(err))
}
