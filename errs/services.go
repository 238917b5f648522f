package errs

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrConfigMissing     = errors.New("configuration missing")
	ErrConfigInvalid     = errors.New("configuration invalid")
	ErrStorageFailure    = errors.New("asset storage failure")
)

func NewRateLimitError(scope string, retryAfter time.Duration) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusTooManyRequests,
		err:        ErrRateLimitExceeded,
		Details:    fmt.Sprintf("Too many %s attempts, retry in %s", scope, retryAfter.Round(time.Second)),
		Field:      "rate_limit",
	}
}

func NewConfigError(configName string, cause error) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusInternalServerError,
		err:        ErrConfigMissing,
		Details:    fmt.Sprintf("Configuration error for %s", configName),
		Cause:      cause,
	}
}

func NewInvalidConfigError(configName, reason string) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusInternalServerError,
		err:        ErrConfigInvalid,
		Details:    fmt.Sprintf("Invalid configuration %s: %s", configName, reason),
		Field:      configName,
	}
}

func NewStorageError(operation string, cause error) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusInternalServerError,
		err:        ErrStorageFailure,
		Details:    fmt.Sprintf("Failed to %s", operation),
		Cause:      cause,
	}
}

func IsRateLimitError(err error) bool {
	return errors.Is(err, ErrRateLimitExceeded)
}

func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfigMissing) || errors.Is(err, ErrConfigInvalid)
}
