package sandbox

import "errors"

// Sentinel errors for classifying execution outcomes.
var (
	// ErrConfiguration indicates an invalid or incomplete configuration.
	ErrConfiguration = errors.New("configuration error")

	// ErrMissingCode is returned when Execute is called without code.
	ErrMissingCode = errors.New("no code to execute")

	// ErrSpawn indicates the child process could not be prepared or started.
	ErrSpawn = errors.New("spawn failed")

	// ErrTimeout indicates the execution-wide timeout elapsed.
	ErrTimeout = errors.New("execution timeout")

	// ErrCanceled indicates the caller's context was canceled.
	ErrCanceled = errors.New("execution canceled")

	// ErrProcessCrash indicates the child exited without a terminal message.
	ErrProcessCrash = errors.New("process crashed")

	// ErrResultValidation indicates the returned value contained an unset field
	// or could not be serialized.
	ErrResultValidation = errors.New("result validation failed")

	// ErrUncaughtException indicates the code threw and did not catch.
	ErrUncaughtException = errors.New("uncaught exception")

	// ErrLimitExceeded is reported to the code when a per-execution tool call
	// limit is reached. It does not end the execution.
	ErrLimitExceeded = errors.New("limit exceeded")
)
