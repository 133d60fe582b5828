// Package envutil provides utilities for reading and validating environment variables.
package envutil

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sitebuild/sitebuild/pkg/console"
	"github.com/sitebuild/sitebuild/pkg/logger"
)

// GetIntFromEnv reads an integer from envVar and validates it against the
// inclusive [minValue, maxValue] range.
//
// defaultValue is returned when the variable is unset, not a number, or out
// of range; the latter two print a warning to stderr. log may be nil.
func GetIntFromEnv(envVar string, defaultValue, minValue, maxValue int, log *logger.Logger) int {
	envValue := os.Getenv(envVar)
	if envValue == "" {
		return defaultValue
	}

	val, err := strconv.Atoi(strings.TrimSpace(envValue))
	if err != nil {
		fmt.Fprintln(os.Stderr, console.FormatWarningMessage(
			fmt.Sprintf("Invalid %s value '%s' (must be a number), using default %d", envVar, envValue, defaultValue),
		))
		return defaultValue
	}

	if val < minValue || val > maxValue {
		fmt.Fprintln(os.Stderr, console.FormatWarningMessage(
			fmt.Sprintf("%s value %d is out of bounds (must be %d-%d), using default %d", envVar, val, minValue, maxValue, defaultValue),
		))
		return defaultValue
	}

	if log != nil {
		log.Printf("Using %s=%d", envVar, val)
	}
	return val
}

// GetMillisFromEnv is GetIntFromEnv for durations expressed in milliseconds.
func GetMillisFromEnv(envVar string, defaultValue time.Duration, minMS, maxMS int, log *logger.Logger) time.Duration {
	ms := GetIntFromEnv(envVar, int(defaultValue/time.Millisecond), minMS, maxMS, log)
	return time.Duration(ms) * time.Millisecond
}

// GetStringFromEnv returns the trimmed value of envVar, or defaultValue when
// it is unset or blank.
func GetStringFromEnv(envVar, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(envVar)); v != "" {
		return v
	}
	return defaultValue
}
