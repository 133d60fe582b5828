//go:build !integration

package logger_test

import (
	"fmt"
	"os"

	"github.com/sitebuild/sitebuild/pkg/logger"
)

// Example functions have no *testing.T, so they set DEBUG with os.Setenv.

func ExampleNew() {
	os.Setenv("DEBUG", "orchestrator:*")
	defer os.Unsetenv("DEBUG")

	log := logger.New("orchestrator:run")

	if log.Enabled() {
		fmt.Println("Logger is enabled")
	}

	// Output: Logger is enabled
}

func ExampleLogger_Printf() {
	os.Setenv("DEBUG", "*")
	defer os.Unsetenv("DEBUG")

	log := logger.New("pipeline:sass")

	log.Printf("Compiling %d stylesheets", 3)

	// Output to stderr: pipeline:sass Compiling 3 stylesheets +0s
}

func ExampleNew_patterns() {
	// Enable all loggers
	os.Setenv("DEBUG", "*")

	// Enable every logger under the pipeline namespace
	os.Setenv("DEBUG", "pipeline:*")

	// Enable two namespaces
	os.Setenv("DEBUG", "pipeline:*,watcher:*")

	// Enable everything but the watcher
	os.Setenv("DEBUG", "*,-watcher:watcher")

	defer os.Unsetenv("DEBUG")
}
