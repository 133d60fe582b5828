package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sitebuild/sitebuild/pkg/cli"
	"github.com/sitebuild/sitebuild/pkg/logger"
	"github.com/sitebuild/sitebuild/pkg/orchestrator"
)

var mainLog = logger.New("main")

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	app     = cli.NewApp()
	rootCmd = cli.NewRootCommand(app, version)
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		mainLog.Printf("Command failed: %v", err)
		fmt.Fprintln(os.Stderr, orchestrator.FormatError(err))
		stop()
		os.Exit(1)
	}
}
