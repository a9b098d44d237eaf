// Package main provides the entry point for the attendance CLI.
package main

import (
	"context"
	"os"

	"github.com/warp/attendance-engine/cmd/attendance/app"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	application := app.New(version)

	ctx, cancel := app.ContextWithSignals(context.Background())
	defer cancel()

	err := application.Execute(ctx, os.Args[1:])
	if closeErr := application.Close(); closeErr != nil {
		application.Logger().Error().Err(closeErr).Msg("close store")
	}
	app.ExitOnError(err)
}
