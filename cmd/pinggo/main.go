package main

import (
	"log/slog"
	"os"

	"pinggo/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		slog.Error("pinggo.exit", "err", err)
		os.Exit(1)
	}
}
