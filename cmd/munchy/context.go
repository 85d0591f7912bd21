package main

import (
	"context"
	"io"

	"github.com/charmbracelet/log"

	"munchykit/core"
	"munchykit/engine"
)

// Context is handed to every command's Run method.
type Context struct {
	Service *engine.TrackerService
	User    core.UserID
	Out     io.Writer
	Logger  *log.Logger
}

func logPersistFailure(logger *log.Logger) func(context.Context, core.Event) {
	return func(_ context.Context, e core.Event) {
		logger.Error("could not save changes", "kind", e.Metadata["kind"], "error", e.Metadata["error"])
	}
}
