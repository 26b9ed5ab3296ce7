package software

import (
	"log/slog"

	"github.com/gogpu/framepipe"
)

// slogger returns the logger configured with framepipe.SetLogger.
func slogger() *slog.Logger { return framepipe.Logger() }
