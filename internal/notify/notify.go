package notify

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gen2brain/beeep"
)

// Desktop delivers user-facing messages as desktop notifications with a
// stderr echo. It satisfies the transport's Notifier interface.
type Desktop struct {
	title   string
	enabled bool
	logger  *slog.Logger
}

func NewDesktop(enabled bool, logger *slog.Logger) *Desktop {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Desktop{
		title:   "SolidTime",
		enabled: enabled,
		logger:  logger,
	}
}

// Notify shows one message. The duration is a hint; beeep delegates
// dismissal to the desktop environment, so it is recorded only in the
// log.
func (d *Desktop) Notify(message string, duration time.Duration) {
	d.logger.Debug("notification", "message", message, "duration", duration)

	if !d.enabled {
		fmt.Fprintln(os.Stderr, message)
		return
	}
	if err := beeep.Notify(d.title, message, ""); err != nil {
		d.logger.Debug("desktop notification failed", "error", err)
	}
}
