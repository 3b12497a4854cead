package logging

import (
	"io"
	"os"

	clog "github.com/charmbracelet/log"
)

// New returns a timestamped logger writing to w at the given level
// ("debug", "info", "warn", "error"). Unknown levels fall back to info.
func New(w io.Writer, level string) *clog.Logger {
	if w == nil {
		w = os.Stderr
	}
	l := clog.NewWithOptions(w, clog.Options{
		ReportTimestamp: true,
		Prefix:          "strelkabot",
	})
	lvl, err := clog.ParseLevel(level)
	if err != nil {
		lvl = clog.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}

// Discard is a logger that drops everything, for tests.
func Discard() *clog.Logger {
	return clog.New(io.Discard)
}
