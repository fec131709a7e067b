// Package logging builds the daemon's zerolog root logger and the
// per-category sub-loggers named in spec.md section 6.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Category names the functional area a log line belongs to, matching the
// severity/category model in spec.md section 6.
type Category string

const (
	Main    Category = "main"
	Packet  Category = "packet"
	PPPoED  Category = "pppoed"
	PPP     Category = "ppp"
	LCP     Category = "lcp"
	IPCP    Category = "ipcp"
	CHAP    Category = "chap"
	Auth    Category = "auth"
	AAA     Category = "aaa"
	Session Category = "session"
)

// New builds the root logger: level from levelName (falls back to Info on
// an unrecognized value), JSON to w unless pretty requests a
// human-readable console writer.
func New(w io.Writer, levelName string, pretty bool) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(levelName))
	if err != nil {
		level = zerolog.InfoLevel
	}

	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Default builds a root logger writing JSON to stderr at info level, for
// callers that haven't loaded a config yet (early startup, tests).
func Default() zerolog.Logger {
	return New(os.Stderr, "info", false)
}

// For returns root scoped to category, the sub-logger every component
// should log through.
func For(root zerolog.Logger, category Category) zerolog.Logger {
	return root.With().Str("category", string(category)).Logger()
}
