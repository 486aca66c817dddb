//go:build goat_logiface_slog

package goat

import (
	"log/slog"

	"github.com/joeycumines/logiface"
	islog "github.com/joeycumines/logiface-slog"
)

// NewSlogLogger builds a Transport-compatible logger backed by log/slog,
// via the workspace's slog adapter for logiface. A nil handler defaults to
// slog.Default()'s handler. Pass the result to WithLogger.
func NewSlogLogger(handler slog.Handler, level logiface.Level) *logiface.Logger[logiface.Event] {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return logiface.New[*islog.Event](
		islog.NewLogger(handler, islog.WithLevel(level)),
	).Logger()
}
