//go:build goat_logiface_slog

package goat

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/logiface"
)

func TestNewSlogLogger_WritesThroughHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(slog.NewTextHandler(&buf, nil), logiface.LevelInformational)
	require.NotNil(t, logger)

	logger.Info().Log("hello from goat")

	require.Contains(t, buf.String(), "hello from goat")
}

func TestNewSlogLogger_NilHandlerDefaultsToSlogDefault(t *testing.T) {
	logger := NewSlogLogger(nil, logiface.LevelInformational)
	require.NotNil(t, logger)
	// Must not panic even with no explicit handler configured.
	logger.Debug().Log("noop unless default handler's level allows it")
}

func TestNewTransport_WithLoggerOptionAcceptsSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(slog.NewTextHandler(&buf, nil), logiface.LevelInformational)

	ch := newFakeChannel()
	tr := NewTransport(ch, WithLogger(logger))
	tr.Reset(newFakeChannel(), nil)

	require.Contains(t, buf.String(), "channel reset")
}
