package helper

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPrettyHandler(t *testing.T) {
	t.Run("Create PrettyHandler with default options", func(t *testing.T) {
		var buf bytes.Buffer
		handler := NewPrettyHandler(&buf, PrettyHandlerOptions{})

		assert.NotNil(t, handler, "Expected NewPrettyHandler to return a non-nil handler")
		assert.NotNil(t, handler.Handler, "Expected handler to have a non-nil Handler field")
		assert.NotNil(t, handler.l, "Expected handler to have a non-nil logger field")
	})

	t.Run("Create PrettyHandler with custom level and source", func(t *testing.T) {
		var buf bytes.Buffer
		handler := NewPrettyHandler(&buf, PrettyHandlerOptions{
			SlogOpts: slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
			},
		})

		assert.NotNil(t, handler, "Expected NewPrettyHandler to return a non-nil handler")
	})
}

func TestPrettyHandlerHandle(t *testing.T) {
	ctx := context.Background()

	newHandler := func(level slog.Level) (*PrettyHandler, *bytes.Buffer) {
		var buf bytes.Buffer
		handler := NewPrettyHandler(&buf, PrettyHandlerOptions{
			SlogOpts: slog.HandlerOptions{Level: level},
		})
		return handler, &buf
	}

	t.Run("Each level is rendered with its label", func(t *testing.T) {
		levels := map[slog.Level]string{
			slog.LevelDebug: "DEBUG:",
			slog.LevelInfo:  "INFO:",
			slog.LevelWarn:  "WARN:",
			slog.LevelError: "ERROR:",
		}

		for level, label := range levels {
			handler, buf := newHandler(slog.LevelDebug)
			record := slog.NewRecord(time.Now(), level, "dictionary updated", 0)

			err := handler.Handle(ctx, record)

			require.NoError(t, err, "Expected Handle to not return an error")
			assert.Contains(t, buf.String(), label, "Expected output to contain the level label")
			assert.Contains(t, buf.String(), "dictionary updated", "Expected output to contain the message")
		}
	})

	t.Run("Attributes are rendered as JSON", func(t *testing.T) {
		handler, buf := newHandler(slog.LevelInfo)
		record := slog.NewRecord(time.Now(), slog.LevelInfo, "entity created", 0)
		record.AddAttrs(
			slog.String("canonical", "PostgreSQL"),
			slog.Int64("entityID", 42),
			slog.Bool("cached", false),
		)

		err := handler.Handle(ctx, record)

		require.NoError(t, err, "Expected Handle to not return an error")
		output := buf.String()
		assert.Contains(t, output, "entity created", "Expected output to contain the message")
		assert.Contains(t, output, "canonical", "Expected output to contain attribute keys")
		assert.Contains(t, output, "PostgreSQL", "Expected output to contain string values")
		assert.Contains(t, output, "42", "Expected output to contain numeric values")
		assert.Contains(t, output, "false", "Expected output to contain bool values")
	})

	t.Run("Record without attributes renders an empty object", func(t *testing.T) {
		handler, buf := newHandler(slog.LevelInfo)
		record := slog.NewRecord(time.Now(), slog.LevelInfo, "snapshot invalidated", 0)

		err := handler.Handle(ctx, record)

		require.NoError(t, err, "Expected Handle to not return an error")
		assert.Contains(t, buf.String(), "{}", "Expected output to contain empty JSON object for attributes")
	})

	t.Run("Nested attribute values are rendered", func(t *testing.T) {
		handler, buf := newHandler(slog.LevelInfo)
		record := slog.NewRecord(time.Now(), slog.LevelInfo, "fragment collected", 0)
		record.AddAttrs(slog.Any("properties", map[string]interface{}{
			"name": "Acme Corp",
		}))

		err := handler.Handle(ctx, record)

		require.NoError(t, err, "Expected Handle to not return an error")
		assert.Contains(t, buf.String(), "properties", "Expected output to contain the attribute key")
	})

	t.Run("Timestamp is rendered in brackets with milliseconds", func(t *testing.T) {
		handler, buf := newHandler(slog.LevelInfo)
		record := slog.NewRecord(time.Now(), slog.LevelInfo, "time test", 0)

		err := handler.Handle(ctx, record)

		require.NoError(t, err, "Expected Handle to not return an error")
		assert.Regexp(t, `\[\d{2}:\d{2}:\d{2}\.\d{3}\]`, buf.String(),
			"Expected output to contain properly formatted timestamp")
	})
}
