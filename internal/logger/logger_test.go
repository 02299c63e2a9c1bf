package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCtx(t *testing.T) {
	var (
		buf  bytes.Buffer
		l    = New(&buf, "json", slog.LevelInfo)
		base = Ctx(context.Background(), slog.String("source", "eindhoven"))
		a    = Ctx(base, slog.String("user_id", "a"))
		b    = Ctx(base, slog.String("user_id", "b"))
	)

	l.With("run", 1).InfoContext(a, "sent")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "eindhoven", rec["source"])
	assert.Equal(t, "a", rec["user_id"])
	assert.EqualValues(t, 1, rec["run"])

	// Siblings derived from the same parent don't leak into each other.
	assert.Len(t, Attrs(a), 2)
	assert.Equal(t, "b", Attrs(b)[1].Value.String())
	assert.Empty(t, Attrs(context.Background()))
}
