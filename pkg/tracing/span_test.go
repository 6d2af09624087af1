package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/logger"
)

func TestSpanTree(t *testing.T) {
	ctx := logger.WithRequestID(context.Background(), "req-42")
	ctx, root := Start(ctx, "search")
	assert.Same(t, root, FromContext(ctx))

	_, retrieve := Start(ctx, "retrieve")
	retrieve.SetAttr("candidates", 12)
	retrieve.End(nil)
	_, rank := Start(ctx, "rank")
	rank.End(nil)

	assert.Equal(t, "req-42", root.TraceID)
	assert.Equal(t, "req-42", rank.TraceID)
	children := root.Children()
	require.Len(t, children, 2)
	assert.Equal(t, "retrieve", children[0].Name)
	assert.Equal(t, "rank", children[1].Name)
}

func TestRootEndLogsTree(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx, root := Start(context.Background(), "search")
	_, child := Start(ctx, "rank")
	child.SetAttr("hits", 3)
	child.End(log)
	assert.Empty(t, buf.String())

	root.End(log)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "span=search")
	assert.Contains(t, lines[0], "depth=0")
	assert.Contains(t, lines[1], "span=rank")
	assert.Contains(t, lines[1], "hits=3")
}

func TestFromContextWithoutSpan(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
}
