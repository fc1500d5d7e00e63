package observability

import (
	"context"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		l := NewLogger(tt.in, "json")
		assert.True(t, l.Enabled(context.Background(), tt.want), tt.in)
		assert.False(t, l.Enabled(context.Background(), tt.want-1), tt.in)
	}
}

func TestNewLogger_RespectsLevel(t *testing.T) {
	l := NewLogger("warn", "text")
	assert.False(t, l.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, l.Enabled(context.Background(), slog.LevelWarn))
}

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.ItemsProcessed.WithLabelValues("done").Inc()

	assert.InDelta(t, 1, testutil.ToFloat64(a.ItemsProcessed.WithLabelValues("done")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(b.ItemsProcessed.WithLabelValues("done")), 0)
}
