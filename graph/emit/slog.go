package emit

import (
	"context"
	"log/slog"
	"sort"
)

// SlogEmitter writes events as structured records to a slog.Logger.
// Failures log at warn level, skips at debug and everything else at info.
type SlogEmitter struct {
	logger *slog.Logger
}

// NewSlogEmitter returns an emitter logging to logger, or slog.Default when nil.
func NewSlogEmitter(logger *slog.Logger) *SlogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogEmitter{logger: logger.With(slog.String("component", "engine"))}
}

// Emit logs event with its run, wave and node as structured attributes.
func (s *SlogEmitter) Emit(event Event) {
	level := slog.LevelInfo
	switch {
	case event.Failed():
		level = slog.LevelWarn
	case event.Msg == MsgNodeSkipped || event.Msg == MsgWaveStarted:
		level = slog.LevelDebug
	}

	ctx := context.Background()
	if !s.logger.Enabled(ctx, level) {
		return
	}

	attrs := []slog.Attr{
		slog.String("run_id", event.RunID),
		slog.Int("wave", event.Wave),
	}
	if event.NodeID != "" {
		attrs = append(attrs, slog.String("node_id", event.NodeID), slog.String("node_type", event.NodeType))
	}

	keys := make([]string, 0, len(event.Meta))
	for k := range event.Meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, event.Meta[k]))
	}

	s.logger.LogAttrs(ctx, level, event.Msg, attrs...)
}
