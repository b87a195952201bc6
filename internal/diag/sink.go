// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package diag

import (
	"context"
	"encoding/hex"
	"log/slog"
)

// Sink receives transaction events. Implementations must be safe for
// concurrent use and must not block for long.
type Sink interface {
	Record(event Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Record(Event) {}

// SlogSink writes events to an slog.Logger, failed transactions at error level.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Record(event Event) {
	attrs := []slog.Attr{
		slog.String("tid", event.TransactionID),
		slog.String("outcome", event.Outcome),
		slog.Any("items", event.Items),
		slog.String("request", hex.EncodeToString(event.Request)),
		slog.Duration("duration", event.Duration),
	}
	if event.Device != "" {
		attrs = append(attrs, slog.String("device", event.Device))
	}
	if event.Response != nil {
		attrs = append(attrs, slog.String("response", hex.EncodeToString(event.Response)))
	}
	for _, m := range event.Mismatches {
		attrs = append(attrs, slog.Group("mismatch",
			slog.String("field", m.Field),
			slog.Int("want", int(m.Want)),
			slog.Int("got", int(m.Got)),
		))
	}
	if event.ExceptionCode != nil {
		attrs = append(attrs, slog.Int("exception", int(*event.ExceptionCode)))
	}
	if event.Field != "" {
		attrs = append(attrs, slog.String("field", event.Field))
	}
	if event.Error != "" {
		attrs = append(attrs, slog.String("err", event.Error))
	}

	level, msg := slog.LevelInfo, "Mask write confirmed"
	if !event.Good {
		level, msg = slog.LevelError, "Mask write failed"
	}
	s.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// MultiSink fans events out to several sinks.
type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Record(event Event) {
	for _, s := range m.sinks {
		s.Record(event)
	}
}

var (
	_ Sink = NopSink{}
	_ Sink = (*SlogSink)(nil)
	_ Sink = (*MultiSink)(nil)
	_ Sink = (*FileSink)(nil)
)
