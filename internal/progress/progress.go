// Package progress carries per-frame and per-file events out of the batch drivers
// so that the drivers themselves never print.
package progress

import (
	"time"

	"github.com/rs/zerolog"
)

const (
	StageConvert   = "convert"
	StageIntegrate = "integrate"
	StageStream    = "stream"
)

// Event describes one processed item, or the end of a run when Finished is set.
type Event struct {
	Stage    string
	Index    int // 1-based
	Total    int // 0 when unknown
	Source   string
	Output   string
	Err      error
	Elapsed  time.Duration
	Finished bool
}

type Observer interface {
	Observe(Event)
}

type Func func(Event)

func (f Func) Observe(e Event) { f(e) }

type nop struct{}

func (nop) Observe(Event) {}

// Nop discards events.
var Nop Observer = nop{}

type multi []Observer

func (m multi) Observe(e Event) {
	for _, o := range m {
		o.Observe(e)
	}
}

// Multi fans each event out to every non-nil observer.
func Multi(observers ...Observer) Observer {
	var m multi
	for _, o := range observers {
		if o != nil {
			m = append(m, o)
		}
	}
	if len(m) == 0 {
		return Nop
	}
	return m
}

// Or returns o, or Nop when o is nil.
func Or(o Observer) Observer {
	if o == nil {
		return Nop
	}
	return o
}

type logObserver struct {
	logger zerolog.Logger
}

// Log writes events to a zerolog logger.
func Log(logger zerolog.Logger) Observer {
	return logObserver{logger: logger}
}

func (l logObserver) Observe(e Event) {
	if e.Finished {
		ev := l.logger.Info()
		if e.Err != nil {
			ev = l.logger.Error().Err(e.Err)
		}
		ev.Str("stage", e.Stage).Int("processed", e.Index).Int("total", e.Total).
			Str("output", e.Output).Dur("elapsed", e.Elapsed).Msg("done")
		return
	}
	if e.Err != nil {
		l.logger.Error().Err(e.Err).Str("stage", e.Stage).Int("index", e.Index).
			Int("total", e.Total).Str("source", e.Source).Msg("item failed")
		return
	}
	l.logger.Info().Str("stage", e.Stage).Int("index", e.Index).Int("total", e.Total).
		Str("source", e.Source).Str("output", e.Output).Msg("processed")
}
