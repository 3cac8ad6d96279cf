package logger

import "go.uber.org/zap"

// Symbol-aware helpers. The glyph goes into the "symbol" field so log lines
// stay greppable by subsystem while messages stay clean:
//
//	log := logger.WithSymbol(s.log, sym.Pulse)
//	log.Infow("Job finished", "job_id", id)

// WithSymbol returns l tagged with the given glyph.
func WithSymbol(l *zap.SugaredLogger, glyph string) *zap.SugaredLogger {
	if l == nil {
		l = Logger
	}
	return l.With(FieldSymbol, glyph)
}
