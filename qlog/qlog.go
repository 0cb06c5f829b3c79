// Package qlog defines the leveled logging sink used throughout this
// module, satisfied by *zap.SugaredLogger the way the rest of the
// corpus wires zap: one process-wide sugared logger, passed down by
// constructor rather than reached for as a global.
package qlog

// Logger is the minimal leveled-logging surface session and server
// depend on.
type Logger interface {
	Debugf(template string, args ...any)
	Infof(template string, args ...any)
	Warnf(template string, args ...any)
	Errorf(template string, args ...any)
}

// Nop is a Logger that discards everything, handy for tests that don't
// care about log output.
type Nop struct{}

func (Nop) Debugf(string, ...any) {}
func (Nop) Infof(string, ...any)  {}
func (Nop) Warnf(string, ...any)  {}
func (Nop) Errorf(string, ...any) {}
