package channel

import "github.com/btcsuite/btclog"

// log is the package-level subsystem logger. It is a no-op logger until
// UseLogger is called, following the same convention daemon/log.go uses to
// wire up every other subsystem of the parent project.
var log = btclog.Disabled

// UseLogger installs a new subsystem logger for this package, allowing a
// daemon binary to redirect channel's log output into its own rotating log
// file alongside every other subsystem.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// logClosure defers the cost of expensive log arguments until the message
// is actually going to be emitted.
type logClosure func() string

func (c logClosure) String() string {
	return c()
}

func newLogClosure(c func() string) logClosure {
	return logClosure(c)
}
