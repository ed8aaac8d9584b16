package txbuilder

import "github.com/btcsuite/btclog"

var log = btclog.Disabled

// UseLogger installs a new subsystem logger for this package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
