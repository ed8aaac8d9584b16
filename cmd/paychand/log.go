package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"

	"github.com/breez/paychan/channel"
	"github.com/breez/paychan/chanstore"
	"github.com/breez/paychan/demo"
	"github.com/breez/paychan/sigcheck"
	"github.com/breez/paychan/txbuilder"
)

// logWriter sends logging output to standard output and, once the log
// rotator has been initialized, to its pipe as well, the same role
// daemon/log.go's build.LogWriter plays for every other subsystem.
type logWriter struct {
	RotatorPipe *io.PipeWriter
}

func (w *logWriter) Write(p []byte) (int, error) {
	os.Stdout.Write(p)
	if w.RotatorPipe != nil {
		w.RotatorPipe.Write(p)
	}
	return len(p), nil
}

var (
	writer     = &logWriter{}
	backendLog = btclog.NewBackend(writer)

	pchdLog = backendLog.Logger("PCHD")
	chanLog = backendLog.Logger("CHAN")
	txbLog  = backendLog.Logger("TXBL")
	sigLog  = backendLog.Logger("SIGC")
	stoLog  = backendLog.Logger("STOR")
	demoLog = backendLog.Logger("DEMO")

	subsystemLoggers = map[string]btclog.Logger{
		"PCHD": pchdLog,
		"CHAN": chanLog,
		"TXBL": txbLog,
		"SIGC": sigLog,
		"STOR": stoLog,
		"DEMO": demoLog,
	}
)

func init() {
	channel.UseLogger(chanLog)
	txbuilder.UseLogger(txbLog)
	sigcheck.UseLogger(sigLog)
	chanstore.UseLogger(stoLog)
	demo.UseLogger(demoLog)
}

// initLogRotator initializes the log rotator that writes logs to logFile
// and rolled files in the same directory, following daemon/log.go's
// function of the same name.
func initLogRotator(logFile string, maxLogFileSize, maxLogFiles int) error {
	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %v", err)
	}
	r, err := rotator.New(logFile, int64(maxLogFileSize*1024), false, maxLogFiles)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %v", err)
	}

	pr, pw := io.Pipe()
	go r.Run(pr)

	writer.RotatorPipe = pw

	return nil
}

// setLogLevels sets every subsystem logger to level, ignoring invalid
// levels by defaulting to info per btclog.LevelFromString's convention.
func setLogLevels(level string) {
	lvl, _ := btclog.LevelFromString(level)
	for _, logger := range subsystemLoggers {
		logger.SetLevel(lvl)
	}
}
