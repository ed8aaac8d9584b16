package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	flags "github.com/jessevdk/go-flags"

	"github.com/btcsuite/btcutil"

	"github.com/breez/paychan/demo"
)

func main() {
	if err := paychandMain(os.Args[1:]); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// paychandMain is the true entry point, kept separate from main so
// deferred cleanup always runs before os.Exit, the same split
// daemon.LndMain uses.
func paychandMain(args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	if err := initLogRotator(
		filepath.Join(cfg.LogDir, cfg.LogFilename),
		cfg.MaxLogFileSize, cfg.MaxLogFiles,
	); err != nil {
		return err
	}
	setLogLevels(cfg.DebugLevel)

	net, err := cfg.netParams()
	if err != nil {
		return err
	}
	increments, err := cfg.increments()
	if err != nil {
		return err
	}

	expireTime := cfg.ExpireTime
	if expireTime == 0 {
		expireTime = time.Now().Unix() + defaultExpireSeconds
	}

	pchdLog.Infof("starting simulated channel: network=%v totalvalue=%v",
		cfg.Network, cfg.TotalValue)

	report, err := demo.RunChannel(demo.Config{
		TotalValue:    btcutil.Amount(cfg.TotalValue),
		ExpireTime:    expireTime,
		NetParams:     net,
		BroadcastRate: cfg.BroadcastRate,
		Increments:    increments,
	})
	if err != nil {
		pchdLog.Errorf("channel run failed: %v", err)
		return err
	}

	pchdLog.Infof("channel closed: funding=%v close=%v bestValueToMe=%v clientLeft=%v",
		report.FundingTxID, report.CloseTxID, report.BestValueToMe, report.ClientLeft)

	return nil
}
