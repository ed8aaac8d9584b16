package main

import (
	"fmt"
	"strconv"
	"strings"

	flags "github.com/jessevdk/go-flags"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcutil"
)

const (
	defaultLogFilename    = "paychand.log"
	defaultMaxLogFileSize = 10
	defaultMaxLogFiles    = 3
	defaultDebugLevel     = "info"

	defaultTotalValue    = btcutil.Amount(1_000_000)
	defaultExpireSeconds = int64(24 * 60 * 60)
	defaultBroadcastRate = 20.0
)

// config mirrors the long:"..."/description:"..." struct-tag convention
// every go-flags consumer in the corpus uses. It describes one simulated
// channel run: a client paying a server some number of increments before
// a cooperative close.
type config struct {
	LogDir         string `long:"logdir" description:"Directory to log output"`
	LogFilename    string `long:"logfilename" description:"File name of the log file"`
	MaxLogFileSize int    `long:"maxlogfilesize" description:"Maximum log file size in MB"`
	MaxLogFiles    int    `long:"maxlogfiles" description:"Maximum number of log files to keep"`
	DebugLevel     string `long:"debuglevel" description:"Logging level: trace, debug, info, warn, error, critical"`

	Network string `long:"network" description:"Which network to derive addresses for: mainnet, testnet, regtest, simnet"`

	TotalValue int64  `long:"totalvalue" description:"Total value of the channel, in satoshis"`
	ExpireTime int64  `long:"expiretime" description:"Absolute UNIX-seconds locktime at which the refund matures; 0 means now+24h"`
	Increments string `long:"increments" description:"Comma-separated list of payment increments, in satoshis, applied in order"`

	BroadcastRate float64 `long:"broadcastrate" description:"Simulated network admissions per second"`
}

// defaultConfig returns the configuration used when no flags override it.
func defaultConfig() config {
	return config{
		LogDir:         ".",
		LogFilename:    defaultLogFilename,
		MaxLogFileSize: defaultMaxLogFileSize,
		MaxLogFiles:    defaultMaxLogFiles,
		DebugLevel:     defaultDebugLevel,
		Network:        "regtest",
		TotalValue:     int64(defaultTotalValue),
		ExpireTime:     0,
		Increments:     "100000,100000,100000",
		BroadcastRate:  defaultBroadcastRate,
	}
}

// loadConfig parses args (typically os.Args[1:]) over the default
// configuration, following daemon/lnd.go's loadConfig/flags.NewParser
// convention.
func loadConfig(args []string) (*config, error) {
	cfg := defaultConfig()

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// netParams resolves the configured network name to its chaincfg.Params.
func (c *config) netParams() (*chaincfg.Params, error) {
	switch strings.ToLower(c.Network) {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "simnet":
		return &chaincfg.SimNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network %q", c.Network)
	}
}

// increments parses the comma-separated Increments field into amounts.
func (c *config) increments() ([]btcutil.Amount, error) {
	fields := strings.Split(c.Increments, ",")
	amts := make([]btcutil.Amount, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid increment %q: %w", f, err)
		}
		amts = append(amts, btcutil.Amount(v))
	}
	return amts, nil
}
