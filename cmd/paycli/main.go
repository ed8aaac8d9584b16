package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcutil"

	"github.com/breez/paychan/demo"
)

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[paycli] %v\n", err)
	os.Exit(1)
}

var runCommand = cli.Command{
	Name:      "run",
	Usage:     "drive a single channel through open, payment, and cooperative close",
	ArgsUsage: "",
	Description: `
	Opens a channel against an in-memory wallet/broadcaster harness,
	applies a sequence of payment increments, and closes cooperatively,
	printing a summary of the resulting transactions.`,
	Flags: []cli.Flag{
		cli.Int64Flag{
			Name:  "totalvalue",
			Value: 1_000_000,
			Usage: "total channel value, in satoshis",
		},
		cli.Int64Flag{
			Name:  "expiretime",
			Usage: "absolute UNIX-seconds refund locktime (default: now+24h)",
		},
		cli.StringFlag{
			Name:  "network",
			Value: "regtest",
			Usage: "mainnet, testnet, regtest, or simnet",
		},
		cli.StringFlag{
			Name:  "increments",
			Value: "100000,100000,100000",
			Usage: "comma-separated payment increments, in satoshis",
		},
		cli.Float64Flag{
			Name:  "broadcastrate",
			Value: 20,
			Usage: "simulated network admissions per second",
		},
	},
	Action: runChannel,
}

func runChannel(ctx *cli.Context) error {
	net, err := parseNetwork(ctx.String("network"))
	if err != nil {
		return err
	}

	increments, err := parseIncrements(ctx.String("increments"))
	if err != nil {
		return err
	}

	expireTime := ctx.Int64("expiretime")
	if expireTime == 0 {
		expireTime = time.Now().Unix() + 24*60*60
	}

	report, err := demo.RunChannel(demo.Config{
		TotalValue:    btcutil.Amount(ctx.Int64("totalvalue")),
		ExpireTime:    expireTime,
		NetParams:     net,
		BroadcastRate: ctx.Float64("broadcastrate"),
		Increments:    increments,
	})
	if err != nil {
		return err
	}

	fmt.Printf("funding txid:    %v\n", report.FundingTxID)
	fmt.Printf("close txid:      %v\n", report.CloseTxID)
	fmt.Printf("bestValueToMe:   %v\n", report.BestValueToMe)
	fmt.Printf("client left:     %v\n", report.ClientLeft)

	return nil
}

func parseNetwork(name string) (*chaincfg.Params, error) {
	switch strings.ToLower(name) {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "simnet":
		return &chaincfg.SimNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network %q", name)
	}
}

func parseIncrements(raw string) ([]btcutil.Amount, error) {
	fields := strings.Split(raw, ",")
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

func main() {
	app := cli.NewApp()
	app.Name = "paycli"
	app.Usage = "drive a unidirectional micropayment channel"
	app.Commands = []cli.Command{
		runCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}
