package demo

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcutil"

	"github.com/breez/paychan/channel"
	"github.com/breez/paychan/txbuilder"
)

// Config describes a single simulated channel run (the shape
// cmd/paychand's go-flags options and cmd/paycli's flags both populate).
type Config struct {
	TotalValue    btcutil.Amount
	ExpireTime    int64
	NetParams     *chaincfg.Params
	BroadcastRate float64

	// Increments is the sequence of payment amounts the client sends,
	// applied in order.
	Increments []btcutil.Amount
}

// Report summarizes a completed (or failed) simulated run for the
// command-line surfaces to print.
type Report struct {
	FundingTxID   string
	CloseTxID     string
	BestValueToMe btcutil.Amount
	ClientLeft    btcutil.Amount
}

// RunChannel drives a full client/server handshake (spec.md §4.1/§4.2),
// applies cfg.Increments, and closes cooperatively. It's the shared
// engine behind both cmd/paychand (go-flags options, rotating log file)
// and cmd/paycli (urfave/cli flags); each runs one channel and exits.
func RunChannel(cfg Config) (*Report, error) {
	net := cfg.NetParams
	if net == nil {
		net = &chaincfg.RegressionNetParams
	}

	clientKey, err := newRandomKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate client key: %w", err)
	}
	serverKey, err := newRandomKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate server key: %w", err)
	}

	clientAddr, err := btcutil.NewAddressPubKey(clientKey.SerializeCompressed(), net)
	if err != nil {
		return nil, err
	}
	changeScript, err := txscript.PayToAddrScript(clientAddr.AddressPubKeyHash())
	if err != nil {
		return nil, err
	}
	serverAddr, err := btcutil.NewAddressPubKey(serverKey.SerializeCompressed(), net)
	if err != nil {
		return nil, err
	}
	serverScript, err := txscript.PayToAddrScript(serverAddr.AddressPubKeyHash())
	if err != nil {
		return nil, err
	}

	clientWallet := NewMemWallet(changeScript)
	serverWallet := NewMemWallet(serverScript)
	broadcaster := NewMemBroadcaster(cfg.BroadcastRate)

	clientParams := channel.Parameters{
		ClientKey:  clientKey,
		ServerKey:  channel.KeyPair{Pub: serverKey.Pub},
		TotalValue: cfg.TotalValue,
		ExpireTime: cfg.ExpireTime,
		NetParams:  net,
	}
	serverParams := channel.Parameters{
		ClientKey:  channel.KeyPair{Pub: clientKey.Pub},
		ServerKey:  serverKey,
		TotalValue: cfg.TotalValue,
		ExpireTime: cfg.ExpireTime,
		NetParams:  net,
	}

	client := channel.NewClientState(clientParams, clientWallet)
	server := channel.NewServerState(serverParams, serverWallet, broadcaster, serverScript)

	log.Infof("initiating channel: total=%v expire=%v", cfg.TotalValue, cfg.ExpireTime)
	if err := client.Initiate(); err != nil {
		return nil, fmt.Errorf("client initiate: %w", err)
	}

	multisigScript, err := redeemScript(clientKey, serverKey, net)
	if err != nil {
		return nil, err
	}
	clientWallet.SetRedeemScript(multisigScript)
	serverWallet.SetRedeemScript(multisigScript)

	refundTx, err := client.GetIncompleteRefundTransaction()
	if err != nil {
		return nil, fmt.Errorf("get incomplete refund: %w", err)
	}

	serverSig, err := server.ProvideRefundTransaction(refundTx, clientKey.SerializeCompressed())
	if err != nil {
		return nil, fmt.Errorf("server provide refund: %w", err)
	}
	if err := client.ProvideRefundSignature(serverSig); err != nil {
		return nil, fmt.Errorf("client provide refund sig: %w", err)
	}

	fundingTx, err := client.GetMultisigContract()
	if err != nil {
		return nil, fmt.Errorf("get multisig contract: %w", err)
	}

	fundingFuture, err := server.ProvideMultiSigContract(fundingTx)
	if err != nil {
		return nil, fmt.Errorf("server provide multisig contract: %w", err)
	}
	if _, err := fundingFuture.Await(); err != nil {
		return nil, fmt.Errorf("funding broadcast: %w", err)
	}
	// The future's settle callback moves the server to READY on its own
	// goroutine, so Await returning does not mean the server is READY yet.
	for server.State() == channel.ServerStateWaitingForMultisigAcceptance {
		time.Sleep(time.Millisecond)
	}
	log.Infof("channel open, funding txid=%v", fundingTx.TxHash())

	for _, delta := range cfg.Increments {
		sig, err := client.IncrementPaymentBy(delta)
		if err != nil {
			return nil, fmt.Errorf("client increment by %v: %w", delta, err)
		}
		refundAmt := client.ChannelValueLeft()
		if err := server.IncrementPayment(refundAmt, sig); err != nil {
			return nil, fmt.Errorf("server accept increment: %w", err)
		}
		log.Debugf("payment accepted, bestValueToMe=%v", server.BestValueToMe())
	}

	closeFuture, err := server.Close()
	if err != nil {
		return nil, fmt.Errorf("close: %w", err)
	}
	closeTx, err := closeFuture.Await()
	if err != nil {
		return nil, fmt.Errorf("close broadcast: %w", err)
	}
	log.Infof("channel closed, close txid=%v", closeTx.TxHash())

	return &Report{
		FundingTxID:   fundingTx.TxHash().String(),
		CloseTxID:     closeTx.TxHash().String(),
		BestValueToMe: server.BestValueToMe(),
		ClientLeft:    client.ChannelValueLeft(),
	}, nil
}

func newRandomKeyPair() (channel.KeyPair, error) {
	priv, err := btcec.NewPrivateKey(btcec.S256())
	if err != nil {
		return channel.KeyPair{}, err
	}
	return channel.NewKeyPair(priv), nil
}

func redeemScript(clientKey, serverKey channel.KeyPair, net *chaincfg.Params) ([]byte, error) {
	clientAddr, err := btcutil.NewAddressPubKey(clientKey.SerializeCompressed(), net)
	if err != nil {
		return nil, err
	}
	serverAddr, err := btcutil.NewAddressPubKey(serverKey.SerializeCompressed(), net)
	if err != nil {
		return nil, err
	}
	return txbuilder.MultisigScript(clientAddr, serverAddr)
}
