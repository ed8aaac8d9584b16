package channel

import (
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"

	"github.com/breez/paychan/sigcheck"
	"github.com/breez/paychan/txbuilder"
)

// ClientState drives the payer side of the channel handshake (spec.md
// §4.1). Method bodies hold mu for their duration, the same discipline
// lnwallet.ChannelReservation uses around its RWMutex.
type ClientState struct {
	mu sync.Mutex

	params Parameters
	wallet Wallet
	state  ClientChannelState

	clientScript []byte // this client's own P2PKH payout script

	fundingTx       *wire.MsgTx
	multisigScript  []byte
	fundingOutpoint wire.OutPoint

	refundTx        *wire.MsgTx
	serverRefundSig []byte
	clientRefundSig []byte

	currentPayment   btcutil.Amount
	latestPaymentSig []byte

	stored bool
}

// NewClientState creates a channel in the NEW state. wallet supplies
// coins, signs inputs, and receives the finished transactions.
func NewClientState(params Parameters, wallet Wallet) *ClientState {
	return &ClientState{
		params: params,
		wallet: wallet,
		state:  ClientStateNew,
	}
}

// State returns the channel's current lifecycle state.
func (c *ClientState) State() ClientChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Initiate builds (unsigned) the funding transaction and the refund
// transaction that spends it back to the client. Required state: NEW.
func (c *ClientState) Initiate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != ClientStateNew {
		return illegalState("Initiate", c.state, ClientStateNew)
	}

	minAffordable := MinNonDustOutput + ReferenceMinFee
	if c.params.TotalValue < minAffordable {
		return valueOutOfRange("channel value too small to afford refund fees, can't afford",
			c.params.TotalValue)
	}

	refundFees := c.params.RefundFees()

	inputs, changeOut, err := c.wallet.SelectCoins(c.params.TotalValue + refundFees)
	if err != nil {
		return valueOutOfRange(
			fmt.Sprintf("unable to pay required fee: %v", err), c.params.TotalValue+refundFees)
	}

	clientAddrPub, err := btcutil.NewAddressPubKey(
		c.params.ClientKey.SerializeCompressed(), c.params.NetParams,
	)
	if err != nil {
		return err
	}
	serverAddrPub, err := btcutil.NewAddressPubKey(
		c.params.ServerKey.SerializeCompressed(), c.params.NetParams,
	)
	if err != nil {
		return err
	}
	multisigScript, err := txbuilder.MultisigScript(clientAddrPub, serverAddrPub)
	if err != nil {
		return err
	}

	var changeAmt btcutil.Amount
	var changeScript []byte
	if changeOut != nil {
		changeAmt = btcutil.Amount(changeOut.Value)
		changeScript = changeOut.PkScript
	}

	fundingTx, err := txbuilder.BuildFunding(
		inputs, changeAmt, changeScript, multisigScript, c.params.TotalValue,
	)
	if err != nil {
		return err
	}

	c.clientScript = changeScript
	c.fundingTx = fundingTx
	c.multisigScript = multisigScript
	c.fundingOutpoint = wire.OutPoint{Hash: fundingTx.TxHash(), Index: 0}

	locktime := uint32(c.params.ExpireTime)
	c.refundTx = txbuilder.BuildRefund(
		&c.fundingOutpoint, c.clientScript, c.params.TotalValue-refundFees,
		locktime, RefundSequence,
	)

	c.state = ClientStateInitiated

	log.Debugf("client channel initiated, funding=%v refund locktime=%v",
		c.fundingOutpoint, locktime)

	return nil
}

// GetIncompleteRefundTransaction returns the refund transaction for the
// server to co-sign. Required state: INITIATED.
func (c *ClientState) GetIncompleteRefundTransaction() (*wire.MsgTx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != ClientStateInitiated {
		return nil, illegalState("GetIncompleteRefundTransaction", c.state, ClientStateInitiated)
	}
	return c.refundTx.Copy(), nil
}

// ProvideRefundSignature accepts the server's signature over the refund
// input, validates it, signs the client's own half, and commits the
// funding transaction to the wallet as pending. Required state:
// INITIATED, and may only be called once.
func (c *ClientState) ProvideRefundSignature(sig []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != ClientStateInitiated {
		return illegalState("ProvideRefundSignature", c.state, ClientStateInitiated)
	}

	if len(sig) == 0 {
		return verification("empty refund signature")
	}
	hashType := sig[len(sig)-1]
	rawSig := sig[:len(sig)-1]

	if _, err := sigcheck.IsCanonicalEncoding(rawSig); err != nil {
		return verification(err.(*sigcheck.VerificationError).Msg)
	}
	if err := sigcheck.AllowedSigHashFor(sigcheck.Refund, hashType); err != nil {
		return verification(err.(*sigcheck.VerificationError).Msg)
	}

	ok, err := sigcheck.Verify(
		rawSig, c.params.ServerKey.Pub, c.multisigScript, c.refundTx, 0,
		txscript.SigHashType(hashType),
	)
	if err != nil {
		return err
	}
	if !ok {
		return verification("server refund signature does not verify")
	}

	clientSig, err := c.wallet.SignInput(
		c.refundTx, 0, c.params.ClientKey.Priv, txscript.SigHashAll,
	)
	if err != nil {
		return err
	}

	c.serverRefundSig = append([]byte(nil), sig...)
	c.clientRefundSig = clientSig

	sigScript, err := multisigSigScript(c.clientRefundSig, c.serverRefundSig)
	if err != nil {
		return err
	}
	c.refundTx.TxIn[0].SignatureScript = sigScript

	if err := c.wallet.CommitPending(c.fundingTx); err != nil {
		return err
	}

	c.state = ClientStateProvideMultisigContractToServer

	return nil
}

// GetMultisigContract returns the funding transaction, transitioning to
// READY on its first call. Required state: at or beyond
// PROVIDE_MULTISIG_CONTRACT_TO_SERVER.
func (c *ClientState) GetMultisigContract() (*wire.MsgTx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state < ClientStateProvideMultisigContractToServer {
		return nil, illegalState("GetMultisigContract", c.state, ClientStateProvideMultisigContractToServer)
	}

	if c.state == ClientStateProvideMultisigContractToServer {
		c.state = ClientStateReady
	}

	return c.fundingTx.Copy(), nil
}

// ChannelValueLeft returns the amount still available for the client to
// pay the server, i.e. the refund-protecting balance not yet spent.
func (c *ClientState) ChannelValueLeft() btcutil.Amount {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params.TotalValue - c.currentPayment
}

// IncrementPaymentBy authorizes the server to claim delta additional
// satoshis, returning the new payment signature. Required state: READY.
func (c *ClientState) IncrementPaymentBy(delta btcutil.Amount) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != ClientStateReady {
		return nil, illegalState("IncrementPaymentBy", c.state, ClientStateReady)
	}
	if c.stored {
		return nil, illegalState("IncrementPaymentBy", "stored", ClientStateReady)
	}
	if delta <= 0 {
		return nil, valueOutOfRange("payment increment must be positive", delta)
	}

	newPayment := c.currentPayment + delta
	if newPayment > c.params.TotalValue-MinNonDustOutput && newPayment != c.params.TotalValue {
		return nil, valueOutOfRange(
			"payment would leave client refund output in the dust range", newPayment)
	}

	toServer := newPayment
	toClient := c.params.TotalValue - newPayment

	serverAddrPub, err := btcutil.NewAddressPubKey(
		c.params.ServerKey.SerializeCompressed(), c.params.NetParams,
	)
	if err != nil {
		return nil, err
	}
	serverScript, err := txscript.PayToAddrScript(serverAddrPub.AddressPubKeyHash())
	if err != nil {
		return nil, err
	}

	paymentTx := txbuilder.BuildPayment(
		&c.fundingOutpoint, serverScript, toServer, c.clientScript, toClient,
	)

	hashType := txscript.SigHashType(SigHashSingle | SigHashAnyOneCanPay)
	sig, err := c.wallet.SignInput(paymentTx, 0, c.params.ClientKey.Priv, hashType)
	if err != nil {
		return nil, err
	}

	c.currentPayment = newPayment
	c.latestPaymentSig = append([]byte(nil), sig...)

	log.Debugf("client incremented payment to %v", newPayment)

	return c.latestPaymentSig, nil
}

// GetCompletedRefundTransaction returns the fully signed refund
// transaction. Required state: at or beyond
// PROVIDE_MULTISIG_CONTRACT_TO_SERVER.
func (c *ClientState) GetCompletedRefundTransaction() (*wire.MsgTx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state < ClientStateProvideMultisigContractToServer {
		return nil, illegalState("GetCompletedRefundTransaction", c.state,
			ClientStateProvideMultisigContractToServer)
	}
	return c.refundTx.Copy(), nil
}

// StoreChannelInWallet hands the channel off to the storage layer. After
// this call IncrementPaymentBy always fails: the channel is considered
// finalized and its fallback transactions are the storage layer's
// responsibility from here on (spec.md §4.1, §4.5).
func (c *ClientState) StoreChannelInWallet(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stored = true
}

// FallbackDeadline returns the UNIX-seconds timestamp at which the
// storage layer should broadcast the funding transaction followed by the
// refund transaction, per spec.md §4.5.
func (c *ClientState) FallbackDeadline() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params.ExpireTime + ClientRebroadcastDelaySecs
}

// FallbackTransactions returns, in broadcast order, the funding then
// refund transactions the storage layer must rebroadcast at the
// deadline.
func (c *ClientState) FallbackTransactions() []*wire.MsgTx {
	c.mu.Lock()
	defer c.mu.Unlock()
	return []*wire.MsgTx{c.fundingTx.Copy(), c.refundTx.Copy()}
}

// multisigSigScript combines the two ECDSA signatures (each with its
// trailing sighash-flag byte) into the scriptSig
// that redeems a bare 2-of-2 multisig output: no P2SH redeem-script
// trailer, since the funding output the signatures are satisfying is
// itself the CHECKMULTISIG script, not a hash of it. The historical
// OP_CHECKMULTISIG off-by-one bug requires a leading dummy push.
func multisigSigScript(sigs ...[]byte) ([]byte, error) {
	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_0)
	for _, sig := range sigs {
		builder.AddData(sig)
	}
	return builder.Script()
}
