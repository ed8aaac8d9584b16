// Package txbuilder assembles the funding, refund, and payment
// transactions of a unidirectional micropayment channel (spec.md §4.3).
// Every function here is pure: given the same inputs they return the same
// transaction, performing no I/O and holding no state.
package txbuilder

import (
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
)

// ReferenceMinFee and MinNonDustOutput mirror the bit-exact constants in
// spec.md §6. They're redeclared here (rather than imported from
// channel, which imports txbuilder) to keep this package dependency-free
// of the state-machine package.
const (
	ReferenceMinFee  = btcutil.Amount(10000)
	MinNonDustOutput = btcutil.Amount(546)
)

// txVersion is the transaction version every channel-produced transaction
// uses.
const txVersion = 1

// MultisigScript returns the 2-of-2 redeem script for the funding output,
// with public keys ordered (client, server) per spec.md invariant 4. Any
// other ordering is a protocol violation the caller must never construct.
func MultisigScript(clientPub, serverPub *btcutil.AddressPubKey) ([]byte, error) {
	return txscript.MultiSigScript(
		[]*btcutil.AddressPubKey{clientPub, serverPub}, 2,
	)
}

// BuildFunding assembles the funding transaction: output #0 is literally
// the bare 2-of-2 multisig script locking total (no P2SH wrapping — the
// channel protocol spends straight off the CHECKMULTISIG output), output
// #1 (only when changeAmt is non-zero) returns change to the client; a
// non-zero changeAmt below the dust floor is an error. inputs/changeAmt
// come from the client's Wallet.SelectCoins.
func BuildFunding(inputs []*wire.TxIn, changeAmt btcutil.Amount, changeScript []byte,
	multisigScript []byte, total btcutil.Amount) (*wire.MsgTx, error) {

	tx := wire.NewMsgTx(txVersion)
	for _, in := range inputs {
		tx.AddTxIn(in)
	}

	tx.AddTxOut(wire.NewTxOut(int64(total), multisigScript))

	if changeAmt > 0 {
		if IsDust(changeAmt) {
			return nil, fmt.Errorf("change output %v is dust", changeAmt)
		}
		tx.AddTxOut(wire.NewTxOut(int64(changeAmt), changeScript))
	}

	return tx, nil
}

// BuildRefund assembles the refund transaction: a single input spending
// the (not-yet-broadcast, or already-broadcast) funding output back to the
// client, locked until locktime. The input carries the given sequence;
// ClientState passes RefundSequence so the locktime is consensus-enforced.
func BuildRefund(fundingOutpoint *wire.OutPoint, clientScript []byte,
	amount btcutil.Amount, locktime uint32, sequence uint32) *wire.MsgTx {

	tx := wire.NewMsgTx(txVersion)
	txIn := wire.NewTxIn(fundingOutpoint, nil, nil)
	txIn.Sequence = sequence
	tx.AddTxIn(txIn)
	tx.AddTxOut(wire.NewTxOut(int64(amount), clientScript))
	tx.LockTime = locktime
	return tx
}

// BuildPayment assembles a payment/close transaction spending the funding
// output into (toServer, toClient). Either output is omitted entirely if
// its amount is zero, matching spec.md §4.3.
func BuildPayment(fundingOutpoint *wire.OutPoint, serverScript []byte, toServer btcutil.Amount,
	clientScript []byte, toClient btcutil.Amount) *wire.MsgTx {

	tx := wire.NewMsgTx(txVersion)
	tx.AddTxIn(wire.NewTxIn(fundingOutpoint, nil, nil))

	if toServer > 0 {
		tx.AddTxOut(wire.NewTxOut(int64(toServer), serverScript))
	}
	if toClient > 0 {
		tx.AddTxOut(wire.NewTxOut(int64(toClient), clientScript))
	}

	return tx
}

// EstimateFee computes the reference fee for a transaction of the given
// serialized size: one reference fee per started kilobyte.
func EstimateFee(size int) btcutil.Amount {
	units := btcutil.Amount((size + 999) / 1000)
	if units < 1 {
		units = 1
	}
	fee := units * ReferenceMinFee
	if fee < ReferenceMinFee {
		return ReferenceMinFee
	}
	return fee
}

// IsDust reports whether amount falls below the dust floor every
// channel-produced output must clear.
func IsDust(amount btcutil.Amount) bool {
	return amount < MinNonDustOutput
}
