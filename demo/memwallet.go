// Package demo wires channel.ClientState and channel.ServerState against
// in-memory Wallet/Broadcaster/Clock implementations (spec.md §6 treats
// all three as external collaborators). It exists so cmd/paychand and
// cmd/paycli have a concrete, runnable channel to drive without a real
// wallet or p2p network, the way the teacher's own demo/itest harnesses
// wire a full node against btcd's simnet rather than mainnet.
package demo

import (
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"

	"github.com/breez/paychan/channel"
)

// MemWallet is a toy channel.Wallet backed by an in-memory UTXO counter.
// It never actually touches the chain; SelectCoins hands out a
// synthetic, already-"signed" input (spec.md §6: coins the wallet
// selects are the wallet's own single-key outputs, already spendable
// without further cosigning) and SignInput signs against whatever
// redeem script the caller is currently spending — the multisig output
// every operation in this protocol ultimately spends from.
type MemWallet struct {
	mu      sync.Mutex
	utxoSeq uint64
	pending []*wire.MsgTx
	script  []byte
	changeScript []byte
}

// NewMemWallet returns a wallet that pays its own change to changeScript.
func NewMemWallet(changeScript []byte) *MemWallet {
	return &MemWallet{changeScript: changeScript}
}

// SetRedeemScript records the multisig redeem script this wallet signs
// against. The real Wallet interface doesn't need this (a production
// wallet derives it from the output it's spending); the in-memory demo
// wallet has no chain view to derive it from, so the demo harness sets
// it explicitly once the handshake has computed it.
func (w *MemWallet) SetRedeemScript(script []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.script = script
}

// SelectCoins returns one synthetic input covering amt, plus change back
// to the wallet's own change script.
func (w *MemWallet) SelectCoins(amt btcutil.Amount) ([]*wire.TxIn, *wire.TxOut, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.utxoSeq++
	var hash [32]byte
	hash[0] = byte(w.utxoSeq)
	hash[1] = byte(w.utxoSeq >> 8)
	hash[2] = byte(w.utxoSeq >> 16)

	in := wire.NewTxIn(&wire.OutPoint{Hash: hash, Index: 0}, nil, nil)

	const syntheticUtxoValue = 100_000_000
	change := syntheticUtxoValue - amt
	if change <= 0 {
		return nil, nil, fmt.Errorf("demo wallet: synthetic utxo too small for %v", amt)
	}

	var changeOut *wire.TxOut
	if !txbuilderIsDust(change) {
		changeOut = wire.NewTxOut(int64(change), w.changeScript)
	}

	return []*wire.TxIn{in}, changeOut, nil
}

// CommitPending records tx as pending, mirroring a real wallet marking
// its selected UTXOs as spent-but-unconfirmed.
func (w *MemWallet) CommitPending(tx *wire.MsgTx) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, tx)
	return nil
}

// Pending returns the wallet's unconfirmed-but-committed transactions.
func (w *MemWallet) Pending() []*wire.MsgTx {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*wire.MsgTx(nil), w.pending...)
}

// SignInput signs tx's input idx with key under hashType, against the
// redeem script previously set via SetRedeemScript.
func (w *MemWallet) SignInput(tx *wire.MsgTx, idx int, key *btcec.PrivateKey,
	hashType txscript.SigHashType) ([]byte, error) {

	w.mu.Lock()
	script := w.script
	w.mu.Unlock()

	sigHash, err := txscript.CalcSignatureHash(script, hashType, tx, idx)
	if err != nil {
		return nil, err
	}
	sig, err := key.Sign(sigHash)
	if err != nil {
		return nil, err
	}
	return append(sig.Serialize(), byte(hashType)), nil
}

// ReceiveFromBlock is a no-op: the demo wallet has no chain view.
func (w *MemWallet) ReceiveFromBlock(tx *wire.MsgTx, blockHeight int32) {}

// txbuilderIsDust mirrors txbuilder.IsDust without importing txbuilder
// from the demo package's lowest-level helper (kept local to avoid a
// needless cross-package call for a one-line comparison).
func txbuilderIsDust(amt btcutil.Amount) bool {
	return amt < channel.MinNonDustOutput
}
