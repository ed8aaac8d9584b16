package channel

import (
	"sync"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
)

// Wallet is the UTXO source, key holder, and transaction sink the core
// state machines delegate to. It is out of scope for this package (spec.md
// §1, §6); implementations live outside channel/.
type Wallet interface {
	// SelectCoins locks and returns inputs covering amt plus a change
	// output returning any excess, expressed at the reference fee rate.
	// The returned inputs are already fully signed: they spend the
	// wallet's own single-key outputs, so unlike the multisig output
	// they fund, no further protocol-level cosigning is needed. This
	// keeps the funding transaction's txid stable from the moment it's
	// built, which the refund transaction's outpoint depends on.
	SelectCoins(amt btcutil.Amount) ([]*wire.TxIn, *wire.TxOut, error)

	// CommitPending marks tx as pending so its inputs aren't selected
	// again by another reservation.
	CommitPending(tx *wire.MsgTx) error

	// Pending returns the set of transactions the wallet currently
	// considers unconfirmed-but-committed.
	Pending() []*wire.MsgTx

	// SignInput produces a signature for input idx of tx using key,
	// under the given sighash flags.
	SignInput(tx *wire.MsgTx, idx int, key *btcec.PrivateKey, hashType txscript.SigHashType) ([]byte, error)

	// ReceiveFromBlock notifies the wallet that tx confirmed at the
	// given height, for UTXO bookkeeping.
	ReceiveFromBlock(tx *wire.MsgTx, blockHeight int32)
}

// Clock abstracts wall-clock time so deadlines are testable.
type Clock interface {
	Now() int64
}

// Broadcaster gossips a finalized transaction onto the network.
type Broadcaster interface {
	Broadcast(tx *wire.MsgTx) *BroadcastFuture
}

// BroadcastFuture is the generic async-result abstraction design note §9
// calls for: the core hands a transaction to the broadcaster and observes
// the settle, without ever scheduling work of its own.
type BroadcastFuture struct {
	mu     sync.Mutex
	done   bool
	tx     *wire.MsgTx
	err    error
	waitCh chan struct{}
}

// NewBroadcastFuture returns a future ready to be settled exactly once via
// Resolve or Reject.
func NewBroadcastFuture() *BroadcastFuture {
	return &BroadcastFuture{waitCh: make(chan struct{})}
}

// Resolve settles the future successfully, running any callback registered
// via Then.
func (f *BroadcastFuture) Resolve(tx *wire.MsgTx) {
	f.settle(tx, nil)
}

// Reject settles the future with a broadcast error.
func (f *BroadcastFuture) Reject(err error) {
	f.settle(nil, err)
}

func (f *BroadcastFuture) settle(tx *wire.MsgTx, err error) {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return
	}
	f.tx, f.err, f.done = tx, err, true
	close(f.waitCh)
	f.mu.Unlock()
}

// Then registers callbacks to run once the future settles. The callback
// always runs on its own goroutine, even if the future has already
// settled by the time Then is called: callers invoke Then while still
// holding their own state-machine lock (see
// ServerState.ProvideMultiSigContract), and a
// synchronous callback that tries to re-acquire that same lock would
// deadlock.
func (f *BroadcastFuture) Then(onOK func(*wire.MsgTx), onErr func(error)) {
	go func() {
		<-f.waitCh
		f.mu.Lock()
		tx, err := f.tx, f.err
		f.mu.Unlock()
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			return
		}
		if onOK != nil {
			onOK(tx)
		}
	}()
}

// Await blocks until the future settles and returns its outcome.
func (f *BroadcastFuture) Await() (*wire.MsgTx, error) {
	<-f.waitCh
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tx, f.err
}
