package channel

import (
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"

	"github.com/breez/paychan/sigcheck"
	"github.com/breez/paychan/txbuilder"
)

// ServerState drives the payee side of the channel handshake (spec.md
// §4.2).
type ServerState struct {
	mu sync.Mutex

	params      Parameters
	wallet      Wallet
	broadcaster Broadcaster
	serverScript []byte

	state ServerChannelState

	refundTxid     chainhash.Hash
	refundLocktime uint32
	clientScript   []byte

	multisigScript  []byte
	fundingTx       *wire.MsgTx
	fundingOutpoint wire.OutPoint

	bestValueToMe      btcutil.Amount
	latestRefundAmount btcutil.Amount
	latestSig          []byte
	latestPaymentTx    *wire.MsgTx

	closeTx     *wire.MsgTx
	closeFuture *BroadcastFuture

	stored bool
}

// NewServerState creates a channel waiting for the client's refund
// transaction. serverScript is the output script the server's own share
// of the channel will ultimately be paid to.
func NewServerState(params Parameters, wallet Wallet, broadcaster Broadcaster, serverScript []byte) *ServerState {
	return &ServerState{
		params:       params,
		wallet:       wallet,
		broadcaster:  broadcaster,
		serverScript: serverScript,
		state:        ServerStateWaitingForRefundTransaction,
	}
}

// State returns the channel's current lifecycle state.
func (s *ServerState) State() ServerChannelState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// BestValueToMe returns the highest amount the client has so far
// authorized the server to claim.
func (s *ServerState) BestValueToMe() btcutil.Amount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bestValueToMe
}

// ProvideRefundTransaction validates and co-signs the client's refund
// transaction. Required state: WAITING_FOR_REFUND_TRANSACTION, and may
// only be called once.
func (s *ServerState) ProvideRefundTransaction(tx *wire.MsgTx, clientPubKey []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != ServerStateWaitingForRefundTransaction {
		return nil, illegalState("ProvideRefundTransaction", s.state, ServerStateWaitingForRefundTransaction)
	}

	if len(tx.TxIn) != 1 || len(tx.TxOut) != 1 {
		return nil, verification("refund transaction must have exactly one input and one output")
	}
	if tx.TxIn[0].Sequence >= maxSequence {
		return nil, verification("refund transaction input sequence disables locktime")
	}
	if int64(tx.LockTime) < s.params.ExpireTime-ServerMinLocktimeMarginSecs {
		return nil, verification("refund transaction locktime matures too soon")
	}
	if btcutil.Amount(tx.TxOut[0].Value) < MinNonDustOutput {
		return nil, verification("refund transaction output is dust")
	}

	clientKP, err := NewPubKeyFromBytes(clientPubKey)
	if err != nil {
		return nil, err
	}

	clientAddrPub, err := btcutil.NewAddressPubKey(clientKP.SerializeCompressed(), s.params.NetParams)
	if err != nil {
		return nil, err
	}
	serverAddrPub, err := btcutil.NewAddressPubKey(s.params.ServerKey.SerializeCompressed(), s.params.NetParams)
	if err != nil {
		return nil, err
	}
	multisigScript, err := txbuilder.MultisigScript(clientAddrPub, serverAddrPub)
	if err != nil {
		return nil, err
	}

	sig, err := s.wallet.SignInput(tx, 0, s.params.ServerKey.Priv, txscript.SigHashAll)
	if err != nil {
		return nil, err
	}

	s.params.ClientKey = clientKP
	s.multisigScript = multisigScript
	s.fundingOutpoint = tx.TxIn[0].PreviousOutPoint
	s.refundTxid = tx.TxHash()
	s.refundLocktime = tx.LockTime
	s.clientScript = tx.TxOut[0].PkScript

	s.state = ServerStateWaitingForMultisigContract

	log.Debugf("server accepted refund %v, locktime=%v", s.refundTxid, s.refundLocktime)

	return sig, nil
}

// ProvideMultiSigContract validates the funding transaction's multisig
// output and broadcasts it. Required state:
// WAITING_FOR_MULTISIG_CONTRACT.
func (s *ServerState) ProvideMultiSigContract(tx *wire.MsgTx) (*BroadcastFuture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != ServerStateWaitingForMultisigContract {
		return nil, illegalState("ProvideMultiSigContract", s.state, ServerStateWaitingForMultisigContract)
	}
	if len(tx.TxOut) == 0 {
		return nil, verification("funding transaction has no outputs")
	}

	out := tx.TxOut[0]
	if out.Value <= 0 {
		return nil, verification("funding output has zero value")
	}
	if string(out.PkScript) != string(s.multisigScript) {
		if !looksLikeMultisig(out.PkScript) {
			return nil, verification("funding output is not a canonical 2-of-2 multisig script")
		}
		return nil, verification("funding output multisig script does not list client and server in that order")
	}

	s.fundingTx = tx
	s.fundingOutpoint = wire.OutPoint{Hash: tx.TxHash(), Index: 0}
	s.state = ServerStateWaitingForMultisigAcceptance

	future := s.broadcaster.Broadcast(tx)
	future.Then(
		func(*wire.MsgTx) {
			s.mu.Lock()
			s.state = ServerStateReady
			s.mu.Unlock()
		},
		func(error) {
			s.mu.Lock()
			s.state = ServerStateError
			s.mu.Unlock()
		},
	)

	return future, nil
}

// IncrementPayment validates a new client payment signature and, if it
// authorizes strictly more value than before, accepts it. An equal or
// lesser clientRefundAmount is a silent no-op, not an error — see
// DESIGN.md's resolution of spec.md §9's open question. Required state:
// READY.
func (s *ServerState) IncrementPayment(clientRefundAmount btcutil.Amount, sig []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != ServerStateReady {
		return illegalState("IncrementPayment", s.state, ServerStateReady)
	}

	if clientRefundAmount < 0 {
		return valueOutOfRange("more than channel worth", clientRefundAmount)
	}
	newValueToMe := s.params.TotalValue - clientRefundAmount
	if newValueToMe > s.params.TotalValue {
		return valueOutOfRange("more than channel worth", newValueToMe)
	}
	if clientRefundAmount != 0 && clientRefundAmount < MinNonDustOutput {
		return valueOutOfRange("client refund amount is dust", clientRefundAmount)
	}

	if newValueToMe <= s.bestValueToMe {
		// Strict-monotonic resolution of the open question in spec.md
		// §9: an equal or smaller offer is silently ignored.
		return nil
	}

	if len(sig) == 0 {
		return verification("empty payment signature")
	}
	hashType := sig[len(sig)-1]
	rawSig := sig[:len(sig)-1]

	if _, err := sigcheck.IsCanonicalEncoding(rawSig); err != nil {
		return verification(err.(*sigcheck.VerificationError).Msg)
	}
	if err := sigcheck.AllowedSigHashFor(sigcheck.Payment, hashType); err != nil {
		return verification(err.(*sigcheck.VerificationError).Msg)
	}

	paymentTx := txbuilder.BuildPayment(
		&s.fundingOutpoint, s.serverScript, newValueToMe, s.clientScript, clientRefundAmount,
	)

	ok, err := sigcheck.Verify(
		rawSig, s.params.ClientKey.Pub, s.multisigScript, paymentTx, 0,
		txscript.SigHashType(hashType),
	)
	if err != nil {
		return err
	}
	if !ok {
		return verification("payment signature does not verify")
	}

	s.bestValueToMe = newValueToMe
	s.latestRefundAmount = clientRefundAmount
	s.latestSig = append([]byte(nil), sig...)
	s.latestPaymentTx = paymentTx

	log.Debugf("server accepted payment, bestValueToMe=%v", newValueToMe)

	return nil
}

// Close builds the close transaction from the best payment received,
// combines both signatures, and broadcasts it. Required state: READY; a
// second call after CLOSED is a no-op returning the same future.
func (s *ServerState) Close() (*BroadcastFuture, error) {
	s.mu.Lock()

	if s.state == ServerStateClosed || s.state == ServerStateClosing {
		future := s.closeFuture
		s.mu.Unlock()
		return future, nil
	}
	if s.state != ServerStateReady {
		defer s.mu.Unlock()
		return nil, illegalState("Close", s.state, ServerStateReady)
	}

	closeFee := txbuilder.EstimateFee(250)

	if s.bestValueToMe <= closeFee {
		s.mu.Unlock()
		return nil, valueOutOfRange("more in fees than the channel was worth", s.bestValueToMe)
	}

	serverAmt := s.bestValueToMe - closeFee
	extraInputs, extraChange, toppedUp, err := s.topUpIfDust(serverAmt)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if toppedUp {
		serverAmt = MinNonDustOutput
	}

	closeTx := txbuilder.BuildPayment(
		&s.fundingOutpoint, s.serverScript, serverAmt, s.clientScript, s.latestRefundAmount,
	)
	for _, in := range extraInputs {
		closeTx.AddTxIn(in)
	}
	if extraChange != nil {
		closeTx.AddTxOut(extraChange)
	}

	serverSig, err := s.wallet.SignInput(closeTx, 0, s.params.ServerKey.Priv, txscript.SigHashAll)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	sigScript, err := multisigSigScript(s.latestSig, serverSig)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	closeTx.TxIn[0].SignatureScript = sigScript

	s.closeTx = closeTx
	s.state = ServerStateClosing

	future := s.broadcaster.Broadcast(closeTx)
	s.closeFuture = future
	s.mu.Unlock()

	future.Then(
		func(*wire.MsgTx) {
			s.mu.Lock()
			s.state = ServerStateClosed
			s.mu.Unlock()
		},
		func(error) {
			s.mu.Lock()
			s.state = ServerStateError
			s.mu.Unlock()
		},
	)

	return future, nil
}

// topUpIfDust asks the wallet for additional funds when the server's own
// close output would otherwise be dust. Returns the extra input(s), an
// optional change output, and whether a top-up occurred.
func (s *ServerState) topUpIfDust(serverAmt btcutil.Amount) ([]*wire.TxIn, *wire.TxOut, bool, error) {
	if serverAmt >= MinNonDustOutput {
		return nil, nil, false, nil
	}
	shortfall := MinNonDustOutput - serverAmt
	inputs, change, err := s.wallet.SelectCoins(shortfall)
	if err != nil {
		return nil, nil, false, err
	}
	return inputs, change, true, nil
}

// StoreChannelInWallet hands the channel off to the storage layer.
func (s *ServerState) StoreChannelInWallet(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored = true
}

// FallbackDeadline returns the UNIX-seconds timestamp at which the
// storage layer should rebroadcast the current best payment transaction,
// claiming funds before the refund becomes spendable (spec.md §4.5).
func (s *ServerState) FallbackDeadline() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params.ExpireTime - ServerCloseDeadlineSecs
}

// FallbackTransaction returns the best payment transaction currently on
// file, or nil if no payment has been accepted yet.
func (s *ServerState) FallbackTransaction() *wire.MsgTx {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latestPaymentTx
}

// looksLikeMultisig reports whether script is structurally a bare
// m-of-n CHECKMULTISIG template (txscript's MultiSigTy class), without
// regard to which keys it names or how many.
func looksLikeMultisig(script []byte) bool {
	class := txscript.GetScriptClass(script)
	return class == txscript.MultiSigTy
}
