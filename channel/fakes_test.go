package channel

import (
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
)

// fakeWallet is a minimal in-memory Wallet: it hands out one canned UTXO
// per SelectCoins call and signs with real keys so sigcheck's
// cryptographic verification is exercised for real, not stubbed out.
type fakeWallet struct {
	mu        sync.Mutex
	utxoSeq   int
	pending   []*wire.MsgTx
	changeAmt btcutil.Amount
	script    []byte // the redeem script every SignInput call spends from
}

func newFakeWallet(changeAmt btcutil.Amount) *fakeWallet {
	return &fakeWallet{changeAmt: changeAmt}
}

// setScript records the multisig redeem script this wallet's SignInput
// calls spend from, once the handshake has computed it.
func (w *fakeWallet) setScript(script []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.script = script
}

func (w *fakeWallet) SelectCoins(amt btcutil.Amount) ([]*wire.TxIn, *wire.TxOut, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.utxoSeq++
	hash := chainHashFromInt(w.utxoSeq)
	in := wire.NewTxIn(&wire.OutPoint{Hash: hash, Index: 0}, nil, nil)

	var change *wire.TxOut
	if w.changeAmt > 0 {
		change = wire.NewTxOut(int64(w.changeAmt), []byte{txscript.OP_TRUE})
	}
	return []*wire.TxIn{in}, change, nil
}

func (w *fakeWallet) CommitPending(tx *wire.MsgTx) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, tx)
	return nil
}

func (w *fakeWallet) Pending() []*wire.MsgTx {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*wire.MsgTx(nil), w.pending...)
}

// SignInput signs with real ECDSA over the real sighash, appending the
// sighash-flag byte the protocol expects callers to strip before passing
// the signature to sigcheck. script is assumed to be the bare multisig
// redeem script every test in this package spends from.
func (w *fakeWallet) SignInput(tx *wire.MsgTx, idx int, key *btcec.PrivateKey,
	hashType txscript.SigHashType) ([]byte, error) {

	w.mu.Lock()
	script := w.script
	w.mu.Unlock()
	return signRawInput(tx, idx, key, hashType, script)
}

func (w *fakeWallet) ReceiveFromBlock(tx *wire.MsgTx, blockHeight int32) {}

// failingCoinSelectWallet's SelectCoins always fails, as if the
// underlying wallet's balance couldn't cover the requested amount.
type failingCoinSelectWallet struct {
	fakeWallet
}

func (w *failingCoinSelectWallet) SelectCoins(amt btcutil.Amount) ([]*wire.TxIn, *wire.TxOut, error) {
	return nil, nil, fmt.Errorf("insufficient funds: have 0, need %v", amt)
}

// signRawInput is shared between the fake wallet and tests constructing
// signatures directly, so both paths sign over the identical script.
func signRawInput(tx *wire.MsgTx, idx int, key *btcec.PrivateKey,
	hashType txscript.SigHashType, script []byte) ([]byte, error) {

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

func chainHashFromInt(i int) (h [32]byte) {
	h[0] = byte(i)
	h[1] = byte(i >> 8)
	return h
}

// fakeBroadcaster immediately settles every future it's given, either
// always succeeding or always failing, depending on how the test
// constructs it.
type fakeBroadcaster struct {
	fail error
}

func (b *fakeBroadcaster) Broadcast(tx *wire.MsgTx) *BroadcastFuture {
	f := NewBroadcastFuture()
	if b.fail != nil {
		f.Reject(b.fail)
	} else {
		f.Resolve(tx)
	}
	return f
}

// fakeClock returns a fixed, test-controlled time.
type fakeClock struct {
	now int64
}

func (c *fakeClock) Now() int64 { return c.now }

var errBroadcastRejected = fmt.Errorf("broadcaster rejected transaction")

// waitForServerState polls until server reaches want or a short deadline
// passes. BroadcastFuture's settle callback (which flips server state)
// always runs on its own goroutine — even against the fakeBroadcaster,
// which settles synchronously — so a test that has just done
// future.Await() has no ordering guarantee against that goroutine.
func waitForServerState(t interface {
	Fatalf(string, ...interface{})
}, server *ServerState, want ServerChannelState) {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if server.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("server did not reach state %v, still in %v", want, server.State())
}

func testNetParams() *chaincfg.Params {
	return &chaincfg.RegressionNetParams
}

// testKeyPair derives a deterministic keypair from seed, so tests are
// reproducible without needing real randomness.
func testKeyPair(seed byte) KeyPair {
	var b [32]byte
	b[31] = seed
	priv, _ := btcec.PrivKeyFromBytes(btcec.S256(), b[:])
	return NewKeyPair(priv)
}

// testMultisigScript recomputes the (client, server) 2-of-2 redeem script
// the same way the production code does, so tests can hand it to
// fakeWallet.setScript without reaching into ClientState/ServerState's
// unexported fields.
func testMultisigScript(t interface{ Fatalf(string, ...interface{}) }, clientKey, serverKey KeyPair, net *chaincfg.Params) []byte {
	clientAddr, err := btcutil.NewAddressPubKey(clientKey.SerializeCompressed(), net)
	if err != nil {
		t.Fatalf("client addr: %v", err)
	}
	serverAddr, err := btcutil.NewAddressPubKey(serverKey.SerializeCompressed(), net)
	if err != nil {
		t.Fatalf("server addr: %v", err)
	}
	script, err := txscript.MultiSigScript([]*btcutil.AddressPubKey{clientAddr, serverAddr}, 2)
	if err != nil {
		t.Fatalf("multisig script: %v", err)
	}
	return script
}

// handshakePair bundles a fully wired client/server pair plus the fakes
// backing them, for tests that want to drive payments/close without
// repeating the handshake boilerplate.
type handshakePair struct {
	client        *ClientState
	server        *ServerState
	clientWallet  *fakeWallet
	serverWallet  *fakeWallet
	broadcaster   *fakeBroadcaster
	clientPub     []byte
	params        Parameters
}

// newHandshakePair drives a client and server through the full
// refund-before-funding handshake (spec.md §4.1/§4.2) to READY, using
// in-memory fakes throughout.
func newHandshakePair(t interface {
	Fatalf(string, ...interface{})
}, total btcutil.Amount, expireTime int64) *handshakePair {

	net := testNetParams()
	clientKey := testKeyPair(1)
	serverKey := testKeyPair(2)

	params := Parameters{
		ClientKey:  clientKey,
		ServerKey:  KeyPair{Pub: serverKey.Pub},
		TotalValue: total,
		ExpireTime: expireTime,
		NetParams:  net,
	}
	serverParams := Parameters{
		ClientKey:  KeyPair{Pub: clientKey.Pub},
		ServerKey:  serverKey,
		TotalValue: total,
		ExpireTime: expireTime,
		NetParams:  net,
	}

	script := testMultisigScript(t, clientKey, serverKey, net)

	clientWallet := newFakeWallet(50000)
	clientWallet.setScript(script)
	serverWallet := newFakeWallet(0)
	serverWallet.setScript(script)

	broadcaster := &fakeBroadcaster{}

	serverAddr, err := btcutil.NewAddressPubKey(serverKey.SerializeCompressed(), net)
	if err != nil {
		t.Fatalf("server addr: %v", err)
	}
	serverScript, err := txscript.PayToAddrScript(serverAddr.AddressPubKeyHash())
	if err != nil {
		t.Fatalf("server script: %v", err)
	}

	client := NewClientState(params, clientWallet)
	if err := client.Initiate(); err != nil {
		t.Fatalf("initiate: %v", err)
	}

	server := NewServerState(serverParams, serverWallet, broadcaster, serverScript)

	refundTx, err := client.GetIncompleteRefundTransaction()
	if err != nil {
		t.Fatalf("get incomplete refund: %v", err)
	}

	serverSig, err := server.ProvideRefundTransaction(refundTx, clientKey.SerializeCompressed())
	if err != nil {
		t.Fatalf("server provide refund tx: %v", err)
	}

	if err := client.ProvideRefundSignature(serverSig); err != nil {
		t.Fatalf("client provide refund sig: %v", err)
	}

	fundingTx, err := client.GetMultisigContract()
	if err != nil {
		t.Fatalf("get multisig contract: %v", err)
	}

	future, err := server.ProvideMultiSigContract(fundingTx)
	if err != nil {
		t.Fatalf("server provide multisig contract: %v", err)
	}
	if _, err := future.Await(); err != nil {
		t.Fatalf("funding broadcast: %v", err)
	}
	waitForServerState(t, server, ServerStateReady)

	return &handshakePair{
		client:       client,
		server:       server,
		clientWallet: clientWallet,
		serverWallet: serverWallet,
		broadcaster:  broadcaster,
		clientPub:    clientKey.SerializeCompressed(),
		params:       params,
	}
}
