package channel

import "github.com/btcsuite/btcd/wire"

// The wire message shapes exchanged between client and server (spec.md
// §6). Encoding these onto an actual transport is explicitly out of
// scope. The tests and the demo harness drive both sides in the same
// process by calling the state-machine methods directly; they do not
// pass these values.

// InitiateRefund is sent client -> server with the unsigned refund
// transaction the server is asked to co-sign.
type InitiateRefund struct {
	RefundTx *wire.MsgTx
}

// RefundSignature is sent server -> client in response to InitiateRefund.
type RefundSignature struct {
	Sig []byte
}

// FundingReady is sent client -> server once the multisig funding
// transaction has been fully constructed (and committed to the wallet).
type FundingReady struct {
	MultisigTx *wire.MsgTx
}

// ChannelOpen is sent server -> client once the funding transaction has
// been broadcast and accepted.
type ChannelOpen struct{}

// PaymentUpdate is sent client -> server, repeatedly, as the client
// authorizes the server to claim more of the locked value.
type PaymentUpdate struct {
	ClientRefundAmount int64
	Sig                []byte
}
