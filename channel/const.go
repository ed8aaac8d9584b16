package channel

import "github.com/btcsuite/btcutil"

// Bit-exact protocol constants. These values are part of the wire contract
// between client and server and must never be tuned per-deployment.
const (
	// ReferenceMinFee is the fee, in satoshis, assumed for a single
	// standard-size transaction. Funding and refund transactions each
	// reserve one multiple of this.
	ReferenceMinFee = btcutil.Amount(10000)

	// MinNonDustOutput is the smallest output value that relay nodes
	// will forward. Any channel-produced output below this is rejected.
	MinNonDustOutput = btcutil.Amount(546)

	// SigHashAll mirrors txscript.SigHashAll; redeclared here so callers
	// of this package don't need to also import txscript for the
	// refund-signature sighash flag.
	SigHashAll = 0x1

	// SigHashNone mirrors txscript.SigHashNone.
	SigHashNone = 0x2

	// SigHashSingle mirrors txscript.SigHashSingle.
	SigHashSingle = 0x3

	// SigHashAnyOneCanPay mirrors txscript.SigHashAnyOneCanPay.
	SigHashAnyOneCanPay = 0x80

	// RefundSequence is the sequence number a refund transaction's sole
	// input must carry for its locktime to be consensus-enforced.
	RefundSequence = uint32(0xFFFFFFFE)

	// maxSequence disables locktime outright; refund inputs must never
	// carry it.
	maxSequence = uint32(0xFFFFFFFF)
)

// Storage/rebroadcaster deadlines (spec.md §4.5, §6). Expressed here as
// second offsets from expireTime since that's the unit ChannelParameters
// uses throughout.
const (
	// ClientRebroadcastDelaySecs is added to expireTime: the client's
	// storage layer won't attempt to broadcast the funding/refund pair
	// until this grace period past locktime maturity has elapsed.
	ClientRebroadcastDelaySecs = int64(5 * 60)

	// ServerCloseDeadlineSecs is subtracted from expireTime: the
	// server's storage layer rebroadcasts the best payment transaction
	// this long before the refund becomes spendable.
	ServerCloseDeadlineSecs = int64(2 * 60 * 60)

	// ServerMinLocktimeMarginSecs is subtracted from expireTime to get
	// the earliest locktime the server will accept on a client-provided
	// refund transaction.
	ServerMinLocktimeMarginSecs = int64(2 * 60 * 60)
)
