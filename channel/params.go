package channel

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcutil"
)

// Parameters are the immutable facts of a channel's birth: who owns the
// funding keys, how much capital is locked, and when the refund matures.
// Both ClientState and ServerState embed a copy.
type Parameters struct {
	// ClientKey is the client's funding keypair. The client always
	// holds the private half; the server sees only ClientKey.Pub.
	ClientKey KeyPair

	// ServerKey is the server's funding keypair, mirror image of
	// ClientKey.
	ServerKey KeyPair

	// TotalValue is the maximum amount, in satoshis, the channel can
	// ever pay the server.
	TotalValue btcutil.Amount

	// ExpireTime is the absolute UNIX-seconds locktime after which the
	// refund transaction becomes spendable.
	ExpireTime int64

	// NetParams selects the chain (mainnet/testnet/regtest) addresses
	// and scripts are derived against.
	NetParams *chaincfg.Params
}

// RefundFees is the total fee reserved across the paired funding and
// refund transactions: one reference fee per transaction.
func (p Parameters) RefundFees() btcutil.Amount {
	return 2 * ReferenceMinFee
}
