package channel

import "github.com/btcsuite/btcd/btcec"

// KeyPair bundles the public half of a funding key with its private half,
// when known. A party only ever knows its own private key; it holds only
// the counterparty's public key.
type KeyPair struct {
	Priv *btcec.PrivateKey
	Pub  *btcec.PublicKey
}

// NewKeyPair wraps a freshly generated or loaded private key.
func NewKeyPair(priv *btcec.PrivateKey) KeyPair {
	return KeyPair{Priv: priv, Pub: priv.PubKey()}
}

// NewPubKeyFromBytes parses a counterparty's public key, rejecting any
// encoding that doesn't canonically decode to a point on secp256k1.
func NewPubKeyFromBytes(b []byte) (KeyPair, error) {
	pub, err := btcec.ParsePubKey(b, btcec.S256())
	if err != nil {
		return KeyPair{}, verification("invalid public key encoding: " + err.Error())
	}
	return KeyPair{Pub: pub}, nil
}

// SerializeCompressed returns the 33-byte compressed SEC1 encoding used in
// the multisig redeem script.
func (k KeyPair) SerializeCompressed() []byte {
	return k.Pub.SerializeCompressed()
}
