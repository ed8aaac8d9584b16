// Package sigcheck implements the pure cryptographic and structural checks
// a channel-produced signature must pass (spec.md §4.4): canonical DER
// encoding, a purpose-specific sighash-flag whitelist, and verification
// against the funding output's redeem script.
package sigcheck

import (
	"math/big"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Purpose distinguishes the two kinds of signature this channel protocol
// ever validates; each has a different allowed sighash flag.
type Purpose int

const (
	// Refund signatures authorize the client's time-locked fallback.
	Refund Purpose = iota

	// Payment signatures authorize the server to claim an incremental
	// amount from the funding output.
	Payment
)

// Sighash flag values, mirrored from txscript for documentation purposes
// at call sites that don't otherwise need txscript.
const (
	SigHashAll          = 0x1
	SigHashNone         = 0x2
	SigHashSingle       = 0x3
	SigHashAnyOneCanPay = 0x80
)

// halfOrder is secp256k1's group order divided by two; DER signatures
// whose S exceeds this are non-canonical (high-S malleability).
var halfOrder = new(big.Int).Rsh(btcec.S256().N, 1)

// IsCanonicalEncoding reports whether sig (the raw signature bytes, with
// the trailing one-byte sighash flag already stripped) is a minimal-length
// DER encoding with S in the lower half of the curve order. The error
// return carries the spec's stable "not canonical" substring.
func IsCanonicalEncoding(sig []byte) (bool, error) {
	parsed, err := btcec.ParseDERSignature(sig, btcec.S256())
	if err != nil {
		return false, verification("not canonical: " + err.Error())
	}
	if parsed.S.Cmp(halfOrder) > 0 {
		return false, verification("not canonical: S value is higher than secp256k1 curve order / 2")
	}
	return true, nil
}

// AllowedSigHashFor returns nil if hashType is the sighash flag `purpose`
// requires, or a *VerificationError naming the offending flag otherwise.
// Refund signatures must use exactly SIGHASH_ALL; payment signatures must
// use exactly SIGHASH_SINGLE|SIGHASH_ANYONECANPAY. Any flag carrying the
// SIGHASH_NONE bit pattern is called out by name, per spec.md §7/§8.
func AllowedSigHashFor(purpose Purpose, hashType byte) error {
	switch purpose {
	case Refund:
		if hashType == SigHashAll {
			return nil
		}
		if hashType&0x1f == SigHashNone {
			return verification("refund signature must be SIGHASH_ALL, got SIGHASH_NONE")
		}
		return verification("refund signature must be SIGHASH_ALL")
	case Payment:
		if hashType == SigHashSingle|SigHashAnyOneCanPay {
			return nil
		}
		if hashType&0x1f == SigHashNone {
			return verification("payment signature must be SIGHASH_SINGLE|ANYONECANPAY, got SIGHASH_NONE")
		}
		return verification("payment signature must be exactly SIGHASH_SINGLE|ANYONECANPAY")
	default:
		return verification("unknown signature purpose")
	}
}

// Verify checks that sig (DER-encoded, no trailing sighash byte) is a
// valid ECDSA signature by pubKey over the given input's sighash,
// computed against script as the previous output's script (the legacy
// sighash used here does not commit to the output's value; hashType
// selects which sighash variant to use).
func Verify(sig []byte, pubKey *btcec.PublicKey, script []byte, tx *wire.MsgTx,
	inputIdx int, hashType txscript.SigHashType) (bool, error) {

	parsedSig, err := btcec.ParseDERSignature(sig, btcec.S256())
	if err != nil {
		return false, verification("not canonical: " + err.Error())
	}

	sigHash, err := txscript.CalcSignatureHash(script, hashType, tx, inputIdx)
	if err != nil {
		return false, err
	}

	return parsedSig.Verify(sigHash, pubKey), nil
}

func verification(msg string) error {
	return &VerificationError{Msg: msg}
}

// VerificationError mirrors channel.VerificationError so this package has
// no import-cycle dependency on channel while still surfacing the
// spec-mandated stable message substrings.
type VerificationError struct {
	Msg string
}

func (e *VerificationError) Error() string {
	return "verification failed: " + e.Msg
}
