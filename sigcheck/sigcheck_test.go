package sigcheck

import (
	"testing"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"
)

func testSignedTx(t *testing.T, hashType txscript.SigHashType) (sig []byte, pub *btcec.PublicKey, script []byte, tx *wire.MsgTx) {
	var seed [32]byte
	seed[31] = 7
	priv, pubKey := btcec.PrivKeyFromBytes(btcec.S256(), seed[:])

	script = []byte{txscript.OP_TRUE}

	tx = wire.NewMsgTx(1)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: 0}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(500_000, script))

	sigHash, err := txscript.CalcSignatureHash(script, hashType, tx, 0)
	if err != nil {
		t.Fatalf("CalcSignatureHash: %v", err)
	}
	rawSig, err := priv.Sign(sigHash)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return rawSig.Serialize(), pubKey, script, tx
}

func TestIsCanonicalEncoding(t *testing.T) {
	sig, _, _, _ := testSignedTx(t, txscript.SigHashAll)

	if ok, err := IsCanonicalEncoding(sig); err != nil || !ok {
		t.Fatalf("expected a freshly produced signature to be canonical, got ok=%v err=%v", ok, err)
	}

	truncated := sig[:len(sig)-1]
	if _, err := IsCanonicalEncoding(truncated); err == nil {
		t.Fatalf("expected truncated DER to be rejected")
	} else if !containsSubstr(err.Error(), "not canonical") {
		t.Fatalf("expected \"not canonical\" in error, got: %v", err)
	}
}

func TestAllowedSigHashFor(t *testing.T) {
	t.Run("refund requires SIGHASH_ALL", func(t *testing.T) {
		if err := AllowedSigHashFor(Refund, SigHashAll); err != nil {
			t.Fatalf("expected SIGHASH_ALL to be allowed for refund, got: %v", err)
		}
		if err := AllowedSigHashFor(Refund, SigHashNone); err == nil {
			t.Fatalf("expected SIGHASH_NONE to be rejected for refund")
		} else if !containsSubstr(err.Error(), "SIGHASH_NONE") {
			t.Fatalf("expected error to name SIGHASH_NONE, got: %v", err)
		}
		if err := AllowedSigHashFor(Refund, SigHashSingle); err == nil {
			t.Fatalf("expected SIGHASH_SINGLE to be rejected for refund")
		}
	})

	t.Run("payment requires exactly SIGHASH_SINGLE|ANYONECANPAY", func(t *testing.T) {
		want := byte(SigHashSingle | SigHashAnyOneCanPay)
		if err := AllowedSigHashFor(Payment, want); err != nil {
			t.Fatalf("expected %#x to be allowed for payment, got: %v", want, err)
		}
		if err := AllowedSigHashFor(Payment, SigHashSingle); err == nil {
			t.Fatalf("expected bare SIGHASH_SINGLE (no ANYONECANPAY) to be rejected for payment")
		}
		if err := AllowedSigHashFor(Payment, SigHashNone|SigHashAnyOneCanPay); err == nil {
			t.Fatalf("expected SIGHASH_NONE|ANYONECANPAY to be rejected for payment")
		} else if !containsSubstr(err.Error(), "SIGHASH_NONE") {
			t.Fatalf("expected error to name SIGHASH_NONE, got: %v", err)
		}
	})
}

func TestVerify(t *testing.T) {
	sig, pub, script, tx := testSignedTx(t, txscript.SigHashAll)

	ok, err := Verify(sig, pub, script, tx, 0, txscript.SigHashAll)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected a freshly produced signature to verify")
	}

	tx.TxOut[0].Value = 499_999 // mutate the signed data
	ok, err = Verify(sig, pub, script, tx, 0, txscript.SigHashAll)
	if err != nil {
		t.Fatalf("Verify after mutation: %v", err)
	}
	if ok {
		t.Fatalf("expected verification to fail once the signed transaction changed, tx: %v",
			spew.Sdump(tx))
	}
}

func containsSubstr(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
