package channel

import (
	"testing"

	"github.com/btcsuite/btcutil"
)

func TestInitiateValueOutOfRangeBoundary(t *testing.T) {
	t.Run("one satoshi short fails", func(t *testing.T) {
		total := MinNonDustOutput + ReferenceMinFee - 1
		client := NewClientState(testParams(total, 0), newFakeWallet(0))

		err := client.Initiate()
		if err == nil {
			t.Fatalf("expected Initiate to fail, got nil")
		}
		if _, ok := err.(*ValueOutOfRangeError); !ok {
			t.Fatalf("expected *ValueOutOfRangeError, got %T: %v", err, err)
		}
		if !contains(err.Error(), "afford") {
			t.Fatalf("expected error to mention \"afford\", got: %v", err)
		}
		if client.State() != ClientStateNew {
			t.Fatalf("failed Initiate must not mutate state, got %v", client.State())
		}
	})

	t.Run("exact boundary succeeds", func(t *testing.T) {
		total := MinNonDustOutput + ReferenceMinFee
		client := NewClientState(testParams(total, 0), newFakeWallet(0))

		if err := client.Initiate(); err != nil {
			t.Fatalf("Initiate: %v", err)
		}
		if client.State() != ClientStateInitiated {
			t.Fatalf("expected INITIATED, got %v", client.State())
		}
		if got := client.params.RefundFees(); got != 2*ReferenceMinFee {
			t.Fatalf("expected refundTxFees = 2*ReferenceMinFee, got %v", got)
		}
	})
}

func TestInitiateWalletShortfallReportsFeeMessage(t *testing.T) {
	client := NewClientState(testParams(1_000_000, 0), &failingCoinSelectWallet{})

	err := client.Initiate()
	if err == nil {
		t.Fatalf("expected Initiate to fail, got nil")
	}
	if _, ok := err.(*ValueOutOfRangeError); !ok {
		t.Fatalf("expected *ValueOutOfRangeError, got %T: %v", err, err)
	}
	if !contains(err.Error(), "unable to pay required fee") {
		t.Fatalf("expected error to mention \"unable to pay required fee\", got: %v", err)
	}
	if client.State() != ClientStateNew {
		t.Fatalf("failed Initiate must not mutate state, got %v", client.State())
	}
}

func TestInitiateRequiresNewState(t *testing.T) {
	client := NewClientState(testParams(1_000_000, 0), newFakeWallet(0))
	if err := client.Initiate(); err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	err := client.Initiate()
	if _, ok := err.(*IllegalStateError); !ok {
		t.Fatalf("expected *IllegalStateError on second Initiate, got %T: %v", err, err)
	}
}

func TestProvideRefundSignatureOnlyOnce(t *testing.T) {
	p := newHandshakePair(t, 1_000_000, 1_000)

	// The handshake helper already drove ProvideRefundSignature once;
	// a second call must fail without mutating state.
	err := p.client.ProvideRefundSignature(make([]byte, 65))
	if _, ok := err.(*IllegalStateError); !ok {
		t.Fatalf("expected *IllegalStateError, got %T: %v", err, err)
	}
}

func TestIncrementPaymentByBoundary(t *testing.T) {
	total := btcutil.Amount(1_000_000)
	p := newHandshakePair(t, total, 1_000)

	t.Run("non-positive delta rejected", func(t *testing.T) {
		_, err := p.client.IncrementPaymentBy(0)
		if _, ok := err.(*ValueOutOfRangeError); !ok {
			t.Fatalf("expected *ValueOutOfRangeError, got %T: %v", err, err)
		}
		_, err = p.client.IncrementPaymentBy(-5)
		if _, ok := err.(*ValueOutOfRangeError); !ok {
			t.Fatalf("expected *ValueOutOfRangeError for negative delta, got %T: %v", err, err)
		}
	})

	t.Run("leaving refund in the dust range is rejected", func(t *testing.T) {
		// total - delta must not land in (0, MinNonDustOutput).
		delta := total - (MinNonDustOutput - 1)
		_, err := p.client.IncrementPaymentBy(delta)
		if _, ok := err.(*ValueOutOfRangeError); !ok {
			t.Fatalf("expected *ValueOutOfRangeError, got %T: %v", err, err)
		}
	})

	t.Run("paying exactly totalValue (zero refund) is accepted", func(t *testing.T) {
		p2 := newHandshakePair(t, total, 1_000)
		sig, err := p2.client.IncrementPaymentBy(total)
		if err != nil {
			t.Fatalf("expected full-value payment to succeed, got: %v", err)
		}
		if len(sig) == 0 {
			t.Fatalf("expected a non-empty signature")
		}
		if left := p2.client.ChannelValueLeft(); left != 0 {
			t.Fatalf("expected ChannelValueLeft() == 0, got %v", left)
		}
	})
}

func TestIncrementPaymentByFailsAfterStore(t *testing.T) {
	p := newHandshakePair(t, 1_000_000, 1_000)
	p.client.StoreChannelInWallet("chan-1")

	_, err := p.client.IncrementPaymentBy(1_000)
	if _, ok := err.(*IllegalStateError); !ok {
		t.Fatalf("expected *IllegalStateError after storing, got %T: %v", err, err)
	}
}

func TestFallbackTransactionsOrderedFundingThenRefund(t *testing.T) {
	p := newHandshakePair(t, 1_000_000, 1_000)
	txs := p.client.FallbackTransactions()
	if len(txs) != 2 {
		t.Fatalf("expected 2 fallback transactions, got %d", len(txs))
	}
	fundingTx, err := p.client.GetMultisigContract()
	if err != nil {
		t.Fatalf("get multisig contract: %v", err)
	}
	if txs[0].TxHash() != fundingTx.TxHash() {
		t.Fatalf("expected fallback[0] to be the funding tx")
	}
	refundTx, err := p.client.GetCompletedRefundTransaction()
	if err != nil {
		t.Fatalf("get completed refund: %v", err)
	}
	if txs[1].TxHash() != refundTx.TxHash() {
		t.Fatalf("expected fallback[1] to be the refund tx")
	}
}

func TestFallbackDeadlines(t *testing.T) {
	p := newHandshakePair(t, 1_000_000, 1_000)
	if got := p.client.FallbackDeadline(); got != 1_000+ClientRebroadcastDelaySecs {
		t.Fatalf("expected client deadline expireTime+%v, got %v", ClientRebroadcastDelaySecs, got)
	}
	if got := p.server.FallbackDeadline(); got != 1_000-ServerCloseDeadlineSecs {
		t.Fatalf("expected server deadline expireTime-%v, got %v", ServerCloseDeadlineSecs, got)
	}
}

func testParams(total btcutil.Amount, expireTime int64) Parameters {
	clientKey := testKeyPair(1)
	serverKey := testKeyPair(2)
	return Parameters{
		ClientKey:  clientKey,
		ServerKey:  KeyPair{Pub: serverKey.Pub},
		TotalValue: total,
		ExpireTime: expireTime,
		NetParams:  testNetParams(),
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
