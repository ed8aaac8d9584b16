package chanstore

import (
	"bytes"

	"github.com/btcsuite/btcd/wire"
	"github.com/coreos/bbolt"
	"github.com/go-errors/errors"
)

// Record is the durable snapshot of one side of a finalized channel:
// enough to rebuild its fallback obligation after a process restart.
// Persistence *format* is explicitly out of the core state machines'
// concern (spec.md §1, §9) — this is an adapter living outside channel/,
// existing only so cmd/paychand's demo has something concrete to hand
// StoreChannelInWallet.
type Record struct {
	ID       string
	Deadline int64
	IsClient bool

	// FundingTx and RefundTx are set for a client-side record.
	FundingTx *wire.MsgTx
	RefundTx  *wire.MsgTx

	// PaymentTx is set for a server-side record (the best payment tx on
	// file when the channel was handed to storage).
	PaymentTx *wire.MsgTx
}

var channelBucket = []byte("paychan-channel-bucket")

// BoltStore persists channel Records into a bbolt database, following
// channeldb/channel.go's bucket-keyed layout adapted to this package's
// much simpler single-bucket schema (one flat bucket keyed by channel ID,
// versus the original's node-ID/chanPoint nesting, since this protocol has
// no multi-channel-per-peer concept to nest under).
type BoltStore struct {
	db *bbolt.DB
}

// OpenBoltStore opens (creating if necessary) a bbolt database at path and
// ensures the channel bucket exists.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.Errorf("open bolt store: %v", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(channelBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, 1)
	}
	return &BoltStore{db: db}, nil
}

// Close releases the underlying bbolt database.
func (b *BoltStore) Close() error {
	return b.db.Close()
}

// Put stores (overwriting any prior snapshot for the same ID) r.
func (b *BoltStore) Put(r Record) error {
	buf, err := encodeRecord(r)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(channelBucket)
		return bucket.Put([]byte(r.ID), buf)
	})
}

// Get returns the stored snapshot for id, or false if none exists.
func (b *BoltStore) Get(id string) (Record, bool, error) {
	var r Record
	var found bool
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(channelBucket)
		v := bucket.Get([]byte(id))
		if v == nil {
			return nil
		}
		found = true
		var decErr error
		r, decErr = decodeRecord(v)
		r.ID = id
		return decErr
	})
	return r, found, err
}

// All returns every stored snapshot, for rebuilding the scheduler after a
// process restart.
func (b *BoltStore) All() ([]Record, error) {
	var records []Record
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(channelBucket)
		return bucket.ForEach(func(k, v []byte) error {
			r, err := decodeRecord(v)
			if err != nil {
				return err
			}
			r.ID = string(k)
			records = append(records, r)
			return nil
		})
	})
	return records, err
}

// Delete removes id's snapshot, e.g. once its fallback has fired and
// settled, or the channel closed cooperatively before the deadline.
func (b *BoltStore) Delete(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(channelBucket).Delete([]byte(id))
	})
}

// encodeRecord serializes r as a minimal length-prefixed wire format:
// deadline, isClient flag, and each present transaction in wire's own
// binary encoding, matching the corpus's convention of wrapping
// wire.MsgTx.(De)Serialize rather than hand-rolling a tx codec.
func encodeRecord(r Record) ([]byte, error) {
	var buf bytes.Buffer

	if err := writeInt64(&buf, r.Deadline); err != nil {
		return nil, err
	}
	if err := writeBool(&buf, r.IsClient); err != nil {
		return nil, err
	}
	if err := writeOptionalTx(&buf, r.FundingTx); err != nil {
		return nil, err
	}
	if err := writeOptionalTx(&buf, r.RefundTx); err != nil {
		return nil, err
	}
	if err := writeOptionalTx(&buf, r.PaymentTx); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodeRecord(b []byte) (Record, error) {
	buf := bytes.NewReader(b)
	var r Record

	deadline, err := readInt64(buf)
	if err != nil {
		return r, err
	}
	r.Deadline = deadline

	isClient, err := readBool(buf)
	if err != nil {
		return r, err
	}
	r.IsClient = isClient

	if r.FundingTx, err = readOptionalTx(buf); err != nil {
		return r, err
	}
	if r.RefundTx, err = readOptionalTx(buf); err != nil {
		return r, err
	}
	if r.PaymentTx, err = readOptionalTx(buf); err != nil {
		return r, err
	}

	return r, nil
}
