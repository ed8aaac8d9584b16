package chanstore

import (
	"encoding/binary"
	"io"

	"github.com/btcsuite/btcd/wire"
)

func writeInt64(w io.Writer, v int64) error {
	return binary.Write(w, binary.BigEndian, v)
}

func readInt64(r io.Reader) (int64, error) {
	var v int64
	err := binary.Read(r, binary.BigEndian, &v)
	return v, err
}

func writeBool(w io.Writer, v bool) error {
	var b byte
	if v {
		b = 1
	}
	_, err := w.Write([]byte{b})
	return err
}

func readBool(r io.Reader) (bool, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return false, err
	}
	return b[0] == 1, nil
}

// writeOptionalTx writes a presence byte followed by tx's standard wire
// serialization, or just the presence byte if tx is nil.
func writeOptionalTx(w io.Writer, tx *wire.MsgTx) error {
	if tx == nil {
		return writeBool(w, false)
	}
	if err := writeBool(w, true); err != nil {
		return err
	}
	return tx.Serialize(w)
}

func readOptionalTx(r io.Reader) (*wire.MsgTx, error) {
	present, err := readBool(r)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(r); err != nil {
		return nil, err
	}
	return tx, nil
}
