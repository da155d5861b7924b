package service

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"

	"github.com/chainsensors/capsules/internal/errors"
	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
)

// maxStringLen bounds decoded strings; program strings are at most 64 bytes.
const maxStringLen = 1024

// borshWriter encodes instruction arguments and event fields after their discriminator.
// The first failed write is kept and reported by encoded.
type borshWriter struct {
	buf bytes.Buffer
	enc *bin.Encoder
	err error
}

func newBorshWriter(disc [DiscriminatorSize]byte) *borshWriter {
	w := &borshWriter{}
	w.enc = bin.NewBorshEncoder(&w.buf)
	return w.raw(disc[:])
}

func (w *borshWriter) record(err error) *borshWriter {
	if w.err == nil {
		w.err = err
	}
	return w
}

// raw writes fixed-size fields, which borsh encodes without a length prefix.
func (w *borshWriter) raw(b []byte) *borshWriter {
	return w.record(w.enc.WriteBytes(b, false))
}

func (w *borshWriter) u64(v uint64) *borshWriter {
	return w.record(w.enc.WriteUint64(v, bin.LE))
}

func (w *borshWriter) i64(v int64) *borshWriter {
	return w.record(w.enc.WriteInt64(v, bin.LE))
}

func (w *borshWriter) str(s string) *borshWriter {
	return w.record(w.enc.WriteString(s))
}

func (w *borshWriter) publicKey(pk ledgerDomain.PublicKey) *borshWriter {
	return w.raw(pk[:])
}

func (w *borshWriter) encoded() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.buf.Bytes(), nil
}

// borshReader decodes what borshWriter wrote. The first short read is kept and turned
// into ErrInvalidEventData by finish.
type borshReader struct {
	dec *bin.Decoder
	err error
}

func newBorshReader(data []byte) *borshReader {
	return &borshReader{dec: bin.NewBorshDecoder(data)}
}

func (r *borshReader) fixed(dst []byte) {
	if r.err != nil {
		return
	}
	b, err := r.dec.ReadNBytes(len(dst))
	if err != nil {
		r.err = err
		return
	}
	copy(dst, b)
}

func (r *borshReader) u64() uint64 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint64(bin.LE)
	r.err = err
	return v
}

func (r *borshReader) i64() int64 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadInt64(bin.LE)
	r.err = err
	return v
}

func (r *borshReader) str() string {
	if r.err != nil {
		return ""
	}
	n, err := r.dec.ReadUint32(bin.LE)
	if err != nil {
		r.err = err
		return ""
	}
	if n > maxStringLen {
		r.err = fmt.Errorf("string of %d bytes exceeds %d", n, maxStringLen)
		return ""
	}
	b, err := r.dec.ReadNBytes(int(n))
	if err != nil {
		r.err = err
		return ""
	}
	return string(b)
}

func (r *borshReader) publicKey() ledgerDomain.PublicKey {
	var pk ledgerDomain.PublicKey
	r.fixed(pk[:])
	return pk
}

// finish returns ErrInvalidEventData for a short read or trailing bytes.
func (r *borshReader) finish() error {
	if r.err != nil {
		return errors.Wrap(ledgerDomain.ErrInvalidEventData, r.err.Error())
	}
	if r.dec.HasRemaining() {
		return errors.Wrapf(ledgerDomain.ErrInvalidEventData, "%d trailing bytes", r.dec.Remaining())
	}
	return nil
}
