package slot

import "errors"

var ErrTxnClosed = errors.New("slot: transaction already committed or discarded")

// Write is one slot assignment inside a batch.
type Write struct {
	Addr Addr
	Word Word
}

// Backend is the durable slot substrate. Apply must be all-or-nothing.
type Backend interface {
	Get(a Addr) (w Word, ok bool, err error)
	Apply(batch []Write) error
}

type Reader interface {
	Read(a Addr) (w Word, ok bool, err error)
}

type ReadWriter interface {
	Reader
	Write(a Addr, w Word) error
}

// ReadU64 reads a numeric slot. An absent slot reads as (0, false).
func ReadU64(r Reader, a Addr) (uint64, bool, error) {
	w, ok, err := r.Read(a)
	if err != nil || !ok {
		return 0, false, err
	}
	v, fits := w.U64()
	if !fits {
		return 0, true, &CorruptError{Addr: a}
	}
	return v, true, nil
}

func WriteU64(rw ReadWriter, a Addr, v uint64) error {
	return rw.Write(a, WordFromU64(v))
}

// CorruptError reports a slot whose content cannot be decoded as expected.
type CorruptError struct {
	Addr Addr
}

func (e *CorruptError) Error() string { return "slot: corrupt value at " + e.Addr.Hex() }
