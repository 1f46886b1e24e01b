// Package ledger keeps the most recent vends in a fixed-capacity ring laid out
// over slots.
//
// Layout (all relative to slot.Field bases):
//
//	ledger.capacity   N, written once
//	ledger.total      number of appends ever made
//	ledger.cursor     next physical position, always total % N
//	ledger.records    2 words per position p at base+2p, base+2p+1
//
// Record i (0-based insertion order) lives at position i % N. Total and cursor
// are kept apart so "not yet full" and "wrapped" never get confused.
package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"math"

	"github.com/chenzhangda16/web3-vending/internal/vending/model"
	"github.com/chenzhangda16/web3-vending/internal/vending/slot"
)

var (
	ErrZeroCapacity     = errors.New("ledger: capacity must be > 0")
	ErrCapacityMismatch = errors.New("ledger: capacity differs from stored capacity")
	ErrCursorMismatch   = errors.New("ledger: cursor != total % capacity")
	ErrTotalOverflow    = errors.New("ledger: total counter overflow")
)

var (
	capacityAddr = slot.Field("ledger.capacity")
	totalAddr    = slot.Field("ledger.total")
	cursorAddr   = slot.Field("ledger.cursor")
	recordsBase  = slot.Field("ledger.records")
)

const wordsPerRecord = 2

type Ledger struct {
	st  slot.ReadWriter
	cap uint64
}

func New(st slot.ReadWriter, capacity uint64) (*Ledger, error) {
	if capacity == 0 {
		return nil, ErrZeroCapacity
	}
	return &Ledger{st: st, cap: capacity}, nil
}

func (l *Ledger) Capacity() uint64 { return l.cap }

// Init stores the capacity on first use and refuses a different one later.
// Resizing would need a data migration.
func (l *Ledger) Init() error {
	stored, ok, err := slot.ReadU64(l.st, capacityAddr)
	if err != nil {
		return err
	}
	if !ok {
		return slot.WriteU64(l.st, capacityAddr, l.cap)
	}
	if stored != l.cap {
		return fmt.Errorf("%w: stored=%d configured=%d", ErrCapacityMismatch, stored, l.cap)
	}
	return nil
}

// Total is the number of records ever appended.
func (l *Ledger) Total() (uint64, error) {
	n, _, err := slot.ReadU64(l.st, totalAddr)
	return n, err
}

// Len is min(Total, Capacity).
func (l *Ledger) Len() (uint64, error) {
	n, err := l.Total()
	if err != nil {
		return 0, err
	}
	return min(n, l.cap), nil
}

// Append stores the record at position total % N and returns its index.
func (l *Ledger) Append(caller model.Identity, at model.Timestamp) (uint64, error) {
	total, err := l.Total()
	if err != nil {
		return 0, err
	}
	if total == math.MaxUint64 {
		return 0, ErrTotalOverflow
	}
	cursor, _, err := slot.ReadU64(l.st, cursorAddr)
	if err != nil {
		return 0, err
	}
	pos := total % l.cap
	if cursor != pos {
		return 0, fmt.Errorf("%w: cursor=%d total=%d cap=%d", ErrCursorMismatch, cursor, total, l.cap)
	}

	rec := model.Record{Caller: caller, At: at, Seq: total}
	w0, w1 := encodeRecord(rec)
	base := recordsBase.Add(pos * wordsPerRecord)
	if err := l.st.Write(base, w0); err != nil {
		return 0, err
	}
	if err := l.st.Write(base.Add(1), w1); err != nil {
		return 0, err
	}
	if err := slot.WriteU64(l.st, totalAddr, total+1); err != nil {
		return 0, err
	}
	if err := slot.WriteU64(l.st, cursorAddr, (total+1)%l.cap); err != nil {
		return 0, err
	}
	return total, nil
}

// Get returns ok=false for indices that were overwritten or never written.
func (l *Ledger) Get(index uint64) (model.Record, bool, error) {
	total, err := l.Total()
	if err != nil {
		return model.Record{}, false, err
	}
	if !l.retained(index, total) {
		return model.Record{}, false, nil
	}
	return l.readAt(index)
}

func (l *Ledger) retained(index, total uint64) bool {
	if index >= total {
		return false
	}
	return total <= l.cap || index >= total-l.cap
}

func (l *Ledger) readAt(index uint64) (model.Record, bool, error) {
	base := recordsBase.Add((index % l.cap) * wordsPerRecord)
	w0, ok0, err := l.st.Read(base)
	if err != nil {
		return model.Record{}, false, err
	}
	w1, ok1, err := l.st.Read(base.Add(1))
	if err != nil {
		return model.Record{}, false, err
	}
	if !ok0 || !ok1 {
		return model.Record{}, false, nil
	}
	rec, err := decodeRecord(base, w0, w1)
	if err != nil {
		return model.Record{}, false, err
	}
	if rec.Seq != index {
		// never hand out a record that belongs to another index
		return model.Record{}, false, nil
	}
	return rec, true, nil
}

// Recent returns up to count records, newest first.
func (l *Ledger) Recent(count uint64) ([]model.Record, error) {
	out := make([]model.Record, 0, min(count, l.cap))
	for rec, err := range l.All() {
		if err != nil {
			return nil, err
		}
		if uint64(len(out)) >= count {
			break
		}
		out = append(out, rec)
	}
	return out, nil
}

// All yields the retained records newest first. Iteration reads slots lazily
// and stops at the first error.
func (l *Ledger) All() iter.Seq2[model.Record, error] {
	return func(yield func(model.Record, error) bool) {
		total, err := l.Total()
		if err != nil {
			yield(model.Record{}, err)
			return
		}
		n := min(total, l.cap)
		for k := uint64(0); k < n; k++ {
			rec, ok, err := l.readAt(total - 1 - k)
			if err != nil {
				yield(model.Record{}, err)
				return
			}
			if !ok {
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// word0: caller[0:20] | 0[20:24] | at[24:32]
// word1: 0[0:24]      | seq[24:32]
func encodeRecord(r model.Record) (slot.Word, slot.Word) {
	var w0 slot.Word
	copy(w0[:20], r.Caller[:])
	binary.BigEndian.PutUint64(w0[24:], r.At)
	return w0, slot.WordFromU64(r.Seq)
}

func decodeRecord(base slot.Addr, w0, w1 slot.Word) (model.Record, error) {
	seq, ok := w1.U64()
	if !ok {
		return model.Record{}, &slot.CorruptError{Addr: base.Add(1)}
	}
	var r model.Record
	copy(r.Caller[:], w0[:20])
	r.At = binary.BigEndian.Uint64(w0[24:])
	r.Seq = seq
	return r, nil
}
