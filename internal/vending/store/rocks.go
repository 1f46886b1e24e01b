package store

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/tecbot/gorocksdb"

	"github.com/chenzhangda16/web3-vending/internal/vending/slot"
)

// RocksStore is the durable slot.Backend.
type RocksStore struct {
	db *gorocksdb.DB
	ro *gorocksdb.ReadOptions
	wo *gorocksdb.WriteOptions

	deployment string
}

func Open(path string) (*RocksStore, error) {
	opts := gorocksdb.NewDefaultOptions()
	opts.SetCreateIfMissing(true)

	db, err := gorocksdb.OpenDb(opts, path)
	if err != nil {
		return nil, err
	}

	wo := gorocksdb.NewDefaultWriteOptions()
	// a committed vend must survive a crash
	wo.SetSync(true)

	s := &RocksStore{
		db: db,
		ro: gorocksdb.NewDefaultReadOptions(),
		wo: wo,
	}
	if err := s.initMeta(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *RocksStore) Close() {
	if s.ro != nil {
		s.ro.Destroy()
	}
	if s.wo != nil {
		s.wo.Destroy()
	}
	if s.db != nil {
		s.db.Close()
	}
}

func (s *RocksStore) Get(a slot.Addr) (slot.Word, bool, error) {
	val, err := s.db.Get(s.ro, KeySlot(a))
	if err != nil {
		return slot.Word{}, false, err
	}
	defer val.Free()

	if !val.Exists() {
		return slot.Word{}, false, nil
	}
	if val.Size() != len(slot.Word{}) {
		return slot.Word{}, false, &slot.CorruptError{Addr: a}
	}
	// val.Data() is rocksdb-owned memory, copy before Free
	var w slot.Word
	copy(w[:], val.Data())
	return w, true, nil
}

// Apply writes the whole batch in one WriteBatch, so a crash or error never
// leaves part of an invocation behind.
func (s *RocksStore) Apply(batch []slot.Write) error {
	if len(batch) == 0 {
		return nil
	}
	wb := gorocksdb.NewWriteBatch()
	defer wb.Destroy()

	for _, wr := range batch {
		wb.Put(KeySlot(wr.Addr), wr.Word[:])
	}
	return s.db.Write(s.wo, wb)
}

// Deployment is a random id minted when the database was created. A
// recreated store gets a new one, so its ledger indices never alias the old.
func (s *RocksStore) Deployment() string { return s.deployment }

// initMeta stamps a fresh database with the layout version and a deployment
// id, and checks both on an existing one.
func (s *RocksStore) initMeta() error {
	layout, err := s.getMeta(KeyLayout())
	if err != nil {
		return err
	}
	dep, err := s.getMeta(KeyDeployment())
	if err != nil {
		return err
	}
	if layout != "" && layout != slot.LayoutVersion {
		return fmt.Errorf("store: layout %q on disk, want %q", layout, slot.LayoutVersion)
	}
	if layout != "" && dep != "" {
		s.deployment = dep
		return nil
	}

	wb := gorocksdb.NewWriteBatch()
	defer wb.Destroy()
	if layout == "" {
		wb.Put(KeyLayout(), []byte(slot.LayoutVersion))
	}
	if dep == "" {
		var b [16]byte
		if _, err := rand.Read(b[:]); err != nil {
			return err
		}
		dep = hex.EncodeToString(b[:])
		wb.Put(KeyDeployment(), []byte(dep))
	}
	if err := s.db.Write(s.wo, wb); err != nil {
		return err
	}
	s.deployment = dep
	return nil
}

// getMeta returns "" for a missing key.
func (s *RocksStore) getMeta(key []byte) (string, error) {
	val, err := s.db.Get(s.ro, key)
	if err != nil {
		return "", err
	}
	defer val.Free()
	if !val.Exists() {
		return "", nil
	}
	return string(val.Data()), nil
}
