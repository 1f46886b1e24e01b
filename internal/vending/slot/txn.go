package slot

// Txn is the per-invocation view of the store. Writes stay buffered until
// Commit, which hands them to the backend as a single batch. Dropping a Txn
// (or calling Discard) leaves the backend untouched.
type Txn struct {
	be      Backend
	pending map[Addr]Word
	order   []Addr
	closed  bool
}

func Begin(be Backend) *Txn {
	return &Txn{be: be, pending: make(map[Addr]Word)}
}

func (t *Txn) Read(a Addr) (Word, bool, error) {
	if t.closed {
		return Word{}, false, ErrTxnClosed
	}
	if w, ok := t.pending[a]; ok {
		return w, true, nil
	}
	return t.be.Get(a)
}

func (t *Txn) Write(a Addr, w Word) error {
	if t.closed {
		return ErrTxnClosed
	}
	if _, seen := t.pending[a]; !seen {
		t.order = append(t.order, a)
	}
	t.pending[a] = w
	return nil
}

// Dirty reports how many distinct slots are staged.
func (t *Txn) Dirty() int { return len(t.order) }

func (t *Txn) Commit() error {
	if t.closed {
		return ErrTxnClosed
	}
	t.closed = true
	if len(t.order) == 0 {
		return nil
	}
	batch := make([]Write, 0, len(t.order))
	for _, a := range t.order {
		batch = append(batch, Write{Addr: a, Word: t.pending[a]})
	}
	return t.be.Apply(batch)
}

func (t *Txn) Discard() {
	t.closed = true
	t.pending = nil
	t.order = nil
}
