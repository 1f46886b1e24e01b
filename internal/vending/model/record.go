package model

// Timestamp is supplied by the host clock. It is never generated inside the core.
type Timestamp = uint64

// Record is one vend kept in the ledger. Seq is the 0-based insertion index.
type Record struct {
	Caller Identity  `json:"caller"`
	At     Timestamp `json:"at"`
	Seq    uint64    `json:"seq"`
}
