package model

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Identity is an opaque caller id. The core only compares it and uses it as a key.
type Identity [20]byte

var (
	ErrInvalidHex       = errors.New("invalid hex")
	ErrInvalidLen       = errors.New("invalid identity length")
	ErrEmptyIdentityStr = errors.New("empty identity string")
)

// Hex returns the lowercase 0x-prefixed form.
func (id Identity) Hex() string {
	return "0x" + hex.EncodeToString(id[:])
}

func (id Identity) String() string { return id.Hex() }

func (id Identity) Bytes() []byte {
	return append([]byte(nil), id[:]...)
}

func (id Identity) IsZero() bool {
	var z Identity
	return id == z
}

func BytesToIdentity(b []byte) (Identity, error) {
	if len(b) != len(Identity{}) {
		return Identity{}, fmt.Errorf("%w: %d", ErrInvalidLen, len(b))
	}
	var id Identity
	copy(id[:], b)
	return id, nil
}

func ParseIdentity(s string) (Identity, error) {
	var id Identity

	s = strings.TrimSpace(s)
	if s == "" {
		return id, ErrEmptyIdentityStr
	}
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")

	if len(s) != 2*len(id) {
		return id, fmt.Errorf("%w: want %d hex chars, got %d", ErrInvalidLen, 2*len(id), len(s))
	}

	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}
	copy(id[:], b)
	return id, nil
}

func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.Hex()), nil
}

func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := ParseIdentity(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id Identity) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.Hex())
}

// UnmarshalJSON accepts "0x..." or null.
func (id *Identity) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*id = Identity{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return id.UnmarshalText([]byte(s))
}
