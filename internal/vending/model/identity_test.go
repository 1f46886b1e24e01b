package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseIdentity(t *testing.T) {
	id, err := ParseIdentity(" 0XA100000000000000000000000000000000000001 ")
	require.NoError(t, err)
	require.Equal(t, byte(0xa1), id[0])
	require.Equal(t, byte(0x01), id[19])
	require.Equal(t, "0xa100000000000000000000000000000000000001", id.Hex())

	_, err = ParseIdentity("")
	require.ErrorIs(t, err, ErrEmptyIdentityStr)
	_, err = ParseIdentity("0x1234")
	require.ErrorIs(t, err, ErrInvalidLen)
	_, err = ParseIdentity("0x" + "zz000000000000000000000000000000000000zz")
	require.ErrorIs(t, err, ErrInvalidHex)
}

func TestRecordJSONUsesHexCaller(t *testing.T) {
	r := Record{Caller: Identity{0xff}, At: 5, Seq: 1}
	b, err := json.Marshal(r)
	require.NoError(t, err)
	require.JSONEq(t, `{"caller":"0xff00000000000000000000000000000000000000","at":5,"seq":1}`, string(b))

	var back Record
	require.NoError(t, json.Unmarshal(b, &back))
	require.Equal(t, r, back)

	var id Identity
	require.NoError(t, json.Unmarshal([]byte("null"), &id))
	require.True(t, id.IsZero())
}

func TestBytesToIdentity(t *testing.T) {
	_, err := BytesToIdentity(make([]byte, 19))
	require.ErrorIs(t, err, ErrInvalidLen)
	id, err := BytesToIdentity(make([]byte, 20))
	require.NoError(t, err)
	require.True(t, id.IsZero())
}
