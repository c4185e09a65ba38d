package model_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sagar-a16z/hub/model"
)

func newMessage(timestamp uint32, hash []byte, remove bool) *model.Message {
	typ := model.MessageTypeCastAdd
	if remove {
		typ = model.MessageTypeCastRemove
	}
	return &model.Message{Type: typ, Timestamp: timestamp, Hash: hash}
}

func TestCompareMessages_HigherTimestampWins(t *testing.T) {
	a := newMessage(100, []byte{0x01}, false)
	b := newMessage(200, []byte{0x01}, false)
	require.Negative(t, model.CompareMessages(a, b))
	require.Positive(t, model.CompareMessages(b, a))
}

func TestCompareMessages_RemoveBeatsAddAtSameTimestamp(t *testing.T) {
	add := newMessage(100, []byte{0x01}, false)
	remove := newMessage(100, []byte{0x01}, true)
	require.Positive(t, model.CompareMessages(remove, add))
	require.Negative(t, model.CompareMessages(add, remove))
}

func TestCompareMessages_GreaterHashWinsOnFullTie(t *testing.T) {
	a := newMessage(100, []byte{0x01}, false)
	b := newMessage(100, []byte{0x02}, false)
	require.Positive(t, model.CompareMessages(b, a))
	require.Negative(t, model.CompareMessages(a, b))
}

func TestCompareMessages_Identical(t *testing.T) {
	a := newMessage(100, []byte{0x01}, false)
	b := newMessage(100, []byte{0x01}, false)
	require.Zero(t, model.CompareMessages(a, b))
}

func TestSyncID_FixedWidthDecimalTimestamp(t *testing.T) {
	id := model.SyncID(42, []byte{0xab, 0xcd})
	require.Equal(t, "0000000042abcd", id)
	require.Len(t, id, 10+4) // 10-digit timestamp + hex of a 2-byte hash
}

func TestFidBytesRoundTrip(t *testing.T) {
	fid := model.FidFromBytes([]byte{1, 2, 3})
	require.Equal(t, []byte{1, 2, 3}, fid.Bytes())
}
