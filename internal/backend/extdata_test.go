package backend

import (
	"encoding/binary"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func guidLE(u uuid.UUID) []byte {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint32(b[0:4], binary.BigEndian.Uint32(u[0:4]))
	binary.LittleEndian.PutUint16(b[4:6], binary.BigEndian.Uint16(u[4:6]))
	binary.LittleEndian.PutUint16(b[6:8], binary.BigEndian.Uint16(u[6:8]))
	copy(b[8:], u[8:])
	return b
}

func stack64(match uint64, frames ...uint64) []byte {
	b := binary.LittleEndian.AppendUint64(nil, match)
	for _, f := range frames {
		b = binary.LittleEndian.AppendUint64(b, f)
	}
	return b
}

func TestApplyExtended(t *testing.T) {
	related := uuid.MustParse("9e814aad-3204-11d2-9a82-006008a86939")
	var rec Record
	applyExtended(&rec, []extItem{
		{typ: extTypeRelatedActivityID, data: guidLE(related)},
		{typ: 0x0002, data: []byte{1, 2, 3}}, // SID, ignored
		{typ: extTypeStackTrace64, data: stack64(7, 0x7ff6a0001000, 0xfffff80312345678)},
	})

	assert.Equal(t, related, rec.RelatedActivityID)
	assert.Equal(t, []uint64{0x7ff6a0001000, 0xfffff80312345678}, rec.Stack)
}

func TestApplyExtendedStack32(t *testing.T) {
	data := binary.LittleEndian.AppendUint64(nil, 1)
	data = binary.LittleEndian.AppendUint32(data, 0x00401000)
	data = binary.LittleEndian.AppendUint32(data, 0x77001234)

	var rec Record
	applyExtended(&rec, []extItem{{typ: extTypeStackTrace32, data: data}})
	assert.Equal(t, []uint64{0x00401000, 0x77001234}, rec.Stack)
}

func TestApplyExtendedMalformed(t *testing.T) {
	var rec Record
	applyExtended(&rec, []extItem{
		{typ: extTypeRelatedActivityID, data: []byte{1, 2, 3}},
		{typ: extTypeStackTrace64, data: stack64(7)},
	})
	assert.Equal(t, uuid.Nil, rec.RelatedActivityID)
	assert.Empty(t, rec.Stack)

	// A trailing partial frame is dropped.
	applyExtended(&rec, []extItem{{typ: extTypeStackTrace64, data: append(stack64(7, 42), 1, 2)}})
	require.Len(t, rec.Stack, 1)
	assert.EqualValues(t, 42, rec.Stack[0])
}
