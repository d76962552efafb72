package session

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeWithoutSchema(t *testing.T) {
	related := uuid.New()
	rec := record(5, 42)
	rec.RelatedActivityID = related
	rec.UserData = []byte{0xde, 0xad}
	rec.Stack = []uint64{0x1000, 0x2000}

	ev := normalize(&rec, nil)

	require.NotNil(t, ev.RelatedActivityID)
	assert.Equal(t, related, *ev.RelatedActivityID)
	assert.Nil(t, ev.ActivityID)
	assert.Equal(t, []byte{0xde, 0xad}, ev.RawData)
	assert.Equal(t, []uint64{0x1000, 0x2000}, ev.Stack)
	assert.Empty(t, ev.Properties)

	// Backend buffers are reused after the callback returns.
	rec.UserData[0] = 0
	rec.Stack[0] = 0
	assert.EqualValues(t, 0xde, ev.RawData[0])
	assert.EqualValues(t, 0x1000, ev.Stack[0])
}
