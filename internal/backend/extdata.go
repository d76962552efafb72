package backend

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// Extended data item types carried alongside an event header.
const (
	extTypeRelatedActivityID uint16 = 0x0001
	extTypeStackTrace32      uint16 = 0x0005
	extTypeStackTrace64      uint16 = 0x0006
)

// stackMatchIDSize is the MatchId that prefixes both stack trace layouts.
const stackMatchIDSize = 8

// extItem is one extended data item: its type and raw payload.
type extItem struct {
	typ  uint16
	data []byte
}

// applyExtended copies the related activity ID and the call stack out of
// items. Payloads are copied, so items may point into backend buffers.
func applyExtended(rec *Record, items []extItem) {
	for _, it := range items {
		switch it.typ {
		case extTypeRelatedActivityID:
			if len(it.data) >= 16 {
				rec.RelatedActivityID = guidFromLE(it.data)
			}
		case extTypeStackTrace64:
			rec.Stack = stackAddresses(it.data, 8)
		case extTypeStackTrace32:
			rec.Stack = stackAddresses(it.data, 4)
		}
	}
}

func stackAddresses(data []byte, width int) []uint64 {
	if len(data) <= stackMatchIDSize {
		return nil
	}
	frames := data[stackMatchIDSize:]
	out := make([]uint64, 0, len(frames)/width)
	for len(frames) >= width {
		if width == 8 {
			out = append(out, binary.LittleEndian.Uint64(frames))
		} else {
			out = append(out, uint64(binary.LittleEndian.Uint32(frames)))
		}
		frames = frames[width:]
	}
	return out
}

// guidFromLE decodes a GUID in its in-memory layout, where the first three
// fields are little endian.
func guidFromLE(b []byte) uuid.UUID {
	var u uuid.UUID
	binary.BigEndian.PutUint32(u[0:4], binary.LittleEndian.Uint32(b[0:4]))
	binary.BigEndian.PutUint16(u[4:6], binary.LittleEndian.Uint16(b[4:6]))
	binary.BigEndian.PutUint16(u[6:8], binary.LittleEndian.Uint16(b[6:8]))
	copy(u[8:], b[8:16])
	return u
}
