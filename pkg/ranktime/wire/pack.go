package wire

import (
	"encoding/binary"
	"fmt"
)

// PackedSize returns the exact byte size PackPayload will produce for
// the given segments. Senders use it to allocate the buffer up front.
func PackedSize(data []int64, states []StateChange) int {
	n := 8 * len(data)
	for _, sc := range states {
		n += 2 + len(sc.State) + 8
	}
	return n
}

// PackPayload serializes the sample data followed by the state changes
// into one contiguous buffer. The segment order is fixed: unpacking must
// read the segments in the same order.
func PackPayload(data []int64, states []StateChange) ([]byte, error) {
	buf := make([]byte, 0, PackedSize(data, states))
	for _, v := range data {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(v))
	}
	for _, sc := range states {
		if len(sc.State) > MaxNameLen {
			return nil, &NameTooLongError{Name: sc.State, Limit: MaxNameLen}
		}
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(sc.State)))
		buf = append(buf, sc.State...)
		buf = binary.LittleEndian.AppendUint64(buf, uint64(sc.Timestamp))
	}
	return buf, nil
}

// UnpackPayload reverses PackPayload. The element counts come from the
// EventRecord that preceded the payload on the wire; the buffer must be
// consumed exactly.
func UnpackPayload(buf []byte, dataLen, stateLen int) ([]int64, []StateChange, error) {
	if dataLen < 0 || stateLen < 0 {
		return nil, nil, fmt.Errorf("negative payload lengths: data=%d states=%d", dataLen, stateLen)
	}
	if len(buf) < 8*dataLen {
		return nil, nil, fmt.Errorf("packed payload too short for %d samples: %d bytes", dataLen, len(buf))
	}

	data := make([]int64, dataLen)
	for i := range data {
		data[i] = int64(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	rest := buf[8*dataLen:]

	states := make([]StateChange, stateLen)
	for i := range states {
		if len(rest) < 2 {
			return nil, nil, fmt.Errorf("packed payload truncated at state change %d", i)
		}
		nameLen := int(binary.LittleEndian.Uint16(rest))
		rest = rest[2:]
		if len(rest) < nameLen+8 {
			return nil, nil, fmt.Errorf("packed payload truncated at state change %d", i)
		}
		states[i].State = string(rest[:nameLen])
		states[i].Timestamp = int64(binary.LittleEndian.Uint64(rest[nameLen:]))
		rest = rest[nameLen+8:]
	}
	if len(rest) != 0 {
		return nil, nil, fmt.Errorf("packed payload has %d trailing bytes", len(rest))
	}
	return data, states, nil
}
