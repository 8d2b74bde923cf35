// Package wire defines the binary records exchanged during collection.
//
// All records are length-prefixed and carry an explicit version byte, so
// the format is independent of any in-memory layout. Durations and
// timestamps travel as nanosecond counts; millisecond rounding happens
// only at the rendering layer.
package wire

import (
	"encoding/binary"
	"fmt"
)

// Version is the current wire format version. Decoders reject records
// written with any other version.
const Version = 1

// MaxNameLen bounds the event name carried in an EventRecord. Names over
// the limit are rejected at encode time, never truncated.
const MaxNameLen = 255

// StateChange is a named, timestamped marker within an event's lifetime.
// Timestamps are nanoseconds on the run's normalized timeline.
type StateChange struct {
	State     string
	Timestamp int64
}

// NameTooLongError reports an event name that exceeds MaxNameLen.
type NameTooLongError struct {
	Name  string
	Limit int
}

// Error implements the error interface.
func (e *NameTooLongError) Error() string {
	return fmt.Sprintf("event name %q exceeds wire limit of %d bytes (got %d)",
		e.Name, e.Limit, len(e.Name))
}

// VersionError reports a record written with an unsupported version.
type VersionError struct {
	Got int
}

// Error implements the error interface.
func (e *VersionError) Error() string {
	return fmt.Sprintf("unsupported wire version %d (want %d)", e.Got, Version)
}

// EventRecord is the fixed summary sent once per aggregated event. The
// two length fields announce the element counts of the packed payload
// that follows it on the wire.
type EventRecord struct {
	Name    string
	Rank    int32
	Count   int64
	TotalNs int64
	MaxNs   int64
	MinNs   int64

	// DataLen and StateLen are element counts, not byte counts.
	DataLen  int32
	StateLen int32
}

// eventRecordFixed is the byte size of an EventRecord after the name:
// rank + count + total + max + min + dataLen + stateLen.
const eventRecordFixed = 4 + 8 + 8 + 8 + 8 + 4 + 4

// MarshalBinary encodes the record. It fails if the name exceeds
// MaxNameLen.
func (r *EventRecord) MarshalBinary() ([]byte, error) {
	if len(r.Name) > MaxNameLen {
		return nil, &NameTooLongError{Name: r.Name, Limit: MaxNameLen}
	}

	buf := make([]byte, 0, 1+2+len(r.Name)+eventRecordFixed)
	buf = append(buf, Version)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(r.Name)))
	buf = append(buf, r.Name...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(r.Rank))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(r.Count))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(r.TotalNs))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(r.MaxNs))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(r.MinNs))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(r.DataLen))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(r.StateLen))
	return buf, nil
}

// UnmarshalBinary decodes a record produced by MarshalBinary.
func (r *EventRecord) UnmarshalBinary(buf []byte) error {
	if len(buf) < 3 {
		return fmt.Errorf("event record too short: %d bytes", len(buf))
	}
	if buf[0] != Version {
		return &VersionError{Got: int(buf[0])}
	}
	nameLen := int(binary.LittleEndian.Uint16(buf[1:3]))
	rest := buf[3:]
	if len(rest) != nameLen+eventRecordFixed {
		return fmt.Errorf("event record truncated: want %d bytes after header, got %d",
			nameLen+eventRecordFixed, len(rest))
	}
	r.Name = string(rest[:nameLen])
	rest = rest[nameLen:]
	r.Rank = int32(binary.LittleEndian.Uint32(rest[0:4]))
	r.Count = int64(binary.LittleEndian.Uint64(rest[4:12]))
	r.TotalNs = int64(binary.LittleEndian.Uint64(rest[12:20]))
	r.MaxNs = int64(binary.LittleEndian.Uint64(rest[20:28]))
	r.MinNs = int64(binary.LittleEndian.Uint64(rest[28:36]))
	r.DataLen = int32(binary.LittleEndian.Uint32(rest[36:40]))
	r.StateLen = int32(binary.LittleEndian.Uint32(rest[40:44]))
	return nil
}

// LifetimeRecord carries one rank's process lifetime, sent once per rank
// ahead of its event records. Both fields are epoch nanoseconds.
type LifetimeRecord struct {
	InitializedNs int64
	FinalizedNs   int64
}

// MarshalBinary encodes the record.
func (r *LifetimeRecord) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, 1+16)
	buf = append(buf, Version)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(r.InitializedNs))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(r.FinalizedNs))
	return buf, nil
}

// UnmarshalBinary decodes a record produced by MarshalBinary.
func (r *LifetimeRecord) UnmarshalBinary(buf []byte) error {
	if len(buf) != 17 {
		return fmt.Errorf("lifetime record: want 17 bytes, got %d", len(buf))
	}
	if buf[0] != Version {
		return &VersionError{Got: int(buf[0])}
	}
	r.InitializedNs = int64(binary.LittleEndian.Uint64(buf[1:9]))
	r.FinalizedNs = int64(binary.LittleEndian.Uint64(buf[9:17]))
	return nil
}
