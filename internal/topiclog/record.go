package topiclog

import (
	"encoding/binary"
	"hash/crc32"
	"sort"

	"github.com/strandmq/strand/pkg/id"
)

// Record is one immutable entry of a topic.
type Record struct {
	ID     id.ID
	Fields map[string][]byte
}

// Entry encoding: uvarint field count, then per field
// uvarint keyLen | key | uvarint valLen | val, trailing crc32c of the body.
// Keys are written in sorted order so equal records encode identically.

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// EncodeFields serializes a field map into the stored entry value.
func EncodeFields(fields map[string][]byte) []byte {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	size := 10
	for _, k := range keys {
		size += 20 + len(k) + len(fields[k])
	}
	out := make([]byte, 0, size)
	var tmp [10]byte

	n := binary.PutUvarint(tmp[:], uint64(len(keys)))
	out = append(out, tmp[:n]...)
	for _, k := range keys {
		n = binary.PutUvarint(tmp[:], uint64(len(k)))
		out = append(out, tmp[:n]...)
		out = append(out, k...)
		v := fields[k]
		n = binary.PutUvarint(tmp[:], uint64(len(v)))
		out = append(out, tmp[:n]...)
		out = append(out, v...)
	}

	crc := crc32.Checksum(out, castagnoli)
	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], crc)
	return append(out, crcb[:]...)
}

// DecodeFields parses a stored entry value, verifying the checksum.
func DecodeFields(b []byte) (map[string][]byte, bool) {
	if len(b) < 1+4 {
		return nil, false
	}
	body := b[:len(b)-4]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	if crc32.Checksum(body, castagnoli) != expect {
		return nil, false
	}

	count, n := binary.Uvarint(body)
	if n <= 0 || count > uint64(len(body)) {
		return nil, false
	}
	pos := n
	fields := make(map[string][]byte, count)
	for i := uint64(0); i < count; i++ {
		// lengths are bounded against the remaining body before the int
		// conversion; a full uint64 would wrap negative and panic the slice
		klen, kn := binary.Uvarint(body[pos:])
		if kn <= 0 || klen > uint64(len(body)-pos-kn) {
			return nil, false
		}
		pos += kn
		key := string(body[pos : pos+int(klen)])
		pos += int(klen)

		vlen, vn := binary.Uvarint(body[pos:])
		if vn <= 0 || vlen > uint64(len(body)-pos-vn) {
			return nil, false
		}
		pos += vn
		fields[key] = append([]byte(nil), body[pos:pos+int(vlen)]...)
		pos += int(vlen)
	}
	if pos != len(body) {
		return nil, false
	}
	return fields, true
}
