package id

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ID is a 128-bit, lexicographically sortable record identifier encoded as
// 16 bytes big-endian: [8 bytes ms_timestamp][8 bytes sequence].
type ID [16]byte

var (
	// Zero is the "beginning" sentinel: it sorts before every assigned ID.
	Zero ID
	// Max is the "end" sentinel: it sorts after every assigned ID.
	Max = ID{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
)

// ErrBadID reports an unparseable wire-form ID.
var ErrBadID = errors.New("id: malformed id")

// Ms returns the millisecond timestamp half of the ID.
func (i ID) Ms() int64 { return int64(binary.BigEndian.Uint64(i[0:8])) }

// Seq returns the sequence half of the ID.
func (i ID) Seq() uint64 { return binary.BigEndian.Uint64(i[8:16]) }

// Bytes returns the raw 16-byte representation.
func (i ID) Bytes() []byte { b := make([]byte, 16); copy(b, i[:]); return b }

// IsZero reports whether the ID is the beginning sentinel.
func (i ID) IsZero() bool { return i == Zero }

// String returns the wire form "<ms>-<seq>".
func (i ID) String() string {
	return strconv.FormatInt(i.Ms(), 10) + "-" + strconv.FormatUint(i.Seq(), 10)
}

// Compare returns -1, 0, 1 based on lexical comparison.
func (i ID) Compare(other ID) int {
	for idx := 0; idx < 16; idx++ {
		if i[idx] < other[idx] {
			return -1
		}
		if i[idx] > other[idx] {
			return 1
		}
	}
	return 0
}

// Next returns the smallest ID strictly greater than i. Used to resume reads
// after an inclusive bound. Next of Max saturates at Max.
func (i ID) Next() ID {
	for idx := 15; idx >= 0; idx-- {
		if i[idx] < 0xFF {
			i[idx]++
			return i
		}
		i[idx] = 0
	}
	return Max
}

// Make builds an ID from its timestamp and sequence parts.
func Make(ms int64, seq uint64) ID {
	var out ID
	binary.BigEndian.PutUint64(out[0:8], uint64(ms))
	binary.BigEndian.PutUint64(out[8:16], seq)
	return out
}

// FromBytes builds an ID from a 16-byte slice.
func FromBytes(b []byte) (ID, error) {
	if len(b) != 16 {
		return Zero, fmt.Errorf("%w: want 16 bytes, got %d", ErrBadID, len(b))
	}
	var out ID
	copy(out[:], b)
	return out, nil
}

// Parse decodes the wire form "<ms>-<seq>". The sentinels "-" (or "0") and
// "+" map to Zero and Max, matching the read-range shorthand of the API.
func Parse(s string) (ID, error) {
	switch s {
	case "", "-", "0":
		return Zero, nil
	case "+":
		return Max, nil
	}
	dash := strings.IndexByte(s, '-')
	if dash <= 0 {
		return Zero, fmt.Errorf("%w: %q", ErrBadID, s)
	}
	ms, err := strconv.ParseInt(s[:dash], 10, 64)
	if err != nil || ms < 0 {
		return Zero, fmt.Errorf("%w: %q", ErrBadID, s)
	}
	seq, err := strconv.ParseUint(s[dash+1:], 10, 64)
	if err != nil {
		return Zero, fmt.Errorf("%w: %q", ErrBadID, s)
	}
	return Make(ms, seq), nil
}

// Generator produces strictly increasing IDs per process.
type Generator struct {
	mu     sync.Mutex
	lastMs int64
	seq    uint64
}

// NewGenerator creates a Generator.
func NewGenerator() *Generator { return &Generator{} }

// Seed advances the generator past the given ID if it is ahead. Used on
// restart so reopened topics never hand out an ID below the persisted tail.
func (g *Generator) Seed(last ID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if last.Ms() > g.lastMs || (last.Ms() == g.lastMs && last.Seq() > g.seq) {
		g.lastMs = last.Ms()
		g.seq = last.Seq()
	}
}

// NowMs returns current time in milliseconds since Unix epoch.
var NowMs = func() int64 { return time.Now().UnixMilli() }

// Next returns a new ID. If the clock has not advanced (or went backwards),
// the previous timestamp is kept and the sequence is incremented; the
// sequence resets to zero whenever the timestamp moves forward. On sequence
// overflow within one millisecond it waits for the next tick.
func (g *Generator) Next() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := NowMs()
	if ms < g.lastMs {
		ms = g.lastMs
	}
	if ms == g.lastMs {
		if g.seq == math.MaxUint64 {
			for {
				ms = NowMs()
				if ms > g.lastMs {
					break
				}
				time.Sleep(time.Millisecond / 8)
			}
			g.seq = 0
		} else {
			g.seq++
		}
	} else {
		g.seq = 0
	}
	g.lastMs = ms
	return Make(ms, g.seq)
}
