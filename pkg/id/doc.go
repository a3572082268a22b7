// Package id generates the record identifiers used across strand.
//
// An ID is a (timestamp_ms, sequence) pair packed into 16 big-endian bytes so
// that byte order equals assignment order. The Generator guarantees strict
// monotonicity per process even when the wall clock stalls or steps backwards:
// the previous timestamp is reused and the sequence incremented until the
// clock catches up.
//
// The wire form is "<ms>-<seq>"; "-" and "+" are accepted as the beginning
// and end sentinels in range reads.
package id
