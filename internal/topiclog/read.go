package topiclog

import (
	"github.com/cockroachdb/pebble"

	"github.com/strandmq/strand/pkg/id"
)

// ReadOptions selects an inclusive ID range. A zero From means "beginning";
// a zero To is treated as "end". Limit 0 means no limit.
type ReadOptions struct {
	From  id.ID
	To    id.ID
	Limit int
}

// Read returns up to Limit records in [From, To] in append order. The scan is
// restartable: resume with From = lastReturned.Next().
func (l *Log) Read(opts ReadOptions) ([]Record, error) {
	to := opts.To
	if to.IsZero() {
		to = id.Max
	}

	low := KeyEntry(l.topic, opts.From)
	hi := KeyEntry(l.topic, to)
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: append(hi, 0x00)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []Record
	for ok := iter.First(); ok; ok = iter.Next() {
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
		fields, okDec := DecodeFields(iter.Value())
		if !okDec {
			continue
		}
		out = append(out, Record{ID: entryID(iter.Key()), Fields: fields})
	}
	return out, nil
}

// Get loads a single record by ID.
func (l *Log) Get(rid id.ID) (Record, bool) {
	val, err := l.db.Get(KeyEntry(l.topic, rid))
	if err != nil {
		return Record{}, false
	}
	fields, ok := DecodeFields(val)
	if !ok {
		return Record{}, false
	}
	return Record{ID: rid, Fields: fields}, true
}

// Len counts entries currently stored for the topic.
func (l *Log) Len() (int64, error) {
	prefix := KeyEntryPrefix(l.topic)
	hi := append(append([]byte{}, prefix...), 0xFF)
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: hi})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	var n int64
	for ok := iter.First(); ok; ok = iter.Next() {
		n++
	}
	return n, nil
}
