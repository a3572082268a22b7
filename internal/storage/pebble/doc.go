// Package pebblestore provides a thin wrapper around Pebble with fsync
// policy, batches, and iterator access.
//
// All broker state lives here: topic entries, group cursors and pending
// sets, lock records, and rate-limit windows. Multi-key mutations go through
// batches so each logical operation commits atomically.
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: dir,
//	    Fsync:   pebblestore.FsyncModeInterval,
//	})
//	if err != nil { /* handle */ }
//	defer db.Close()
package pebblestore
