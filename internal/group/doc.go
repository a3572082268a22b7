// Package group implements durable consumer groups over a topic log.
//
// A group tracks a cursor (last delivered ID) and a per-consumer pending
// entries list. Claim hands each record to exactly one consumer; the record
// stays pending until acknowledged or until its claim deadline passes, at
// which point any consumer's next Claim reassigns it with an incremented
// delivery count. Delivery is therefore at least once.
//
// All state lives in the shared Pebble keyspace under g/{topic}/{group}/ and
// survives restarts. The registry also reports the lowest unacknowledged ID
// per topic so retention trims never delete records a group still needs.
package group
