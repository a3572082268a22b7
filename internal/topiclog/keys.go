package topiclog

import (
	"github.com/strandmq/strand/pkg/id"
)

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
//   - t/{topic}/m            (topic metadata: last assigned ID)
//   - t/{topic}/cfg          (topic retention config, JSON)
//   - t/{topic}/e/{id_be16}  (entries)

var (
	topicPrefix = []byte("t/")
	metaSuffix  = []byte("/m")
	cfgSuffix   = []byte("/cfg")
	entrySeg    = []byte("/e/")
)

// KeyTopicMeta builds the topic metadata key.
func KeyTopicMeta(topic string) []byte {
	k := make([]byte, 0, len(topic)+8)
	k = append(k, topicPrefix...)
	k = append(k, topic...)
	k = append(k, metaSuffix...)
	return k
}

// KeyTopicConfig builds the topic retention config key.
func KeyTopicConfig(topic string) []byte {
	k := make([]byte, 0, len(topic)+8)
	k = append(k, topicPrefix...)
	k = append(k, topic...)
	k = append(k, cfgSuffix...)
	return k
}

// KeyEntry builds an entry key; the big-endian ID keeps entries in append
// order under iteration.
func KeyEntry(topic string, rid id.ID) []byte {
	k := make([]byte, 0, len(topic)+24)
	k = append(k, topicPrefix...)
	k = append(k, topic...)
	k = append(k, entrySeg...)
	k = append(k, rid[:]...)
	return k
}

// KeyEntryPrefix returns the prefix covering all entries of a topic.
func KeyEntryPrefix(topic string) []byte {
	k := make([]byte, 0, len(topic)+8)
	k = append(k, topicPrefix...)
	k = append(k, topic...)
	k = append(k, entrySeg...)
	return k
}

// entryID extracts the ID from an entry key.
func entryID(key []byte) id.ID {
	var rid id.ID
	if len(key) >= 16 {
		copy(rid[:], key[len(key)-16:])
	}
	return rid
}
