package group

import (
	"encoding/binary"

	"github.com/strandmq/strand/pkg/id"
)

// Key layout under the group prefix g/{topic}/{group}/:
//
//	m                      group metadata (JSON)
//	c                      cursor, last delivered ID (16 bytes)
//	p/{consumer}/{id}      pending entry (JSON claimedAtMs, deliveryCount, deadlineMs)
//	x/{deadline_be8}/{id}  reclaim index, value is the holding consumer
//
// Topic, group, and consumer names must not contain '/'.

func groupPrefix(topic, group string) string {
	return "g/" + topic + "/" + group + "/"
}

// KeyTopicGroupsPrefix scans every group of a topic.
func KeyTopicGroupsPrefix(topic string) []byte {
	return []byte("g/" + topic + "/")
}

// KeyGroupMeta returns the metadata key for a group.
func KeyGroupMeta(topic, group string) []byte {
	return []byte(groupPrefix(topic, group) + "m")
}

// KeyGroupCursor returns the cursor key for a group.
func KeyGroupCursor(topic, group string) []byte {
	return []byte(groupPrefix(topic, group) + "c")
}

// KeyPending returns the pending-entry key for one claimed record.
func KeyPending(topic, group, consumer string, rid id.ID) []byte {
	prefix := groupPrefix(topic, group) + "p/" + consumer + "/"
	key := make([]byte, len(prefix)+16)
	copy(key, prefix)
	copy(key[len(prefix):], rid.Bytes())
	return key
}

// KeyPendingPrefix scans all pending entries of a group.
func KeyPendingPrefix(topic, group string) []byte {
	return []byte(groupPrefix(topic, group) + "p/")
}

// KeyReclaim returns the reclaim index key for one claim deadline.
func KeyReclaim(topic, group string, deadlineMs int64, rid id.ID) []byte {
	prefix := groupPrefix(topic, group) + "x/"
	key := make([]byte, len(prefix)+8+16)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], uint64(deadlineMs))
	copy(key[len(prefix)+8:], rid.Bytes())
	return key
}

// KeyReclaimPrefix scans the reclaim index of a group.
func KeyReclaimPrefix(topic, group string) []byte {
	return []byte(groupPrefix(topic, group) + "x/")
}

// pendingKeyParts extracts the consumer and record ID from a pending key.
func pendingKeyParts(topic, group string, key []byte) (consumer string, rid id.ID, ok bool) {
	prefix := KeyPendingPrefix(topic, group)
	if len(key) < len(prefix)+1+16 {
		return "", id.Zero, false
	}
	rest := key[len(prefix):]
	sep := len(rest) - 17
	if rest[sep] != '/' {
		return "", id.Zero, false
	}
	rid, err := id.FromBytes(rest[sep+1:])
	if err != nil {
		return "", id.Zero, false
	}
	return string(rest[:sep]), rid, true
}

// reclaimKeyParts extracts the deadline and record ID from a reclaim index key.
func reclaimKeyParts(topic, group string, key []byte) (deadlineMs int64, rid id.ID, ok bool) {
	prefix := KeyReclaimPrefix(topic, group)
	if len(key) != len(prefix)+8+16 {
		return 0, id.Zero, false
	}
	rest := key[len(prefix):]
	deadlineMs = int64(binary.BigEndian.Uint64(rest[:8]))
	rid, err := id.FromBytes(rest[8:])
	if err != nil {
		return 0, id.Zero, false
	}
	return deadlineMs, rid, true
}

// groupNameFromKey extracts the group segment from any key under the topic's
// group prefix.
func groupNameFromKey(topic string, key []byte) (string, bool) {
	prefix := KeyTopicGroupsPrefix(topic)
	if len(key) <= len(prefix) {
		return "", false
	}
	rest := key[len(prefix):]
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			return string(rest[:i]), true
		}
	}
	return "", false
}
