package httpserver

import (
	"github.com/strandmq/strand/internal/group"
	"github.com/strandmq/strand/internal/topiclog"
)

// recordJSON is the wire form of one record. Field values travel as strings.
type recordJSON struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

func toRecordJSON(rec topiclog.Record) recordJSON {
	fields := make(map[string]string, len(rec.Fields))
	for k, v := range rec.Fields {
		fields[k] = string(v)
	}
	return recordJSON{ID: rec.ID.String(), Fields: fields}
}

func toRecordsJSON(recs []topiclog.Record) []recordJSON {
	out := make([]recordJSON, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toRecordJSON(rec))
	}
	return out
}

func toFieldBytes(fields map[string]string) map[string][]byte {
	out := make(map[string][]byte, len(fields))
	for k, v := range fields {
		out[k] = []byte(v)
	}
	return out
}

type pendingJSON struct {
	Consumer      string `json:"consumer"`
	ID            string `json:"id"`
	ClaimedAtMs   int64  `json:"claimedAtMs"`
	DeliveryCount int    `json:"deliveryCount"`
}

func toPendingJSON(entries []group.PendingEntry) []pendingJSON {
	out := make([]pendingJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, pendingJSON{
			Consumer:      e.Consumer,
			ID:            e.ID.String(),
			ClaimedAtMs:   e.ClaimedAtMs,
			DeliveryCount: e.DeliveryCount,
		})
	}
	return out
}
