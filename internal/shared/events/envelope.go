package events

import (
	"encoding/json"
	"time"
)

// Envelope is the canonical event shape published on the in-process bus.
// Keep it backward compatible; consumers dispatch on EventType.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	SourceService string          `json:"source_service"`
	PartitionKey  string          `json:"partition_key"`
	SchemaVersion int             `json:"schema_version"`
	Data          json.RawMessage `json:"data"`
}
