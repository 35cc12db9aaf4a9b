package v1

import (
	"encoding/json"
	"time"
)

// Envelope is the canonical, versioned event envelope for cross-runtime use.
// This package is generated-contract-only and must stay backward compatible.
type Envelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

// EventTypeDistributionCompleted is emitted once per settled mining session.
const EventTypeDistributionCompleted = "pool.distribution.completed"

// DistributionCompletedData is the Data payload for
// EventTypeDistributionCompleted, schema version 1.
type DistributionCompletedData struct {
	SessionID                string `json:"session_id"`
	TotalDistributedLamports uint64 `json:"total_distributed_lamports"`
	TransferCount            int    `json:"transfer_count"`
	SuccessCount             int    `json:"success_count"`
}
