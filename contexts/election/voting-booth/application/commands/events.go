package commands

import (
	"encoding/json"
	"time"

	"ballotbooth/contexts/election/voting-booth/ports"
)

const (
	EventVoteCast = "vote.cast"
)

func newBoothEnvelope(
	eventID string,
	eventType string,
	voterID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	// Partitioned by voter so a voter's events stay ordered.
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "voting-booth",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "voter_id",
		PartitionKey:     voterID,
		Data:             payload,
	}, nil
}
