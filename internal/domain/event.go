package domain

import (
	"context"
	"time"
)

// RawEvent is a message fetched from the request topic. Commit acknowledges
// it and is nil for events that did not come from a consumer group.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// OutputEvent is a serialized assessment ready for a sink.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}
