package queue

import (
	"context"

	"storefront-api/internal/tracking"
)

// TrackingArchiver mirrors ingested telemetry onto the archive
// stream.
type TrackingArchiver struct {
	broker *Broker
}

// NewTrackingArchiver wires the archiver over the broker.
func NewTrackingArchiver(broker *Broker) *TrackingArchiver {
	return &TrackingArchiver{broker: broker}
}

// ArchiveActions publishes the batch to the archive stream.
func (a *TrackingArchiver) ArchiveActions(ctx context.Context, actions []tracking.Action) error {
	return a.broker.Archive(ctx, TypeTrackingArchive, actions)
}
