package metadata

// --- SQLite Keys ---
// These keys are used for the 'key' column in the 'metadata' SQLite table.
const (
	// LastSnapshotEventIDKey stores the ID of the last event record that was
	// included in the last successful ledger cache snapshot.
	LastSnapshotEventIDKey = "last_snapshot_event_id"
)

// --- Redis Keys ---
// These keys are used for storing metadata in Redis.
const (
	// RedisLastProcessedEventIDKey is a Redis String that stores the ID of the
	// last event successfully applied to the ledger cache by the event
	// processor. It's the live checkpoint.
	RedisLastProcessedEventIDKey = "meta:last_processed_event_id"
)
