package metrics

import "time"

// SnapshotMetrics observes snapshot saves and restores.
type SnapshotMetrics interface {
	// RecordSnapshot records one save or load against a store.
	//
	// Parameters:
	//   - operation: "save" or "load"
	//   - store: store type ("memory", "badger", "s3")
	//   - duration: time taken
	//   - err: nil on success
	RecordSnapshot(operation, store string, duration time.Duration, err error)

	// SetSnapshotSize records how many files and accounts the last snapshot
	// carried.
	SetSnapshotSize(files, accounts int)
}

type noopSnapshotMetrics struct{}

// NewNoopSnapshotMetrics returns a SnapshotMetrics that records nothing.
func NewNoopSnapshotMetrics() SnapshotMetrics {
	return noopSnapshotMetrics{}
}

func (noopSnapshotMetrics) RecordSnapshot(string, string, time.Duration, error) {}
func (noopSnapshotMetrics) SetSnapshotSize(int, int)                            {}
