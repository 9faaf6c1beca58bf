package storage

import "github.com/docker/go-metrics"

var (
	// storageNamespace is the prometheus namespace of engine storage
	// operations.
	storageNamespace = metrics.NewNamespace("akashica", "storage", nil)

	objectsWrittenCounter  = storageNamespace.NewCounter("objects_written", "The number of object blobs written to the backend")
	dedupHitsCounter       = storageNamespace.NewCounter("dedup_hits", "The number of object or manifest writes satisfied by an existing blob")
	publishesCounter       = storageNamespace.NewCounter("publishes", "The number of workspaces published into commits")
	branchConflictsCounter = storageNamespace.NewCounter("branch_conflicts", "The number of branch compare-and-swap failures")
	scrubsCounter          = storageNamespace.NewCounter("scrubs", "The number of objects scrubbed")
)

func init() {
	metrics.Register(storageNamespace)
}
