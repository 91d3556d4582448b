// Package metrics provides per-run metrics collection.
//
// The Collector accumulates counters during a single pipeline run. It is a
// leaf package with no internal dependencies. Run-status counters are recorded
// once at finalization rather than inferred live, avoiding double-counting.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all run metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Task lifecycle
	TasksStarted   int64
	TasksSucceeded int64
	TasksFailed    int64
	TaskRetries    int64
	TaskTimeouts   int64

	// Phases
	PhasesRun     int64
	PhasesSkipped int64

	// Artifacts
	ArtifactsPersisted int64
	ArtifactWriteFails int64

	// Notifications
	NotifyDelivered int64
	NotifyDropped   int64

	// Runs by terminal status, keyed by types.RunStatus string values.
	RunsByStatus map[string]int64

	// Dimensions (informational, set at construction)
	Plan           string
	StorageBackend string
	RunID          string
	Sector         string
	Region         string
}

// Collector accumulates metrics during a single run.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	// Task lifecycle
	tasksStarted   int64
	tasksSucceeded int64
	tasksFailed    int64
	taskRetries    int64
	taskTimeouts   int64

	// Phases
	phasesRun     int64
	phasesSkipped int64

	// Artifacts
	artifactsPersisted int64
	artifactWriteFails int64

	// Notifications
	notifyDelivered int64
	notifyDropped   int64

	runsByStatus map[string]int64

	// Dimensions
	plan           string
	storageBackend string
	runID          string
	sector         string
	region         string
}

// NewCollector creates a Collector with dimension labels. plan and
// storageBackend identify the pipeline shape and artifact store; the remaining
// dimensions echo the run's identity.
func NewCollector(plan, storageBackend, runID, sector, region string) *Collector {
	return &Collector{
		runsByStatus:   make(map[string]int64),
		plan:           plan,
		storageBackend: storageBackend,
		runID:          runID,
		sector:         sector,
		region:         region,
	}
}

// --- Task lifecycle ---

// IncTaskStarted records a task attempt dispatch. Each retry counts as a new
// start.
func (c *Collector) IncTaskStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.tasksStarted++
	c.mu.Unlock()
}

// IncTaskSucceeded records a task reaching terminal success.
func (c *Collector) IncTaskSucceeded() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.tasksSucceeded++
	c.mu.Unlock()
}

// IncTaskFailed records a task exhausting its attempts.
func (c *Collector) IncTaskFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.tasksFailed++
	c.mu.Unlock()
}

// IncTaskRetry records a retry being scheduled after a transient failure.
func (c *Collector) IncTaskRetry() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.taskRetries++
	c.mu.Unlock()
}

// IncTaskTimeout records an attempt canceled by its per-attempt deadline.
func (c *Collector) IncTaskTimeout() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.taskTimeouts++
	c.mu.Unlock()
}

// --- Phases ---

// IncPhaseRun records a phase being dispatched.
func (c *Collector) IncPhaseRun() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.phasesRun++
	c.mu.Unlock()
}

// IncPhaseSkipped records a phase skipped due to an unsatisfiable dependency.
func (c *Collector) IncPhaseSkipped() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.phasesSkipped++
	c.mu.Unlock()
}

// --- Artifacts ---
// Artifact counters are per successful attempt, not per byte. A retried task
// that eventually succeeds counts exactly one persisted artifact.

// IncArtifactPersisted records a durable artifact write.
func (c *Collector) IncArtifactPersisted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.artifactsPersisted++
	c.mu.Unlock()
}

// IncArtifactWriteFail records a failed artifact write.
func (c *Collector) IncArtifactWriteFail() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.artifactWriteFails++
	c.mu.Unlock()
}

// --- Notifications ---

// IncNotifyDelivered records an event accepted by a sink.
func (c *Collector) IncNotifyDelivered() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.notifyDelivered++
	c.mu.Unlock()
}

// IncNotifyDropped records an event a sink failed to deliver. Delivery is
// fire-and-forget, so this is the only trace a lost event leaves.
func (c *Collector) IncNotifyDropped() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.notifyDropped++
	c.mu.Unlock()
}

// --- Finalization ---

// RecordRunStatus records the run's terminal status. Called once at
// finalization. The status key is string-typed to keep this package free of
// dependencies on the types package.
func (c *Collector) RecordRunStatus(status string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.runsByStatus[status]++
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byStatus := make(map[string]int64, len(c.runsByStatus))
	for k, v := range c.runsByStatus {
		byStatus[k] = v
	}

	return Snapshot{
		TasksStarted:   c.tasksStarted,
		TasksSucceeded: c.tasksSucceeded,
		TasksFailed:    c.tasksFailed,
		TaskRetries:    c.taskRetries,
		TaskTimeouts:   c.taskTimeouts,

		PhasesRun:     c.phasesRun,
		PhasesSkipped: c.phasesSkipped,

		ArtifactsPersisted: c.artifactsPersisted,
		ArtifactWriteFails: c.artifactWriteFails,

		NotifyDelivered: c.notifyDelivered,
		NotifyDropped:   c.notifyDropped,

		RunsByStatus: byStatus,

		Plan:           c.plan,
		StorageBackend: c.storageBackend,
		RunID:          c.runID,
		Sector:         c.sector,
		Region:         c.region,
	}
}
