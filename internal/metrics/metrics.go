package metrics

import (
	"sync"
	"time"
)

// Snapshot is a point-in-time copy of the in-memory counters.
type Snapshot struct {
	Translations     int
	BySport          map[string]int
	CacheHits        int
	CacheMisses      int
	CacheErrors      int
	StorageErrors    int
	RetentionCycles  int
	RetentionPurged  int64
	RetentionErrors  int
	LiveConnections  int
	LastTranslateDur time.Duration
}

// Recorder captures in-memory counters and forwards them to OpenTelemetry
// instruments when telemetry is enabled. A nil *Recorder is a valid no-op.
type Recorder struct {
	mu    sync.Mutex
	stats Snapshot
	otel  *otelInstruments
}

func NewRecorder() *Recorder {
	return newRecorder(nil)
}

func newRecorder(otel *otelInstruments) *Recorder {
	return &Recorder{
		stats: Snapshot{BySport: make(map[string]int)},
		otel:  otel,
	}
}

// RecordTranslation counts a translation served from source for sport.
func (r *Recorder) RecordTranslation(sport, source string, duration time.Duration) {
	if r == nil {
		return
	}

	r.mu.Lock()
	r.stats.Translations++
	r.stats.BySport[sport]++
	r.stats.LastTranslateDur = duration
	r.mu.Unlock()

	r.otel.recordTranslation(sport, source, duration)
}

// RecordCacheLookup counts a cache hit, miss or error.
func (r *Recorder) RecordCacheLookup(outcome string) {
	if r == nil {
		return
	}

	r.mu.Lock()
	switch outcome {
	case OutcomeHit:
		r.stats.CacheHits++
	case OutcomeMiss:
		r.stats.CacheMisses++
	default:
		r.stats.CacheErrors++
	}
	r.mu.Unlock()

	r.otel.recordCacheLookup(outcome)
}

// RecordStorageError counts a failed repository operation.
func (r *Recorder) RecordStorageError(op string) {
	if r == nil {
		return
	}

	r.mu.Lock()
	r.stats.StorageErrors++
	r.mu.Unlock()

	r.otel.recordStorageError(op)
}

// RecordRetentionCycle tracks one run of the retention worker.
func (r *Recorder) RecordRetentionCycle(purged int64, duration time.Duration, err error) {
	if r == nil {
		return
	}

	r.mu.Lock()
	r.stats.RetentionCycles++
	r.stats.RetentionPurged += purged
	if err != nil {
		r.stats.RetentionErrors++
	}
	r.mu.Unlock()

	r.otel.recordRetention(purged, duration, err)
}

// LiveConnected adjusts the open live-preview connection gauge by delta.
func (r *Recorder) LiveConnected(delta int) {
	if r == nil {
		return
	}

	r.mu.Lock()
	r.stats.LiveConnections += delta
	r.mu.Unlock()

	r.otel.recordLive(delta)
}

// RecordHTTPRequest tracks basic HTTP metrics.
func (r *Recorder) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if r == nil {
		return
	}
	r.otel.recordHTTPRequest(method, route, status, duration)
}

// Snapshot returns a copy of the in-memory counters.
func (r *Recorder) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{BySport: map[string]int{}}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.stats
	snap.BySport = make(map[string]int, len(r.stats.BySport))
	for k, v := range r.stats.BySport {
		snap.BySport[k] = v
	}
	return snap
}
