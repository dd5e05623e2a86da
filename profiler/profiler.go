// Package profiler - Runtime memory and GC profiling for batch runs.
package profiler

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// ProfilingOptions configures the runtime profiler.
type ProfilingOptions struct {
	// SampleInterval specifies how often to collect samples (default: 100ms)
	SampleInterval time.Duration
}

// RuntimeProfiler samples heap and GC statistics in a background goroutine
// between Start and Stop, so a batch run can report what it cost.
type RuntimeProfiler struct {
	sampleInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu             sync.Mutex
	running        bool
	startTime      time.Time
	baseline       runtime.MemStats
	peakHeapAlloc  uint64
	peakGoroutines int
	samples        int
}

// Snapshot reports what the process consumed since Start.
type Snapshot struct {
	// Elapsed is the wall-clock time since Start.
	Elapsed time.Duration `json:"elapsed"`
	// Samples is the number of collected background samples.
	Samples int `json:"samples"`
	// HeapAllocBytes is the live heap at snapshot time.
	HeapAllocBytes uint64 `json:"heap_alloc_bytes"`
	// PeakHeapAllocBytes is the largest sampled live heap.
	PeakHeapAllocBytes uint64 `json:"peak_heap_alloc_bytes"`
	// AllocDeltaBytes is the total allocation volume since Start.
	AllocDeltaBytes uint64 `json:"alloc_delta_bytes"`
	// GCCycles is the number of collections since Start.
	GCCycles uint32 `json:"gc_cycles"`
	// GCCPUFraction is the runtime's cumulative GC CPU share.
	GCCPUFraction float64 `json:"gc_cpu_fraction"`
	// PeakGoroutines is the largest sampled goroutine count.
	PeakGoroutines int `json:"peak_goroutines"`
}

// NewRuntimeProfiler creates a new runtime profiler with the specified
// options.
//
// Arguments:
//   - opts: Configuration options for the profiler.
//
// Returns:
//   - A configured RuntimeProfiler instance.
func NewRuntimeProfiler(opts ProfilingOptions) *RuntimeProfiler {
	if opts.SampleInterval == 0 {
		opts.SampleInterval = 100 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &RuntimeProfiler{
		sampleInterval: opts.SampleInterval,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Start records the memory baseline and begins background sampling. Safe to
// call more than once; only the first call does work.
func (rp *RuntimeProfiler) Start() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	if rp.running {
		return
	}
	rp.running = true
	rp.startTime = time.Now()
	runtime.ReadMemStats(&rp.baseline)
	rp.peakHeapAlloc = rp.baseline.HeapAlloc
	rp.peakGoroutines = runtime.NumGoroutine()

	rp.wg.Add(1)
	go rp.sampleLoop()
}

// Stop ends background sampling and waits for the sampler to exit.
func (rp *RuntimeProfiler) Stop() {
	rp.mu.Lock()
	if !rp.running {
		rp.mu.Unlock()
		return
	}
	rp.running = false
	rp.mu.Unlock()

	rp.cancel()
	rp.wg.Wait()
}

// sampleLoop collects one sample per interval until the profiler stops.
func (rp *RuntimeProfiler) sampleLoop() {
	defer rp.wg.Done()

	ticker := time.NewTicker(rp.sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rp.ctx.Done():
			return
		case <-ticker.C:
			rp.sample()
		}
	}
}

// sample records the current heap size and goroutine count peaks.
func (rp *RuntimeProfiler) sample() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	goroutines := runtime.NumGoroutine()

	rp.mu.Lock()
	defer rp.mu.Unlock()

	rp.samples++
	if mem.HeapAlloc > rp.peakHeapAlloc {
		rp.peakHeapAlloc = mem.HeapAlloc
	}
	if goroutines > rp.peakGoroutines {
		rp.peakGoroutines = goroutines
	}
}

// Snapshot returns the consumption deltas since Start. Valid both while
// running and after Stop.
func (rp *RuntimeProfiler) Snapshot() Snapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	rp.mu.Lock()
	defer rp.mu.Unlock()

	peakHeap := rp.peakHeapAlloc
	if mem.HeapAlloc > peakHeap {
		peakHeap = mem.HeapAlloc
	}

	return Snapshot{
		Elapsed:            time.Since(rp.startTime),
		Samples:            rp.samples,
		HeapAllocBytes:     mem.HeapAlloc,
		PeakHeapAllocBytes: peakHeap,
		AllocDeltaBytes:    mem.TotalAlloc - rp.baseline.TotalAlloc,
		GCCycles:           mem.NumGC - rp.baseline.NumGC,
		GCCPUFraction:      mem.GCCPUFraction,
		PeakGoroutines:     rp.peakGoroutines,
	}
}

// Report formats the snapshot for terminal output.
func (s Snapshot) Report() string {
	return fmt.Sprintf(
		"profile: %v, %d samples\nheap: current=%s peak=%s allocated=%s\ngc: %d cycles, %.4f%% cpu\ngoroutines: peak=%d",
		s.Elapsed.Truncate(time.Millisecond),
		s.Samples,
		formatBytes(s.HeapAllocBytes),
		formatBytes(s.PeakHeapAllocBytes),
		formatBytes(s.AllocDeltaBytes),
		s.GCCycles,
		s.GCCPUFraction*100,
		s.PeakGoroutines,
	)
}

// formatBytes formats byte counts in human-readable format.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
