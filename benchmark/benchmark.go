// Package benchmark - Latency aggregation for batch classification runs.
package benchmark

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Sample captures the timings of one completed classification request.
type Sample struct {
	// Label is the final categorical outcome of the request.
	Label string `json:"label"`
	// PresenceDuration is the execution time of the presence stage.
	PresenceDuration time.Duration `json:"presence_duration"`
	// ParkingDuration is the execution time of the parking stage, zero when
	// the stage was skipped.
	ParkingDuration time.Duration `json:"parking_duration"`
	// TotalDuration is the end-to-end time of the request.
	TotalDuration time.Duration `json:"total_duration"`
}

// Summary aggregates all recorded samples of one batch run.
type Summary struct {
	// Count is the number of successful requests.
	Count int `json:"count"`
	// Errors is the number of failed requests.
	Errors int `json:"errors"`
	// Labels counts successful requests per outcome label.
	Labels map[string]int `json:"labels"`
	// MinMillis is the fastest total request time.
	MinMillis float64 `json:"min_ms"`
	// MeanMillis is the average total request time.
	MeanMillis float64 `json:"mean_ms"`
	// P95Millis is the 95th percentile total request time.
	P95Millis float64 `json:"p95_ms"`
	// MaxMillis is the slowest total request time.
	MaxMillis float64 `json:"max_ms"`
	// FramesPerSecond is the throughput over the summed request time.
	FramesPerSecond float64 `json:"frames_per_second"`
	// MemoryStats snapshots the process heap at summary time.
	MemoryStats MemoryMetrics `json:"memory_stats"`
}

// Aggregate collects per-request samples across one batch run. Safe for
// concurrent use, although the pipeline itself serializes requests.
type Aggregate struct {
	mu      sync.Mutex
	samples []Sample
	errors  int
}

// NewAggregate creates an empty aggregate.
func NewAggregate() *Aggregate {
	return &Aggregate{
		samples: make([]Sample, 0),
	}
}

// Record adds one successful request to the aggregate.
func (a *Aggregate) Record(s Sample) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.samples = append(a.samples, s)
}

// RecordError counts one failed request.
func (a *Aggregate) RecordError() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errors++
}

// Summary computes the aggregated statistics of all recorded samples.
//
// Returns:
//   - Summary: Counts, label distribution, latency statistics, throughput
//     and a current memory snapshot.
func (a *Aggregate) Summary() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	summary := Summary{
		Count:       len(a.samples),
		Errors:      a.errors,
		Labels:      make(map[string]int),
		MemoryStats: CaptureMemoryMetrics(),
	}
	if len(a.samples) == 0 {
		return summary
	}

	totals := make([]float64, 0, len(a.samples))
	var sum float64
	for _, s := range a.samples {
		summary.Labels[s.Label]++
		ms := durationMillis(s.TotalDuration)
		totals = append(totals, ms)
		sum += ms
	}
	sort.Float64s(totals)

	summary.MinMillis = totals[0]
	summary.MaxMillis = totals[len(totals)-1]
	summary.MeanMillis = sum / float64(len(totals))
	summary.P95Millis = percentile(totals, 0.95)
	if sum > 0 {
		summary.FramesPerSecond = float64(len(totals)) / (sum / 1000.0)
	}
	return summary
}

// Report formats the summary for terminal output at the end of a batch run.
func (s Summary) Report() string {
	var b strings.Builder

	fmt.Fprintf(&b, "classified %d photos", s.Count)
	if s.Errors > 0 {
		fmt.Fprintf(&b, ", %d errors", s.Errors)
	}
	b.WriteString("\n")

	if len(s.Labels) > 0 {
		labels := make([]string, 0, len(s.Labels))
		for label := range s.Labels {
			labels = append(labels, label)
		}
		sort.Strings(labels)

		b.WriteString("labels:")
		for _, label := range labels {
			fmt.Fprintf(&b, " %s=%d", label, s.Labels[label])
		}
		b.WriteString("\n")
	}

	if s.Count > 0 {
		fmt.Fprintf(&b, "latency: min=%.1fms mean=%.1fms p95=%.1fms max=%.1fms\n",
			s.MinMillis, s.MeanMillis, s.P95Millis, s.MaxMillis)
		fmt.Fprintf(&b, "throughput: %.1f photos/s\n", s.FramesPerSecond)
	}

	fmt.Fprintf(&b, "memory: heap=%s gc_cycles=%d",
		formatBytes(s.MemoryStats.HeapAllocBytes), s.MemoryStats.NumGC)
	return b.String()
}

// percentile returns the nearest-rank percentile of sorted values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(float64(len(sorted))*p+0.5) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}

func durationMillis(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

// formatBytes formats byte counts in human-readable form.
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
