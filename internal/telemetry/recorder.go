// internal/telemetry/recorder.go
package telemetry

import "sync"

// Recorder captures every emitted metric. Tests use it to assert on the
// instrumentation a store operation produced.
type Recorder struct {
	mu     sync.Mutex
	counts map[string]int
	values map[string][]float64
}

func NewRecorder() *Recorder {
	return &Recorder{
		counts: make(map[string]int),
		values: make(map[string][]float64),
	}
}

func (r *Recorder) Increment(name string, tags Tags) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[tagged(name, tags)]++
}

func (r *Recorder) Histogram(name string, value float64, tags Tags) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := tagged(name, tags)
	r.values[key] = append(r.values[key], value)
}

// Count returns how many times the named counter was incremented, summed
// across all tag combinations.
func (r *Recorder) Count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for key, n := range r.counts {
		if key == name || len(key) > len(name) && key[:len(name)+1] == name+"|" {
			total += n
		}
	}
	return total
}

// Values returns the recorded histogram samples for the untagged name.
func (r *Recorder) Values(name string) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.values[name]...)
}

func tagged(name string, tags Tags) string {
	if len(tags) == 0 {
		return name
	}
	return name + "|" + formatTags(tags)
}
