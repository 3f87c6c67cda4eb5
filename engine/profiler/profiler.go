//go:build profile

package profiler

import (
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// event is one scope boundary in the ring.
type event struct {
	at    int64
	scope int
	open  bool
}

// recorder keeps the last cap events plus running totals per scope name.
// Events are pushed from the render thread; Dump and Scopes may run
// anywhere.
type recorder struct {
	ready atomic.Bool
	next  atomic.Uint64
	ring  []event

	mu     sync.Mutex
	names  []string
	ids    map[string]int
	totals []Scope
}

var rec recorder

// Init must be called once with the ring capacity in events.
func Init(capacity int) {
	if capacity <= 0 {
		capacity = 1 << 20
	}
	rec.mu.Lock()
	rec.ring = make([]event, capacity)
	rec.names, rec.ids, rec.totals = nil, map[string]int{}, nil
	rec.mu.Unlock()
	rec.next.Store(0)
	rec.ready.Store(true)
}

func Enabled() bool { return rec.ready.Load() }

// Start opens a scope and returns the func that closes it.
func Start(name string) func() {
	if !rec.ready.Load() {
		return func() {}
	}
	id := rec.scope(name)
	begin := time.Now()
	rec.push(event{at: begin.UnixNano(), scope: id, open: true})
	return func() {
		d := time.Since(begin)
		rec.push(event{at: begin.Add(d).UnixNano(), scope: id})
		rec.add(id, d)
	}
}

// Scopes returns the totals of every closed scope, slowest mean first.
func Scopes() []Scope {
	rec.mu.Lock()
	out := append([]Scope(nil), rec.totals...)
	rec.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Mean() > out[j].Mean() })
	return out
}

// Dump writes the recorded events to dir/FileName and returns the path.
func Dump(dir string) (string, error) {
	path := filepath.Join(dir, FileName)
	rec.mu.Lock()
	names := append([]string(nil), rec.names...)
	rec.mu.Unlock()
	if err := writeSpeedscope(rec.events(), names, path); err != nil {
		return "", err
	}
	return path, nil
}

func (r *recorder) scope(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.ids[name]; ok {
		return id
	}
	id := len(r.names)
	r.ids[name] = id
	r.names = append(r.names, name)
	r.totals = append(r.totals, Scope{Name: name})
	return id
}

func (r *recorder) add(id int, d time.Duration) {
	r.mu.Lock()
	s := &r.totals[id]
	s.Count++
	s.Total += d
	if d > s.Max {
		s.Max = d
	}
	r.mu.Unlock()
}

func (r *recorder) push(e event) {
	i := r.next.Add(1) - 1
	r.ring[i%uint64(len(r.ring))] = e
}

// events returns the retained events oldest first.
func (r *recorder) events() []event {
	n := r.next.Load()
	size := uint64(len(r.ring))
	start := uint64(0)
	if n > size {
		start = n - size
	}
	out := make([]event, 0, n-start)
	for k := start; k < n; k++ {
		out = append(out, r.ring[k%size])
	}
	return out
}
