// Package profiler records named scopes into a ring buffer and dumps them as
// an evented speedscope profile. Scopes are only recorded in builds with the
// "profile" tag; other builds get no-op stubs. Memory snapshots work in
// every build.
package profiler

import (
	"errors"
	"fmt"
	"runtime"
	"time"
)

// ErrDisabled is returned by Dump in builds without the "profile" tag.
var ErrDisabled = errors.New("profiler: built without the profile tag")

// FileName is the name of the speedscope file written by Dump.
const FileName = "terra.profile.speedscope.json"

// Scope sums every closed run of one named scope.
type Scope struct {
	Name  string
	Count int
	Total time.Duration
	Max   time.Duration
}

func (s Scope) Mean() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

func (s Scope) String() string {
	return fmt.Sprintf("%s %.2fms", s.Name, float64(s.Mean())/float64(time.Millisecond))
}

// Memory is a snapshot of the Go runtime taken for the stats line.
type Memory struct {
	HeapBytes  uint64
	Mallocs    uint64
	Goroutines int
}

// ReadMemory briefly stops the world; call it at most a few times a second.
func ReadMemory() Memory {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return Memory{HeapBytes: m.HeapAlloc, Mallocs: m.Mallocs, Goroutines: runtime.NumGoroutine()}
}

// AllocsPerFrame is the number of heap allocations between prev and m
// divided by the frames rendered in between.
func (m Memory) AllocsPerFrame(prev Memory, frames uint64) float64 {
	if frames == 0 || m.Mallocs < prev.Mallocs {
		return 0
	}
	return float64(m.Mallocs-prev.Mallocs) / float64(frames)
}

func (m Memory) String() string {
	return fmt.Sprintf("%.1f MiB heap, %d goroutines", float64(m.HeapBytes)/(1<<20), m.Goroutines)
}
