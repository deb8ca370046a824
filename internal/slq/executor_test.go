package slq

import (
	"sync/atomic"
	"testing"
)

func TestForEachRangeCoverage(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		workers int
	}{
		{"sequential", 10, 1},
		{"even split", 100, 4},
		{"uneven split", 17, 4},
		{"more workers than items", 3, 8},
		{"zero items", 0, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writes := make([]int32, tt.n)
			forEachRange(tt.n, tt.workers, func(worker, start, end int) {
				for k := start; k < end; k++ {
					atomic.AddInt32(&writes[k], 1)
				}
			})
			for k, w := range writes {
				if w != 1 {
					t.Errorf("index %d written %d times, want exactly once", k, w)
				}
			}
		})
	}
}

func TestForEachRangeDisjoint(t *testing.T) {
	const n = 57
	owner := make([]int, n)
	for k := range owner {
		owner[k] = -1
	}
	forEachRange(n, 5, func(worker, start, end int) {
		for k := start; k < end; k++ {
			owner[k] = worker
		}
	})

	// contiguous ranges: owner indices must be non-decreasing
	for k := 1; k < n; k++ {
		if owner[k] < owner[k-1] {
			t.Fatalf("ranges not contiguous: owner[%d]=%d after owner[%d]=%d",
				k, owner[k], k-1, owner[k-1])
		}
	}
}
