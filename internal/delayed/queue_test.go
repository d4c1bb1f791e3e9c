// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package delayed

import (
	"testing"
	"time"
)

var t0 = time.Unix(1000, 0)

func TestScheduleKeepsTimeOrder(t *testing.T) {
	var q Queue
	q.Schedule(3, t0.Add(3*time.Second))
	q.Schedule(1, t0.Add(1*time.Second))
	q.Schedule(2, t0.Add(2*time.Second))
	q.Schedule(4, t0.Add(2*time.Second))

	got := q.Entries()
	want := []uint32{1, 2, 4, 3}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, e := range got {
		if e.Handle != want[i] {
			t.Errorf("entry %d handle = %d, want %d", i, e.Handle, want[i])
		}
		if i > 0 && e.At.Before(got[i-1].At) {
			t.Errorf("entry %d out of order", i)
		}
	}
}

func TestCancelClearsInPlace(t *testing.T) {
	var q Queue
	q.Schedule(7, t0)
	q.Schedule(8, t0)

	if !q.Cancel(8, t0) {
		t.Fatal("Cancel(8) = false, want true")
	}
	if q.Cancel(8, t0) {
		t.Error("second Cancel(8) = true, want false")
	}
	if q.Cancel(7, t0.Add(time.Second)) {
		t.Error("Cancel with wrong timestamp = true, want false")
	}
	if q.Len() != 2 {
		t.Errorf("Len() = %d, want 2", q.Len())
	}
	if q.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", q.Pending())
	}
	if q.Contains(8) {
		t.Error("Contains(8) after cancel")
	}
}

func TestExpire(t *testing.T) {
	tests := []struct {
		name   string
		now    time.Time
		forced bool
		want   []uint32
		left   int
	}{
		{"before grace", t0.Add(500 * time.Millisecond), false, nil, 3},
		{"exactly at grace", t0.Add(time.Second), false, []uint32{1}, 2},
		{"after all", t0.Add(10 * time.Second), false, []uint32{1, 3}, 0},
		{"forced", t0, true, []uint32{1, 3}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var q Queue
			q.Schedule(1, t0)
			q.Schedule(2, t0.Add(time.Second))
			q.Schedule(3, t0.Add(2*time.Second))
			q.Cancel(2, t0.Add(time.Second))

			got := q.Expire(tt.now, time.Second, tt.forced)
			if len(got) != len(tt.want) {
				t.Fatalf("Expire() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Expire()[%d] = %d, want %d", i, got[i], tt.want[i])
				}
			}
			if q.Len() != tt.left {
				t.Errorf("Len() = %d, want %d", q.Len(), tt.left)
			}
		})
	}
}

func TestClear(t *testing.T) {
	var q Queue
	q.Schedule(1, t0)
	q.Clear()
	if q.Len() != 0 {
		t.Errorf("Len() = %d after Clear", q.Len())
	}
	if got := q.Expire(t0.Add(time.Hour), time.Second, false); got != nil {
		t.Errorf("Expire() = %v on empty queue", got)
	}
}
