package availability

import (
	"testing"

	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/schedule"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/timeslot"
)

func TestFromSchedules_ExpandsSpans(t *testing.T) {
	date, _ := schedule.ParseDateKey("2026-09-07")
	ix := FromSchedules([]schedule.Schedule{
		{Date: date, Start: 1000, End: 1130},
	})

	for _, s := range []timeslot.Slot{1000, 1030, 1100} {
		if !ix.Occupied("2026-09-07", s) {
			t.Fatalf("expected slot %s occupied", s)
		}
	}
	if ix.Occupied("2026-09-07", 1130) {
		t.Fatal("end bound slot must not be occupied")
	}
	if ix.Occupied("2026-09-08", 1000) {
		t.Fatal("other dates must be untouched")
	}
}

func TestBlocked(t *testing.T) {
	date, _ := schedule.ParseDateKey("2026-09-07")
	ix := NewIndex()
	ix.AddSpan("2026-09-07", 1100, 1200)

	overlapping := schedule.Schedule{Date: date, Start: 1000, End: 1130}
	if !ix.Blocked(overlapping) {
		t.Fatal("candidate sharing the 11:00 slot must be blocked")
	}
	adjacent := schedule.Schedule{Date: date, Start: 1000, End: 1100}
	if ix.Blocked(adjacent) {
		t.Fatal("back-to-back candidate must not be blocked")
	}
}

func TestFreeStarts(t *testing.T) {
	ix := NewIndex()
	ix.AddSpan("2026-09-07", 630, 700)

	free := ix.FreeStarts("2026-09-07", 600, 800)
	want := []timeslot.Slot{600, 700, 730}
	if len(free) != len(want) {
		t.Fatalf("FreeStarts = %v, want %v", free, want)
	}
	for i := range want {
		if free[i] != want[i] {
			t.Fatalf("FreeStarts[%d] = %s, want %s", i, free[i], want[i])
		}
	}
}
