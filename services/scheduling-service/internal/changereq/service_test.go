package changereq

import (
	"testing"

	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/schedule"
)

func TestRequestedSlotMustBeFree(t *testing.T) {
	date, _ := schedule.ParseDateKey("2026-09-10")
	others := []schedule.Schedule{
		{Date: date, Start: 1000, End: 1100},
	}

	overlap := schedule.Schedule{Date: date, Start: 1030, End: 1130}
	if !slotTaken(overlap, others) {
		t.Fatal("partially overlapping request should be blocked")
	}

	exact := schedule.Schedule{Date: date, Start: 1000, End: 1100}
	if !slotTaken(exact, others) {
		t.Fatal("identical request should be blocked")
	}

	adjacent := schedule.Schedule{Date: date, Start: 1100, End: 1200}
	if slotTaken(adjacent, others) {
		t.Fatal("back-to-back request should be free")
	}

	otherDay, _ := schedule.ParseDateKey("2026-09-11")
	elsewhere := schedule.Schedule{Date: otherDay, Start: 1000, End: 1100}
	if slotTaken(elsewhere, others) {
		t.Fatal("request on a free day should be free")
	}

	// The session being moved is excluded from the booked list by the
	// store query, so a shift within its own span sees no conflict.
	if slotTaken(exact, nil) {
		t.Fatal("with no other sessions the slot must be free")
	}
}
