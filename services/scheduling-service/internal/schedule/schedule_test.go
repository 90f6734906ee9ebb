package schedule

import (
	"testing"
	"time"

	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/faults"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/timeslot"
)

func TestCanonical_CoalescesOneDay(t *testing.T) {
	day := DaySchedule{}
	day.Pick("2026-09-07", 1030)
	day.Pick("2026-09-07", 930)
	day.Pick("2026-09-07", 1000)
	day.Pick("2026-09-07", 1000) // duplicate pick

	scheds, err := day.Canonical()
	if err != nil {
		t.Fatalf("Canonical failed: %v", err)
	}
	if len(scheds) != 1 {
		t.Fatalf("expected 1 schedule, got %d", len(scheds))
	}
	s := scheds[0]
	if s.Start != 930 || s.End != 1100 {
		t.Fatalf("expected 09:30-11:00, got %s-%s", s.Start, s.End)
	}
}

func TestCanonical_SortedAcrossDays(t *testing.T) {
	day := DaySchedule{}
	day.Pick("2026-09-14", 1400)
	day.Pick("2026-09-07", 930)
	day.Pick("2026-09-10", 1800)

	scheds, err := day.Canonical()
	if err != nil {
		t.Fatalf("Canonical failed: %v", err)
	}
	want := []string{"2026-09-07", "2026-09-10", "2026-09-14"}
	for i, key := range want {
		if scheds[i].DateKey() != key {
			t.Fatalf("schedule %d on %s, want %s", i, scheds[i].DateKey(), key)
		}
	}
}

func TestCanonical_RejectsEmptyAndBadInput(t *testing.T) {
	if _, err := (DaySchedule{}).Canonical(); !faults.Is(err, faults.KindValidation) {
		t.Fatalf("empty selection should be a validation fault, got %v", err)
	}

	bad := DaySchedule{}
	bad.Pick("2026/09/07", 930)
	if _, err := bad.Canonical(); !faults.Is(err, faults.KindValidation) {
		t.Fatalf("malformed date key should be a validation fault, got %v", err)
	}

	offGrid := DaySchedule{}
	offGrid.Pick("2026-09-07", 945)
	if _, err := offGrid.Canonical(); !faults.Is(err, faults.KindValidation) {
		t.Fatalf("off-grid slot should be a validation fault, got %v", err)
	}
}

func TestUnpick(t *testing.T) {
	day := DaySchedule{}
	day.Pick("2026-09-07", 930)
	day.Pick("2026-09-07", 1000)
	day.Unpick("2026-09-07", 930)
	if got := day["2026-09-07"]; len(got) != 1 || got[0] != 1000 {
		t.Fatalf("expected [1000] after unpick, got %v", got)
	}
	day.Unpick("2026-09-07", 1000)
	if _, ok := day["2026-09-07"]; ok {
		t.Fatal("date should be dropped once its last slot is unpicked")
	}
}

func TestStartsAt(t *testing.T) {
	date, _ := ParseDateKey("2026-09-07")
	s := Schedule{Date: date, Start: 1430, End: 1530}
	want := time.Date(2026, 9, 7, 14, 30, 0, 0, time.UTC)
	if !s.StartsAt().Equal(want) {
		t.Fatalf("StartsAt = %s, want %s", s.StartsAt(), want)
	}
}

func TestPatterns(t *testing.T) {
	mon, _ := ParseDateKey("2026-09-07") // Monday
	thu, _ := ParseDateKey("2026-09-10") // Thursday
	anchor := []Schedule{
		{Date: mon, Start: 930, End: 1030},
		{Date: thu, Start: 1800, End: 1900},
	}
	patterns, err := Patterns(anchor)
	if err != nil {
		t.Fatalf("Patterns failed: %v", err)
	}
	if len(patterns) != 2 {
		t.Fatalf("expected 2 patterns, got %d", len(patterns))
	}
	if patterns[0].Weekday != time.Monday || patterns[0].Start != 930 {
		t.Fatalf("unexpected first pattern: %+v", patterns[0])
	}

	nextMon, _ := ParseDateKey("2026-09-14")
	dup := append(anchor, Schedule{Date: nextMon, Start: 700, End: 800})
	if _, err := Patterns(dup); !faults.Is(err, faults.KindValidation) {
		t.Fatalf("duplicate weekday should be a validation fault, got %v", err)
	}
}

func TestScheduleValidate(t *testing.T) {
	date, _ := ParseDateKey("2026-09-07")
	ok := Schedule{Date: date, Start: 2330, End: timeslot.DayEnd}
	if err := ok.Validate(); err != nil {
		t.Fatalf("23:30-24:00 should validate, got %v", err)
	}
	inverted := Schedule{Date: date, Start: 1100, End: 1000}
	if err := inverted.Validate(); !faults.Is(err, faults.KindValidation) {
		t.Fatalf("inverted range should be a validation fault, got %v", err)
	}
}
